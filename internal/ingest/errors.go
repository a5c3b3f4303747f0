package ingest

import (
	"context"
	"errors"

	"github.com/mvp-joe/ict-watcher/internal/extract"
	"github.com/mvp-joe/ict-watcher/internal/parser"
)

// Failure sentinels, shared with the packages that produce them so callers
// only need to import ingest.
var (
	ErrIO               = parser.ErrIO
	ErrFileTooLarge     = parser.ErrFileTooLarge
	ErrMalformedGrammar = parser.ErrMalformedGrammar
	ErrFieldShortfall   = extract.ErrFieldShortfall
	ErrTimestampFormat  = extract.ErrTimestampFormat

	// ErrSink indicates the result store rejected or could not take a record
	ErrSink = errors.New("sink failure")
)

// Error kinds as written to logs and the ingest_events table.
const (
	KindIO               = "io_failure"
	KindFileTooLarge     = "file_too_large"
	KindMalformedGrammar = "malformed_grammar"
	KindFieldShortfall   = "schema_field_shortfall"
	KindTimestampFormat  = "timestamp_format"
	KindSink             = "sink_failure"
	KindCanceled         = "canceled"
	KindUnknown          = "unknown"
)

// Classify maps an ingest error to its kind. nil maps to "".
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileTooLarge):
		return KindFileTooLarge
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, ErrMalformedGrammar):
		return KindMalformedGrammar
	case errors.Is(err, ErrFieldShortfall):
		return KindFieldShortfall
	case errors.Is(err, ErrTimestampFormat):
		return KindTimestampFormat
	case errors.Is(err, ErrSink):
		return KindSink
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
