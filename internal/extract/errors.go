package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldShortfall indicates a payload has fewer '|' fields than the
	// schema requires at that depth.
	ErrFieldShortfall = errors.New("schema field shortfall")

	// ErrTimestampFormat indicates a timestamp field is not YYMMDDHHMMSS.
	ErrTimestampFormat = errors.New("timestamp format error")
)

// Levels of the tree the schema describes.
const (
	LevelBatch = "batch"
	LevelTest  = "test"
)

// FieldShortfallError reports a payload with too few fields.
type FieldShortfallError struct {
	Level  string // LevelBatch or LevelTest
	Node   string // node path
	Have   int
	Need   int
	Schema string
}

func (e *FieldShortfallError) Error() string {
	return fmt.Sprintf("%s: %s node %s has %d fields, schema %s needs %d",
		ErrFieldShortfall, e.Level, e.Node, e.Have, e.Schema, e.Need)
}

func (e *FieldShortfallError) Unwrap() error {
	return ErrFieldShortfall
}

// TimestampError reports a timestamp field that could not be parsed.
type TimestampError struct {
	Field string
	Node  string
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	msg := fmt.Sprintf("%s: %s field of %s is %q", ErrTimestampFormat, e.Field, e.Node, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimestampError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTimestampFormat}
	}
	return []error{ErrTimestampFormat, e.Err}
}
