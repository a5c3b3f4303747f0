// Package extract projects a result record out of a parsed ICT log tree.
//
// The projection is schema bound: the root's children are batch nodes, their
// children are test nodes, and values are picked by position from the
// '|'-separated payloads as described by a Schema.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mvp-joe/ict-watcher/internal/logtree"
)

// Pass flag values stored in Record.Passed.
const (
	Passed = "1"
	Failed = "0"
)

var timestampPattern = regexp.MustCompile(`^[0-9]{12}$`)

// Record is the result of one UUT test run.
type Record struct {
	ProductName string
	PartNumber  string
	StartTime   time.Time
	EndTime     time.Time
	Passed      string
}

// Values returns the record in sink column order:
// product name, part number, start, end, pass flag.
func (r Record) Values() []any {
	return []any{r.ProductName, r.PartNumber, r.StartTime, r.EndTime, r.Passed}
}

// IsPass reports whether the test passed.
func (r Record) IsPass() bool {
	return r.Passed == Passed
}

// Extractor projects records using a fixed schema.
type Extractor struct {
	schema   Schema
	location *time.Location
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLocation sets the time zone timestamps are interpreted in.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.location = loc
		}
	}
}

// New creates an Extractor for schema.
func New(schema Schema, opts ...Option) (*Extractor, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{schema: schema, location: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Schema returns the schema the extractor projects with.
func (e *Extractor) Schema() Schema {
	return e.schema
}

// Extract returns the record of the first test node of the first batch that
// has one. Further tests and batches are ignored. ok is false when the tree
// holds no test node at all, which is not an error.
func (e *Extractor) Extract(root *logtree.Node) (Record, bool, error) {
	for _, batch := range root.Children() {
		tests := batch.Children()
		if len(tests) == 0 {
			continue
		}
		rec, err := e.project(batch, tests[0])
		if err != nil {
			return Record{}, false, err
		}
		return rec, true, nil
	}
	return Record{}, false, nil
}

func (e *Extractor) project(batch, test *logtree.Node) (Record, error) {
	s := e.schema

	batchFields, err := fields(batch, LevelBatch, s.BatchMinFields, s.Version)
	if err != nil {
		return Record{}, err
	}
	testFields, err := fields(test, LevelTest, s.TestMinFields, s.Version)
	if err != nil {
		return Record{}, err
	}

	start, err := e.timestamp(test, "start", testFields[s.StartTime])
	if err != nil {
		return Record{}, err
	}
	end, err := e.timestamp(test, "end", testFields[s.EndTime])
	if err != nil {
		return Record{}, err
	}

	passed := Failed
	if testFields[s.Status] == s.PassStatus {
		passed = Passed
	}

	return Record{
		ProductName: batchFields[s.ProductName],
		PartNumber:  batchFields[s.PartNumber],
		StartTime:   start,
		EndTime:     end,
		Passed:      passed,
	}, nil
}

func fields(n *logtree.Node, level string, need int, version string) ([]string, error) {
	parts := strings.Split(n.Payload(), "|")
	if len(parts) < need {
		return nil, &FieldShortfallError{
			Level:  level,
			Node:   n.Path(),
			Have:   len(parts),
			Need:   need,
			Schema: version,
		}
	}
	return parts, nil
}

func (e *Extractor) timestamp(n *logtree.Node, field, value string) (time.Time, error) {
	if !timestampPattern.MatchString(value) {
		return time.Time{}, &TimestampError{Field: field, Node: n.Path(), Value: value}
	}
	t, err := time.ParseInLocation(e.schema.TimeLayout, value, e.location)
	if err != nil {
		return time.Time{}, &TimestampError{
			Field: field,
			Node:  n.Path(),
			Value: value,
			Err:   fmt.Errorf("parse %s: %w", e.schema.TimeLayout, err),
		}
	}
	return t, nil
}
