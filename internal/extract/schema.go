package extract

import (
	"fmt"
	"sort"
)

// Schema is the positional field contract with the log-producing
// equipment. Indices are zero-based positions in a payload split on '|'.
type Schema struct {
	Version string

	BatchMinFields int
	ProductName    int
	PartNumber     int

	TestMinFields int
	Status        int
	StartTime     int
	EndTime       int

	// PassStatus is the status code that marks a passing test.
	PassStatus string
	// TimeLayout is the Go layout for YYMMDDHHMMSS timestamps.
	TimeLayout string
}

// SchemaV1 is the batch/test layout emitted by the current ICT testers.
var SchemaV1 = Schema{
	Version: "v1",

	BatchMinFields: 10,
	ProductName:    0,
	PartNumber:     9,

	TestMinFields: 10,
	Status:        1,
	StartTime:     2,
	EndTime:       9,

	PassStatus: "00",
	TimeLayout: "060102150405",
}

var schemas = map[string]Schema{
	SchemaV1.Version: SchemaV1,
}

// LookupSchema returns the registered schema for version.
func LookupSchema(version string) (Schema, error) {
	s, ok := schemas[version]
	if !ok {
		return Schema{}, fmt.Errorf("unknown field schema %q (known: %v)", version, SchemaVersions())
	}
	return s, nil
}

// SchemaVersions lists the registered schema versions.
func SchemaVersions() []string {
	versions := make([]string, 0, len(schemas))
	for v := range schemas {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Validate checks that every index fits inside the declared minimum field
// counts, so a payload that passes the count check can be indexed safely.
func (s Schema) Validate() error {
	batch := []int{s.ProductName, s.PartNumber}
	for _, idx := range batch {
		if idx < 0 || idx >= s.BatchMinFields {
			return fmt.Errorf("schema %s: batch field index %d outside %d fields", s.Version, idx, s.BatchMinFields)
		}
	}
	test := []int{s.Status, s.StartTime, s.EndTime}
	for _, idx := range test {
		if idx < 0 || idx >= s.TestMinFields {
			return fmt.Errorf("schema %s: test field index %d outside %d fields", s.Version, idx, s.TestMinFields)
		}
	}
	if s.TimeLayout == "" {
		return fmt.Errorf("schema %s: empty time layout", s.Version)
	}
	return nil
}
