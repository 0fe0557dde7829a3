package migrate

import "fmt"

// SchemaError reports a failure while fetching, rewriting or creating a
// table definition.
type SchemaError struct {
	Table string
	Step  string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema replication of %s failed to %s: %v", e.Table, e.Step, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// DataCopyError reports a failure while fetching, inserting or committing a
// batch. Batches before Batch are committed in the target.
type DataCopyError struct {
	Table  string
	Batch  int
	Offset int
	Err    error
}

func (e *DataCopyError) Error() string {
	return fmt.Sprintf("data copy of %s failed at batch %d (offset %d): %v", e.Table, e.Batch, e.Offset, e.Err)
}

func (e *DataCopyError) Unwrap() error { return e.Err }

// DiscoveryError reports a failure to list the tables of the source schema.
type DiscoveryError struct {
	Schema string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("table discovery in %s failed: %v", e.Schema, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
