package mapping

import "fmt"

// MappingFailed is returned when a document cannot be mapped — the only
// cause in practice is a primary node whose key property never resolves to
// a non-empty scalar. It is a per-document failure: callers record it as a
// run error and skip the document, never aborting the run.
type MappingFailed struct {
	Reason string
	Label  string
	Path   string
}

func (e *MappingFailed) Error() string {
	return fmt.Sprintf("mapping: %s: label=%q path=%q", e.Reason, e.Label, e.Path)
}
