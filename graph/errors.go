package graph

import "fmt"

// Reason is a machine-readable validation failure code.
type Reason string

const (
	ReasonDuplicateID    Reason = "duplicate_id"
	ReasonDanglingRef    Reason = "dangling_ref"
	ReasonPortOutOfRange Reason = "port_out_of_range"
	ReasonTypeMismatch   Reason = "type_mismatch"
	ReasonFanIn          Reason = "fan_in"
	ReasonCycle          Reason = "cycle"
)

// InvalidError is returned by Builder.Build when a graph fails one of
// the five structural checks. Detail identifies the offending node,
// port, or connection in human-readable form; Reason is the stable tag
// callers should branch on.
type InvalidError struct {
	Reason Reason
	Detail string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("graph invalid (%s): %s", e.Reason, e.Detail)
}

// ErrorKind satisfies wferr's kinder interface so wferr.KindOf/Is see
// every InvalidError as KindGraphInvalid regardless of its Reason.
func (e *InvalidError) ErrorKind() string {
	return "GraphInvalid"
}
