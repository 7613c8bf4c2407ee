package art

import "fmt"

// CorruptNodeError reports a node that matches none of the known variants.
// It is raised with panic: a corrupt tree means memory was damaged and there
// is nothing a caller can recover.
type CorruptNodeError struct {
	Node string
}

func (e *CorruptNodeError) Error() string {
	return fmt.Sprintf("art: corrupt node %s", e.Node)
}

func corruptNode(n any) *CorruptNodeError {
	return &CorruptNodeError{Node: fmt.Sprintf("%T", n)}
}
