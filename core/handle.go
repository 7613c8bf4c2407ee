package core

import "fmt"

// Handle names a cell owned by another actor. It confers no ownership: the
// holder can only ask the owner, by message, to retain, release or read the
// cell. Handles are plain values and may be copied into any payload.
type Handle struct {
	// Owner is the actor that owns the cell
	Owner ActorID

	// Cell is the referenced cell
	Cell CellID
}

// HandleOf returns the handle of a cell.
func HandleOf(id CellID) Handle {
	return Handle{Owner: id.Owner(), Cell: id}
}

// IsValid reports whether the handle refers to a cell of its owner.
func (h Handle) IsValid() bool {
	return h.Owner != 0 && h.Cell.Owner() == h.Owner
}

// String returns a string representation of the handle.
func (h Handle) String() string {
	return fmt.Sprintf(":%08x/%x", uint32(h.Owner), uint32(h.Cell))
}
