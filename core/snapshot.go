package core

import (
	"bytes"
	"fmt"
	"reflect"
)

// Snapshotter is implemented by payloads that can hand a copy of themselves
// to another actor. Snapshot runs on the owner's dispatch and must return a
// value sharing no mutable state with the receiver.
type Snapshotter interface {
	Snapshot() any
}

// snapshot returns a copy of payload that is safe to deliver to another
// actor. Dicts and byte slices are copied, Snapshotters copy themselves and
// plain values pass through. Anything else that carries a reference into
// the owner's heap is refused.
func snapshot(payload any) (any, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case Snapshotter:
		return v.Snapshot(), nil
	case *Dict:
		return v.Clone(), nil
	case []byte:
		return bytes.Clone(v), nil
	}

	switch reflect.TypeOf(payload).Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Func, reflect.UnsafePointer, reflect.Interface:
		return nil, fmt.Errorf("%w: %T", ErrNotReadable, payload)
	}
	return payload, nil
}
