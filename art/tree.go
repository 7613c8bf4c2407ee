// Package art implements an adaptive radix tree, an ordered map keyed by
// byte strings.
//
// Inner nodes come in four fan-out classes (4, 16, 48 and 256 children) and
// are reallocated to the next class when their child count crosses a
// threshold, so memory follows the actual fan-out. Chains of single-child
// nodes are collapsed into a stored prefix and split again only when a key
// diverges inside it. Unlike a hash table, the tree yields keys in
// lexicographic order and answers prefix queries directly.
//
// A Tree is not safe for concurrent use. In the runtime every tree lives in
// a cell owned by one actor, which is the only code that ever touches it.
package art

import (
	"bytes"
	"iter"
)

// Tree is an adaptive radix tree mapping byte-string keys to values of type V.
// The zero value is an empty tree ready to use.
type Tree[V any] struct {
	root node[V]
	size int
}

// New returns an empty tree.
func New[V any]() *Tree[V] {
	return &Tree[V]{}
}

// Len returns the number of stored keys.
func (t *Tree[V]) Len() int {
	return t.size
}

// Clear removes every key.
func (t *Tree[V]) Clear() {
	t.root = nil
	t.size = 0
}

// Clone returns an independent tree holding the same entries. Values are
// copied by assignment.
func (t *Tree[V]) Clone() *Tree[V] {
	out := New[V]()
	for k, v := range t.All() {
		out.Insert(k, v)
	}
	return out
}

// Insert stores value under key and returns the value it replaced, if any.
// The key is copied.
func (t *Tree[V]) Insert(key []byte, value V) (old V, replaced bool) {
	old, replaced = insert(&t.root, bytes.Clone(key), value, 0)
	if !replaced {
		t.size++
	}
	return old, replaced
}

func insert[V any](ref *node[V], key []byte, value V, depth int) (old V, replaced bool) {
	for {
		switch n := (*ref).(type) {
		case nil:
			*ref = newLeaf(key, value)
			return old, false

		case *leaf[V]:
			if bytes.Equal(n.key, key) {
				old, n.value = n.value, value
				return old, true
			}
			common := commonPrefix(n.key[depth:], key[depth:])
			parent := newInner[V](node4)
			parent.prefix = bytes.Clone(key[depth : depth+common])
			parent.attach(n, depth+common)
			parent.attach(newLeaf(key, value), depth+common)
			*ref = parent
			return old, false

		case *inner[V]:
			p := n.matchPrefix(key, depth)
			if p < len(n.prefix) {
				// The key leaves the compressed path at p: split the prefix.
				parent := newInner[V](node4)
				parent.prefix = bytes.Clone(n.prefix[:p])
				b := n.prefix[p]
				n.prefix = bytes.Clone(n.prefix[p+1:])
				parent.addChild(b, n)
				parent.attach(newLeaf(key, value), depth+p)
				*ref = parent
				return old, false
			}
			depth += len(n.prefix)
			if depth == len(key) {
				if n.terminal != nil {
					old, n.terminal.value = n.terminal.value, value
					return old, true
				}
				n.terminal = newLeaf(key, value)
				return old, false
			}
			child := n.findChild(key[depth])
			if child == nil {
				n.addChild(key[depth], newLeaf(key, value))
				return old, false
			}
			ref = child
			depth++

		default:
			panic(corruptNode(n))
		}
	}
}

// Lookup returns the value stored under key.
func (t *Tree[V]) Lookup(key []byte) (V, bool) {
	var zero V
	n, depth := t.root, 0
	for {
		switch cur := n.(type) {
		case nil:
			return zero, false
		case *leaf[V]:
			if bytes.Equal(cur.key, key) {
				return cur.value, true
			}
			return zero, false
		case *inner[V]:
			if !cur.prefixMatches(key, depth) {
				return zero, false
			}
			depth += len(cur.prefix)
			if depth == len(key) {
				if cur.terminal != nil {
					return cur.terminal.value, true
				}
				return zero, false
			}
			child := cur.findChild(key[depth])
			if child == nil {
				return zero, false
			}
			n = *child
			depth++
		default:
			panic(corruptNode(n))
		}
	}
}

// Delete removes key and reports whether it was present.
func (t *Tree[V]) Delete(key []byte) bool {
	if !remove(&t.root, key, 0) {
		return false
	}
	t.size--
	return true
}

func remove[V any](ref *node[V], key []byte, depth int) bool {
	switch n := (*ref).(type) {
	case nil:
		return false

	case *leaf[V]:
		if !bytes.Equal(n.key, key) {
			return false
		}
		*ref = nil
		return true

	case *inner[V]:
		if !n.prefixMatches(key, depth) {
			return false
		}
		depth += len(n.prefix)
		if depth == len(key) {
			if n.terminal == nil {
				return false
			}
			n.terminal = nil
		} else {
			b := key[depth]
			child := n.findChild(b)
			if child == nil || !remove(child, key, depth+1) {
				return false
			}
			if *child == nil {
				n.removeChild(b)
			}
		}
		*ref = n.compact()
		return true

	default:
		panic(corruptNode(n))
	}
}

// Iterate returns the entries whose key starts with prefix, in ascending
// lexicographic order. The sequence is lazy: the tree is walked only as far
// as the consumer pulls. Every call of the returned function starts a fresh
// walk. The tree must not be modified while a walk is in progress.
func (t *Tree[V]) Iterate(prefix []byte) iter.Seq2[[]byte, V] {
	return func(yield func([]byte, V) bool) {
		if n := t.seek(prefix); n != nil {
			walk(n, yield)
		}
	}
}

// All is shorthand for Iterate(nil).
func (t *Tree[V]) All() iter.Seq2[[]byte, V] {
	return t.Iterate(nil)
}

// seek returns the smallest subtree that holds every key starting with prefix.
func (t *Tree[V]) seek(prefix []byte) node[V] {
	n, depth := t.root, 0
	for {
		if depth == len(prefix) {
			return n
		}
		switch cur := n.(type) {
		case nil:
			return nil
		case *leaf[V]:
			if bytes.HasPrefix(cur.key, prefix) {
				return cur
			}
			return nil
		case *inner[V]:
			rest := prefix[depth:]
			m := min(len(rest), len(cur.prefix))
			if !bytes.Equal(cur.prefix[:m], rest[:m]) {
				return nil
			}
			if len(rest) <= len(cur.prefix) {
				return cur
			}
			depth += len(cur.prefix)
			child := cur.findChild(prefix[depth])
			if child == nil {
				return nil
			}
			n = *child
			depth++
		default:
			panic(corruptNode(n))
		}
	}
}

func walk[V any](n node[V], yield func([]byte, V) bool) bool {
	switch cur := n.(type) {
	case *leaf[V]:
		return yield(bytes.Clone(cur.key), cur.value)
	case *inner[V]:
		if cur.terminal != nil && !yield(bytes.Clone(cur.terminal.key), cur.terminal.value) {
			return false
		}
		return cur.each(func(_ byte, child node[V]) bool {
			return walk(child, yield)
		})
	default:
		panic(corruptNode(n))
	}
}

// Min returns the smallest key and its value.
func (t *Tree[V]) Min() ([]byte, V, bool) {
	for k, v := range t.All() {
		return k, v, true
	}
	var zero V
	return nil, zero, false
}

// Max returns the largest key and its value.
func (t *Tree[V]) Max() ([]byte, V, bool) {
	n := t.root
	for {
		switch cur := n.(type) {
		case nil:
			var zero V
			return nil, zero, false
		case *leaf[V]:
			return bytes.Clone(cur.key), cur.value, true
		case *inner[V]:
			if last := cur.last(); last != nil {
				n = last
				continue
			}
			if cur.terminal != nil {
				return bytes.Clone(cur.terminal.key), cur.terminal.value, true
			}
			panic(corruptNode(cur))
		default:
			panic(corruptNode(n))
		}
	}
}

func commonPrefix(a, b []byte) int {
	limit := min(len(a), len(b))
	for i := 0; i < limit; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return limit
}
