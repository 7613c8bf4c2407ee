package art

import (
	"fmt"
	"slices"
)

// nodeKind is the fan-out class of an inner node.
type nodeKind uint8

const (
	node4 nodeKind = iota + 1
	node16
	node48
	node256
)

// Child counts at or below which a node is reallocated to the next
// smaller class after a removal.
const (
	shrink256 = 37
	shrink48  = 12
	shrink16  = 3
)

// String returns the string representation of nodeKind.
func (k nodeKind) String() string {
	switch k {
	case node4:
		return "node4"
	case node16:
		return "node16"
	case node48:
		return "node48"
	case node256:
		return "node256"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k nodeKind) capacity() int {
	switch k {
	case node4:
		return 4
	case node16:
		return 16
	case node48:
		return 48
	case node256:
		return 256
	default:
		panic(&CorruptNodeError{Node: k.String()})
	}
}

// node is a closed union of *leaf and *inner.
type node[V any] interface {
	isNode()
}

// leaf stores a full key and its value.
type leaf[V any] struct {
	key   []byte
	value V
}

// inner is a path-compressed branch. prefix holds the bytes shared by every
// key below the node; children are keyed by the byte that follows it.
// terminal holds the entry whose key ends exactly after prefix.
type inner[V any] struct {
	kind     nodeKind
	prefix   []byte
	terminal *leaf[V]
	size     int

	// node4/node16: sorted discriminating bytes, parallel to children.
	// node48: 256-entry index of child slot+1 (0 means absent).
	// node256: unused, children are indexed by byte directly.
	keys     []byte
	children []node[V]
}

func (*leaf[V]) isNode()  {}
func (*inner[V]) isNode() {}

func newLeaf[V any](key []byte, value V) *leaf[V] {
	return &leaf[V]{key: key, value: value}
}

func newInner[V any](kind nodeKind) *inner[V] {
	n := &inner[V]{kind: kind}
	switch kind {
	case node4, node16:
		n.keys = make([]byte, kind.capacity())
		n.children = make([]node[V], kind.capacity())
	case node48:
		n.keys = make([]byte, 256)
		n.children = make([]node[V], 48)
	case node256:
		n.children = make([]node[V], 256)
	default:
		panic(&CorruptNodeError{Node: kind.String()})
	}
	return n
}

// matchPrefix returns how many bytes of the stored prefix agree with key
// starting at depth.
func (n *inner[V]) matchPrefix(key []byte, depth int) int {
	rest := key[depth:]
	limit := min(len(rest), len(n.prefix))
	for i := 0; i < limit; i++ {
		if n.prefix[i] != rest[i] {
			return i
		}
	}
	return limit
}

func (n *inner[V]) prefixMatches(key []byte, depth int) bool {
	return len(key)-depth >= len(n.prefix) && n.matchPrefix(key, depth) == len(n.prefix)
}

// findChild returns the slot holding the child for b, or nil.
func (n *inner[V]) findChild(b byte) *node[V] {
	switch n.kind {
	case node4, node16:
		if i, ok := slices.BinarySearch(n.keys[:n.size], b); ok {
			return &n.children[i]
		}
	case node48:
		if idx := n.keys[b]; idx != 0 {
			return &n.children[idx-1]
		}
	case node256:
		if n.children[b] != nil {
			return &n.children[b]
		}
	default:
		panic(&CorruptNodeError{Node: n.kind.String()})
	}
	return nil
}

// attach places l below n; depth is the key offset right after n.prefix.
func (n *inner[V]) attach(l *leaf[V], depth int) {
	if len(l.key) == depth {
		n.terminal = l
		return
	}
	n.addChild(l.key[depth], l)
}

// addChild inserts a child for a byte that is not present yet.
func (n *inner[V]) addChild(b byte, child node[V]) {
	if n.size == n.kind.capacity() {
		n.grow()
	}
	switch n.kind {
	case node4, node16:
		i, _ := slices.BinarySearch(n.keys[:n.size], b)
		copy(n.keys[i+1:n.size+1], n.keys[i:n.size])
		copy(n.children[i+1:n.size+1], n.children[i:n.size])
		n.keys[i] = b
		n.children[i] = child
	case node48:
		slot := 0
		for n.children[slot] != nil {
			slot++
		}
		n.children[slot] = child
		n.keys[b] = byte(slot + 1)
	case node256:
		n.children[b] = child
	default:
		panic(&CorruptNodeError{Node: n.kind.String()})
	}
	n.size++
}

// removeChild drops the child for b and shrinks the node if it fell below
// its class threshold. The caller may already have cleared the slot through
// the pointer findChild returned, so b is located by key where the class has
// keys and trusted otherwise.
func (n *inner[V]) removeChild(b byte) {
	switch n.kind {
	case node4, node16:
		i, ok := slices.BinarySearch(n.keys[:n.size], b)
		if !ok {
			return
		}
		copy(n.keys[i:n.size-1], n.keys[i+1:n.size])
		copy(n.children[i:n.size-1], n.children[i+1:n.size])
		n.keys[n.size-1] = 0
		n.children[n.size-1] = nil
	case node48:
		idx := n.keys[b]
		if idx == 0 {
			return
		}
		n.children[idx-1] = nil
		n.keys[b] = 0
	case node256:
		n.children[b] = nil
	default:
		panic(&CorruptNodeError{Node: n.kind.String()})
	}
	n.size--
	n.shrink()
}

func (n *inner[V]) grow() {
	switch n.kind {
	case node4:
		keys := make([]byte, 16)
		children := make([]node[V], 16)
		copy(keys, n.keys[:n.size])
		copy(children, n.children[:n.size])
		n.kind, n.keys, n.children = node16, keys, children
	case node16:
		keys := make([]byte, 256)
		children := make([]node[V], 48)
		for i := 0; i < n.size; i++ {
			keys[n.keys[i]] = byte(i + 1)
			children[i] = n.children[i]
		}
		n.kind, n.keys, n.children = node48, keys, children
	case node48:
		children := make([]node[V], 256)
		for b := 0; b < 256; b++ {
			if idx := n.keys[b]; idx != 0 {
				children[b] = n.children[idx-1]
			}
		}
		n.kind, n.keys, n.children = node256, nil, children
	default:
		panic(&CorruptNodeError{Node: n.kind.String()})
	}
}

func (n *inner[V]) shrink() {
	switch n.kind {
	case node256:
		if n.size > shrink256 {
			return
		}
		keys := make([]byte, 256)
		children := make([]node[V], 48)
		slot := 0
		for b := 0; b < 256; b++ {
			if c := n.children[b]; c != nil {
				children[slot] = c
				keys[b] = byte(slot + 1)
				slot++
			}
		}
		n.kind, n.keys, n.children = node48, keys, children
	case node48:
		if n.size > shrink48 {
			return
		}
		keys := make([]byte, 16)
		children := make([]node[V], 16)
		i := 0
		for b := 0; b < 256; b++ {
			if idx := n.keys[b]; idx != 0 {
				keys[i] = byte(b)
				children[i] = n.children[idx-1]
				i++
			}
		}
		n.kind, n.keys, n.children = node16, keys, children
	case node16:
		if n.size > shrink16 {
			return
		}
		keys := make([]byte, 4)
		children := make([]node[V], 4)
		copy(keys, n.keys[:n.size])
		copy(children, n.children[:n.size])
		n.kind, n.keys, n.children = node4, keys, children
	case node4:
	default:
		panic(&CorruptNodeError{Node: n.kind.String()})
	}
}

// each visits children in ascending byte order until fn returns false.
func (n *inner[V]) each(fn func(b byte, child node[V]) bool) bool {
	switch n.kind {
	case node4, node16:
		for i := 0; i < n.size; i++ {
			if !fn(n.keys[i], n.children[i]) {
				return false
			}
		}
	case node48:
		for b := 0; b < 256; b++ {
			if idx := n.keys[b]; idx != 0 {
				if !fn(byte(b), n.children[idx-1]) {
					return false
				}
			}
		}
	case node256:
		for b := 0; b < 256; b++ {
			if c := n.children[b]; c != nil {
				if !fn(byte(b), c) {
					return false
				}
			}
		}
	default:
		panic(&CorruptNodeError{Node: n.kind.String()})
	}
	return true
}

// last returns the child with the highest byte, or nil when empty.
func (n *inner[V]) last() node[V] {
	switch n.kind {
	case node4, node16:
		if n.size > 0 {
			return n.children[n.size-1]
		}
	case node48:
		for b := 255; b >= 0; b-- {
			if idx := n.keys[b]; idx != 0 {
				return n.children[idx-1]
			}
		}
	case node256:
		for b := 255; b >= 0; b-- {
			if c := n.children[b]; c != nil {
				return c
			}
		}
	default:
		panic(&CorruptNodeError{Node: n.kind.String()})
	}
	return nil
}

// compact returns the node that should replace n after a removal:
// nil when empty, the terminal leaf when no children remain, or the merged
// single child when the chain can be collapsed again.
func (n *inner[V]) compact() node[V] {
	switch {
	case n.size == 0 && n.terminal == nil:
		return nil
	case n.size == 0:
		return n.terminal
	case n.size == 1 && n.terminal == nil:
		var (
			b     byte
			child node[V]
		)
		n.each(func(k byte, c node[V]) bool {
			b, child = k, c
			return false
		})
		switch c := child.(type) {
		case *leaf[V]:
			return c
		case *inner[V]:
			prefix := make([]byte, 0, len(n.prefix)+1+len(c.prefix))
			prefix = append(prefix, n.prefix...)
			prefix = append(prefix, b)
			prefix = append(prefix, c.prefix...)
			c.prefix = prefix
			return c
		default:
			panic(corruptNode(child))
		}
	}
	return n
}
