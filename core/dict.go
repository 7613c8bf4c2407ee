package core

import (
	"iter"

	"github.com/jina-lang/jinart/art"
)

// Dict is the ordered dictionary stored in dict cells.
type Dict = art.Tree[any]

// NewDict allocates a cell holding an empty dictionary.
func (c *Context) NewDict() (CellID, error) {
	return c.Alloc(art.New[any]())
}

func (c *Context) dict(op string, id CellID) (*Dict, error) {
	c.guard(op, id)
	v, err := c.actor.heap.load(id)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*Dict)
	if !ok {
		return nil, ErrNotDict
	}
	return d, nil
}

// DictInsert stores value under key and returns the value it replaced.
func (c *Context) DictInsert(id CellID, key []byte, value any) (old any, replaced bool, err error) {
	d, err := c.dict("dict-insert", id)
	if err != nil {
		return nil, false, err
	}
	old, replaced = d.Insert(key, value)
	return old, replaced, nil
}

// DictLookup returns the value stored under key.
func (c *Context) DictLookup(id CellID, key []byte) (any, bool, error) {
	d, err := c.dict("dict-lookup", id)
	if err != nil {
		return nil, false, err
	}
	v, ok := d.Lookup(key)
	return v, ok, nil
}

// DictDelete removes key and reports whether it was present.
func (c *Context) DictDelete(id CellID, key []byte) (bool, error) {
	d, err := c.dict("dict-delete", id)
	if err != nil {
		return false, err
	}
	return d.Delete(key), nil
}

// DictIterate returns the entries whose key starts with prefix in ascending
// key order. The sequence must be consumed within the current dispatch.
func (c *Context) DictIterate(id CellID, prefix []byte) (iter.Seq2[[]byte, any], error) {
	d, err := c.dict("dict-iterate", id)
	if err != nil {
		return nil, err
	}
	return d.Iterate(prefix), nil
}

// DictLen returns the number of keys in a dict cell.
func (c *Context) DictLen(id CellID) (int, error) {
	d, err := c.dict("dict-len", id)
	if err != nil {
		return 0, err
	}
	return d.Len(), nil
}
