//go:build !debug

package core

func (c *Context) bindGoroutine() {}

func (c *Context) checkGoroutine(string, CellID) {}
