package program

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jina-lang/jinart/core"
)

func builtins() map[string]Factory {
	return map[string]Factory{
		"echo":    newEcho,
		"forward": newForward,
		"counter": newCounter,
		"logger":  newLogger,
		"dict":    newDict,
	}
}

func argString(args map[string]any, key, def string) (string, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("arg %q must be a string, got %T", key, v)
	}
	return s, nil
}

func argInt(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("arg %q must be an integer, got %T", key, v)
	}
	return n, nil
}

// answer replies to the sender, or logs the result for messages injected
// without one.
func answer(ctx *core.Context, what string, v any) {
	if ctx.Sender() != 0 {
		ctx.Reply(v)
		return
	}
	ctx.Logger().Info(what, "result", v)
}

// echo returns every user payload to its sender.
func newEcho(map[string]any) (core.Behavior, error) {
	return core.BehaviorFunc(func(ctx *core.Context, msg core.Message) {
		if msg.Kind == core.KindUser {
			answer(ctx, "echo", msg.Payload)
		}
	}), nil
}

// forward relays user payloads to the actor named by the "to" arg.
func newForward(args map[string]any) (core.Behavior, error) {
	to, err := argString(args, "to", "")
	if err != nil {
		return nil, err
	}
	if to == "" {
		return nil, fmt.Errorf("arg %q is required", "to")
	}
	return core.BehaviorFunc(func(ctx *core.Context, msg core.Message) {
		if msg.Kind != core.KindUser {
			return
		}
		id, ok := ctx.Lookup(to)
		if !ok {
			ctx.Logger().Warn("forward target not found", "to", to)
			return
		}
		ctx.Send(id, msg.Payload)
	}), nil
}

// counter keeps a running total in a cell. The payload "get" answers the
// total, "reset" clears it, anything else adds the step.
type counter struct {
	step int
	cell core.CellID
}

func newCounter(args map[string]any) (core.Behavior, error) {
	step, err := argInt(args, "step", 1)
	if err != nil {
		return nil, err
	}
	return &counter{step: step}, nil
}

func (c *counter) Receive(ctx *core.Context, msg core.Message) {
	switch msg.Kind {
	case core.KindStarted:
		id, err := ctx.Alloc(0)
		if err != nil {
			ctx.Logger().Error("counter allocation failed", "error", err)
			ctx.Terminate()
			return
		}
		c.cell = id
	case core.KindUser:
		v, err := ctx.Load(c.cell)
		if err != nil {
			ctx.Logger().Error("counter cell lost", "error", err)
			return
		}
		n, ok := v.(int)
		if !ok {
			ctx.Logger().Error("counter cell holds a non-integer", "type", fmt.Sprintf("%T", v))
			return
		}
		next := n + c.step
		switch msg.Payload {
		case "get":
			answer(ctx, "count", n)
			return
		case "reset":
			next = 0
		}
		if err := ctx.Store(c.cell, next); err != nil {
			ctx.Logger().Error("counter update failed", "error", err)
		}
	}
}

// logger writes every message it receives to the actor log.
func newLogger(args map[string]any) (core.Behavior, error) {
	name, err := argString(args, "level", "info")
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("arg %q: %w", "level", err)
	}
	return core.BehaviorFunc(func(ctx *core.Context, msg core.Message) {
		attrs := []any{"kind", msg.Kind, "sender", msg.Sender}
		if msg.Payload != nil {
			attrs = append(attrs, "payload", msg.Payload)
		}
		if msg.Err != nil {
			attrs = append(attrs, "error", msg.Err)
		}
		ctx.Logger().Log(context.Background(), level, "message", attrs...)
	}), nil
}

// dict serves an ordered key-value store kept in a dict cell. Payloads are
// maps with an "op" of put, get, delete or scan, a "key" (the prefix for
// scan) and, for put, a "value".
type dict struct {
	cell core.CellID
}

func newDict(map[string]any) (core.Behavior, error) {
	return &dict{}, nil
}

func (d *dict) Receive(ctx *core.Context, msg core.Message) {
	switch msg.Kind {
	case core.KindStarted:
		id, err := ctx.NewDict()
		if err != nil {
			ctx.Logger().Error("dict allocation failed", "error", err)
			ctx.Terminate()
			return
		}
		d.cell = id
	case core.KindUser:
		req, ok := msg.Payload.(map[string]any)
		if !ok {
			ctx.Logger().Warn("dict request must be a map", "payload", msg.Payload)
			return
		}
		res, err := d.apply(ctx, req)
		if err != nil {
			ctx.Logger().Warn("dict request failed", "error", err)
			return
		}
		answer(ctx, "dict", res)
	}
}

func (d *dict) apply(ctx *core.Context, req map[string]any) (any, error) {
	op, _ := req["op"].(string)
	key, _ := req["key"].(string)

	switch op {
	case "put":
		_, replaced, err := ctx.DictInsert(d.cell, []byte(key), req["value"])
		return replaced, err
	case "get":
		v, ok, err := ctx.DictLookup(d.cell, []byte(key))
		if err != nil || !ok {
			return nil, err
		}
		return v, nil
	case "delete":
		return ctx.DictDelete(d.cell, []byte(key))
	case "scan":
		seq, err := ctx.DictIterate(d.cell, []byte(key))
		if err != nil {
			return nil, err
		}
		var keys []string
		for k := range seq {
			keys = append(keys, string(k))
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("unknown dict op %q", op)
	}
}
