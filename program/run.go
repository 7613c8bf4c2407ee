package program

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jina-lang/jinart/core"
)

// Run executes the instructions of p against sys in order and returns the
// IDs of the spawned actors by name. It does not wait for the messages it
// injects to be processed; use System.WaitIdle for that.
func Run(ctx context.Context, sys *core.System, p *Program, reg *Registry, logger *slog.Logger) (map[string]core.ActorID, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := reg.Resolve(p); err != nil {
		return nil, err
	}

	actors := make(map[string]core.ActorID)
	resolve := func(name string) (core.ActorID, error) {
		id, ok := actors[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownActor, name)
		}
		return id, nil
	}

	for i, in := range p.Instructions {
		if err := ctx.Err(); err != nil {
			return actors, err
		}

		switch {
		case in.Spawn != nil:
			b, err := reg.Build(in.Spawn.Behavior, in.Spawn.Args)
			if err != nil {
				return actors, fmt.Errorf("instruction %d: %w", i, err)
			}
			id, err := sys.Spawn(b, core.SpawnOptions{Name: in.Spawn.Name, UI: in.Spawn.UI})
			if err != nil {
				return actors, fmt.Errorf("instruction %d: spawn %q: %w", i, in.Spawn.Name, err)
			}
			actors[in.Spawn.Name] = id
			logger.Debug("spawned",
				"name", in.Spawn.Name,
				"behavior", in.Spawn.Behavior,
				"actor_id", id,
				"ui", in.Spawn.UI)

		case in.Send != nil:
			to, err := resolve(in.Send.To)
			if err != nil {
				return actors, fmt.Errorf("instruction %d: %w", i, err)
			}
			var from core.ActorID
			if in.Send.From != "" {
				if from, err = resolve(in.Send.From); err != nil {
					return actors, fmt.Errorf("instruction %d: %w", i, err)
				}
			}
			// A terminated target is not an error: the message is a dead
			// letter like any other send to a stopped actor.
			if err := sys.SendAs(from, to, in.Send.Payload); err != nil {
				logger.Warn("message dropped", "instruction", i, "to", in.Send.To, "error", err)
			}

		default:
			id, err := resolve(in.Terminate)
			if err != nil {
				return actors, fmt.Errorf("instruction %d: %w", i, err)
			}
			if err := sys.Terminate(id); err != nil {
				logger.Warn("terminate dropped", "instruction", i, "actor", in.Terminate, "error", err)
			}
		}
	}
	return actors, nil
}
