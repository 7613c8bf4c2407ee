// Package program loads and runs instruction streams: the documents a
// compiler emits to describe which actors to spawn and which messages to
// inject into a running actor system.
//
// A stream is YAML (or JSON, which is valid YAML):
//
//	abi: ">=1.0.0 <2.0.0"
//	instructions:
//	  - spawn: {name: view, behavior: logger, ui: true}
//	  - spawn: {name: relay, behavior: forward, args: {to: view}}
//	  - send: {to: relay, payload: hello}
//	  - terminate: relay
package program

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Program errors
var (
	ErrEmptyProgram     = errors.New("program has no instructions")
	ErrMissingABI       = errors.New("program does not declare an abi constraint")
	ErrIncompatibleABI  = errors.New("program abi is incompatible with the runtime")
	ErrInvalidOperation = errors.New("instruction must have exactly one operation")
	ErrDuplicateName    = errors.New("actor name spawned twice")
	ErrUnknownActor     = errors.New("instruction references an actor that was not spawned")
	ErrUnknownBehavior  = errors.New("unknown behavior")
)

// Program is a decoded instruction stream.
type Program struct {
	ABI          string        `yaml:"abi" json:"abi"`
	Instructions []Instruction `yaml:"instructions" json:"instructions"`
}

// Instruction holds exactly one operation.
type Instruction struct {
	Spawn     *Spawn `yaml:"spawn,omitempty" json:"spawn,omitempty"`
	Send      *Send  `yaml:"send,omitempty" json:"send,omitempty"`
	Terminate string `yaml:"terminate,omitempty" json:"terminate,omitempty"`
}

// Spawn creates a named actor running a registered behavior.
type Spawn struct {
	Name     string         `yaml:"name" json:"name"`
	Behavior string         `yaml:"behavior" json:"behavior"`
	UI       bool           `yaml:"ui,omitempty" json:"ui,omitempty"`
	Args     map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
}

// Send injects a user message. From is optional; when set, replies go to
// that actor.
type Send struct {
	From    string `yaml:"from,omitempty" json:"from,omitempty"`
	To      string `yaml:"to" json:"to"`
	Payload any    `yaml:"payload" json:"payload"`
}

// Op names the operation of the instruction.
func (in Instruction) Op() string {
	switch {
	case in.Spawn != nil:
		return "spawn"
	case in.Send != nil:
		return "send"
	case in.Terminate != "":
		return "terminate"
	default:
		return "none"
	}
}

func (in Instruction) ops() int {
	n := 0
	if in.Spawn != nil {
		n++
	}
	if in.Send != nil {
		n++
	}
	if in.Terminate != "" {
		n++
	}
	return n
}

// Decode reads a program. Unknown fields are rejected.
func Decode(r io.Reader) (*Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Program
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyProgram
		}
		return nil, fmt.Errorf("failed to decode program: %w", err)
	}
	return &p, nil
}

// Load reads a program from a file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks the structure of the program: one operation per
// instruction, unique actor names, and references only to actors spawned by
// an earlier instruction.
func (p *Program) Validate() error {
	if len(p.Instructions) == 0 {
		return ErrEmptyProgram
	}

	spawned := make(map[string]bool)
	for i, in := range p.Instructions {
		if in.ops() != 1 {
			return fmt.Errorf("instruction %d: %w", i, ErrInvalidOperation)
		}
		switch {
		case in.Spawn != nil:
			if in.Spawn.Name == "" {
				return fmt.Errorf("instruction %d: spawn needs a name", i)
			}
			if in.Spawn.Behavior == "" {
				return fmt.Errorf("instruction %d: spawn %q needs a behavior", i, in.Spawn.Name)
			}
			if spawned[in.Spawn.Name] {
				return fmt.Errorf("instruction %d: %w: %q", i, ErrDuplicateName, in.Spawn.Name)
			}
			spawned[in.Spawn.Name] = true
		case in.Send != nil:
			if !spawned[in.Send.To] {
				return fmt.Errorf("instruction %d: %w: %q", i, ErrUnknownActor, in.Send.To)
			}
			if in.Send.From != "" && !spawned[in.Send.From] {
				return fmt.Errorf("instruction %d: %w: %q", i, ErrUnknownActor, in.Send.From)
			}
		default:
			if !spawned[in.Terminate] {
				return fmt.Errorf("instruction %d: %w: %q", i, ErrUnknownActor, in.Terminate)
			}
		}
	}
	return nil
}

// WorkerActors returns the number of non-UI actors the program spawns.
func (p *Program) WorkerActors() int {
	n := 0
	for _, in := range p.Instructions {
		if in.Spawn != nil && !in.Spawn.UI {
			n++
		}
	}
	return n
}

// UIActors returns the number of UI actors the program spawns.
func (p *Program) UIActors() int {
	n := 0
	for _, in := range p.Instructions {
		if in.Spawn != nil && in.Spawn.UI {
			n++
		}
	}
	return n
}
