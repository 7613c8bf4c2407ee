package program

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/jina-lang/jinart/core"
)

// Check verifies that the runtime version satisfies the program's abi
// constraint.
func Check(p *Program) error {
	return CheckVersion(p, core.Version)
}

// CheckVersion verifies p against an explicit runtime version.
func CheckVersion(p *Program, version string) error {
	if p.ABI == "" {
		return ErrMissingABI
	}
	c, err := semver.NewConstraint(p.ABI)
	if err != nil {
		return fmt.Errorf("invalid abi constraint %q: %w", p.ABI, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid runtime version %q: %w", version, err)
	}
	if ok, errs := c.Validate(v); !ok {
		if len(errs) > 0 {
			return fmt.Errorf("%w: %v", ErrIncompatibleABI, errs[0])
		}
		return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleABI, v, c)
	}
	return nil
}
