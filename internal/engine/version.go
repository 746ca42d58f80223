package engine

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/rxq/internal/ir"
)

// CheckIRVersion reports a VERSION_MISMATCH DispatchError unless
// ir.IRVersion satisfies constraint. An empty constraint accepts any version.
func CheckIRVersion(constraint string) error {
	return CheckVersion(ir.IRVersion, constraint)
}

// CheckVersion is CheckIRVersion for an explicit version, used when
// replaying journals written by other compiler versions.
func CheckVersion(version, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &DispatchError{Code: ErrCodeVersionMismatch, Message: fmt.Sprintf("invalid IR constraint %q", constraint), Err: err}
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return &DispatchError{Code: ErrCodeVersionMismatch, Message: fmt.Sprintf("invalid IR version %q", version), Err: err}
	}
	if !c.Check(v) {
		return &DispatchError{
			Code:    ErrCodeVersionMismatch,
			Message: fmt.Sprintf("IR version %s does not satisfy %q", version, constraint),
		}
	}
	return nil
}

// VersionedEngine attaches an IR constraint to an engine that does not
// declare one itself.
type VersionedEngine struct {
	Engine
	Constraint string
}

// IRConstraint implements Versioned.
func (v VersionedEngine) IRConstraint() string { return v.Constraint }
