package arbiter

import (
	"fmt"
)

// Stage is a step of the pipeline.
type Stage int

const (
	StageCommitment Stage = iota
	StageSimulation
	StageAssembly
	StageVerification
	StageSetup
	StageProving
	StageStorage
	StageSettlement
)

func (s Stage) String() string {
	switch s {
	case StageCommitment:
		return "commitment"
	case StageSimulation:
		return "simulation"
	case StageAssembly:
		return "assembly"
	case StageVerification:
		return "verification"
	case StageSetup:
		return "setup"
	case StageProving:
		return "proving"
	case StageStorage:
		return "storage"
	case StageSettlement:
		return "settlement"
	default:
		return "unknown"
	}
}

// StageError is returned by the pipeline. It names the stage that failed and
// unwraps to the cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

func fail(s Stage, err error) error {
	return &StageError{Stage: s, Err: err}
}
