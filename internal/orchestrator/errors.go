package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition marks an event whose expected source state does
	// not match the task's current status. Reported, never fatal.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrContractViolation marks malformed collaborator input (score out of
	// range, unknown CI status). A programming error in a collaborator, so
	// it fails the current call loudly instead of being clamped.
	ErrContractViolation = errors.New("contract violation")

	// ErrEvaluationTimeout and ErrRankingTimeout mark an external dependency
	// exceeding its bound. No transition is committed, so replaying the same
	// event is safe.
	ErrEvaluationTimeout = errors.New("evaluation timed out")
	ErrRankingTimeout    = errors.New("ranking timed out")
)

func illegalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalTransition, fmt.Sprintf(format, args...))
}

func violationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether the caller may safely re-deliver the same event.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEvaluationTimeout) || errors.Is(err, ErrRankingTimeout)
}
