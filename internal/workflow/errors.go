package workflow

import (
	"errors"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

var (
	// ErrTransitionConflict means another execution already advanced the
	// process. The caller abandons the transition.
	ErrTransitionConflict = errors.New("transition conflict")
	// ErrAwaitingDetails means the process cannot move until customer
	// details are submitted.
	ErrAwaitingDetails = errors.New("awaiting customer details")
)

// isValidation reports whether err is a malformed-input error that must
// reach the caller without running the stage.
func isValidation(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeValidation) ||
		dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
		dErrors.HasCode(err, dErrors.CodeBadRequest)
}

// isNotFound reports whether a stage failed on a missing referenced record.
func isNotFound(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound)
}

func conflict(msg string, cause error) error {
	return dErrors.Wrap(errors.Join(ErrTransitionConflict, cause), dErrors.CodeConflict, msg)
}

// reasonOf returns the outermost domain message of err, without its causes.
func reasonOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
