package store

import (
	"fmt"

	"onboard/internal/process/models"
	"onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// checkTransition rejects commits that start from a terminal status, stay
// put, return to INITIATED, or name a status outside the graph.
func checkTransition(id domain.ProcessID, u models.StageUpdate, expected models.Status) error {
	if expected.IsTerminal() {
		return fmt.Errorf("process %s is %s: %w", id, expected, sentinel.ErrInvalidState)
	}
	switch next := u.NextStatus; {
	case next == expected, next == models.StatusInitiated, !next.IsKnown():
		return fmt.Errorf("process %s cannot move from %s to %q: %w", id, expected, next, sentinel.ErrInvalidState)
	}
	return nil
}
