package workflow

import (
	"onboard/internal/objectstore"
	"onboard/internal/process/models"
	dErrors "onboard/pkg/domain-errors"
)

// uploadWindow lists the statuses at which each artifact may still be
// (re)placed. Once the stage that reads an artifact has committed, the bytes
// it judged are frozen.
var uploadWindow = map[objectstore.Purpose][]models.Status{
	objectstore.PurposeIDDocument: {models.StatusInitiated, models.StatusDetailsCollected},
	objectstore.PurposeSelfie:     {models.StatusInitiated, models.StatusDetailsCollected, models.StatusIDVerified},
}

// CheckUpload returns a conflict when purpose can no longer be uploaded for
// a process at status.
func CheckUpload(status models.Status, purpose objectstore.Purpose) error {
	for _, s := range uploadWindow[purpose] {
		if s == status {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeConflict, string(purpose)+" can no longer be uploaded, process is "+string(status))
}
