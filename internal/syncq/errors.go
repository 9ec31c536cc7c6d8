package syncq

import (
	"errors"
	"fmt"
)

// ErrMaxRetriesExceeded is the reason recorded on every dead letter.
var ErrMaxRetriesExceeded = errors.New("Max retries exceeded")

// SyncError summarizes a drain cycle that retained failed actions.
// The failed actions stay queued for the next cycle.
type SyncError struct {
	Failed    int
	Succeeded int
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("Failed to sync %d items. %d succeeded.", e.Failed, e.Succeeded)
}

// IsSyncError reports whether err carries a *SyncError.
// Uses errors.As to handle wrapped errors.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
