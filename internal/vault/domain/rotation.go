package domain

import (
	"github.com/pgquerytool/credvault/internal/errors"
)

// ErrRotationIncomplete indicates a master key rotation stopped before every
// profile was migrated. The previous key is retained, so unmigrated entries
// stay decryptable; the report names the profiles to retry.
var ErrRotationIncomplete = errors.Wrap(errors.ErrConflict, "rotation incomplete")

// RotationReport describes the outcome of a master key rotation.
//
// Migrated lists every profile rewrapped under the new key. Failed lists the
// profiles that could not be migrated together with a diagnostic reason
// (never containing secret material). When Failed is non-empty the retired
// key is kept so the failed entries remain readable.
type RotationReport struct {
	NewKeyID string
	Migrated []string
	Failed   []ProfileFailure
}

// ProfileFailure names one profile that could not be migrated and why.
type ProfileFailure struct {
	ProfileID string
	Reason    string
}

// Ok reports whether every profile was migrated.
func (r *RotationReport) Ok() bool {
	return len(r.Failed) == 0
}
