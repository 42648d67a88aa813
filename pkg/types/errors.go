package types

import "github.com/cockroachdb/errors"

// Error classes. Wrap concrete failures with errors.Mark so callers can
// branch with errors.Is without knowing which package produced them.
var (
	// ErrValidation marks configuration that was rejected before any round ran
	ErrValidation = errors.New("invalid configuration")

	// ErrTransient marks a failed ceph or rados call. It aborts the current
	// round only; the next round re-reads state and carries on.
	ErrTransient = errors.New("transient cluster error")

	// ErrUnknownNode marks a target that the cluster topology does not contain
	ErrUnknownNode = errors.New("unknown node")

	// ErrCleanupRefused marks a scratch pool deletion the cluster refused
	ErrCleanupRefused = errors.New("scratch pool deletion refused")
)

// IsTransient reports whether err should be retried on the next round
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) && !errors.Is(err, ErrUnknownNode)
}
