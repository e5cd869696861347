package quota

import "errors"

var (
	// ErrStorageUnavailable is returned when storage is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUsageNotFound is returned by storage when no counter exists yet
	ErrUsageNotFound = errors.New("usage not found")

	// ErrEntitlementNotFound is returned when user has no stored entitlement
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// ErrInvalidUser is returned for an empty user ID
	ErrInvalidUser = errors.New("invalid user id")
)
