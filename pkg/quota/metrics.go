package quota

import "time"

// Metrics defines the interface for tracking quota operations.
type Metrics interface {
	// RecordCheck records a quota check and its outcome.
	RecordCheck(feature Feature, tier Tier, allowed bool)

	// RecordIncrement records a counter increment.
	RecordIncrement(feature Feature, tier Tier)

	// RecordStorageOperation records the duration and status of a storage operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)

	// RecordFailOpen records a storage failure that was treated as zero usage.
	RecordFailOpen(feature Feature)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordCheck(feature Feature, tier Tier, allowed bool)                    {}
func (n *NoopMetrics) RecordIncrement(feature Feature, tier Tier)                              {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}
func (n *NoopMetrics) RecordFailOpen(feature Feature)                                          {}
