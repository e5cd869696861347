package quota_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/revlinehq/scotty/pkg/quota"
	"github.com/revlinehq/scotty/storage/memory"
)

func newTestManager(t *testing.T, now func() time.Time) *quota.Manager {
	t.Helper()

	manager, err := quota.NewManager(memory.New(), quota.Config{
		Policy: quota.DefaultPolicy(),
		Now:    now,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return manager
}

func TestNewManager(t *testing.T) {
	manager, err := quota.NewManager(memory.New(), quota.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if manager == nil {
		t.Fatal("Expected non-nil manager")
	}

	_, err = quota.NewManager(nil, quota.Config{})
	if err != quota.ErrStorageUnavailable {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}
}

func TestManager_CheckAndIncrement(t *testing.T) {
	manager := newTestManager(t, nil)
	ctx := context.Background()

	// Plus tier: 20 image analyses per month
	for i := 0; i < 20; i++ {
		d := manager.Check(ctx, "user1", quota.FeatureImages, quota.TierPlus)
		if !d.Allowed {
			t.Fatalf("Check denied at use %d, expected allowed", i)
		}
		if d.Used != i {
			t.Fatalf("Expected used=%d, got %d", i, d.Used)
		}

		count, err := manager.Increment(ctx, "user1", quota.FeatureImages, quota.TierPlus)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if count != i+1 {
			t.Fatalf("Expected count=%d, got %d", i+1, count)
		}
	}

	d := manager.Check(ctx, "user1", quota.FeatureImages, quota.TierPlus)
	if d.Allowed {
		t.Error("Expected denial at limit")
	}
	if d.Remaining() != 0 {
		t.Errorf("Expected remaining=0, got %d", d.Remaining())
	}
}

func TestManager_CheckIsReadOnly(t *testing.T) {
	manager := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		manager.Check(ctx, "user1", quota.FeatureMessages, quota.TierFree)
	}

	d := manager.Check(ctx, "user1", quota.FeatureMessages, quota.TierFree)
	if d.Used != 0 {
		t.Errorf("Repeated checks changed the counter: used=%d", d.Used)
	}
}

func TestManager_UnlimitedNeverDenies(t *testing.T) {
	manager := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		d := manager.Check(ctx, "user1", quota.FeatureMessages, quota.TierPlus)
		if !d.Allowed {
			t.Fatalf("Unlimited feature denied at use %d", i)
		}
		if d.Remaining() != -1 {
			t.Fatalf("Expected remaining=-1 for unlimited, got %d", d.Remaining())
		}
		if _, err := manager.Increment(ctx, "user1", quota.FeatureMessages, quota.TierPlus); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}
}

func TestManager_ZeroLimitDeniesFirstUse(t *testing.T) {
	manager := newTestManager(t, nil)
	ctx := context.Background()

	// Free tier has no image analyses at all
	d := manager.Check(ctx, "user1", quota.FeatureImages, quota.TierFree)
	if d.Allowed {
		t.Error("Expected zero-limit feature to deny first use")
	}

	// Unknown tiers resolve to limit 0
	d = manager.Check(ctx, "user1", quota.FeatureImages, quota.Tier("enterprise"))
	if d.Allowed {
		t.Error("Expected unknown tier to deny")
	}
}

func TestManager_PeriodRollover(t *testing.T) {
	now := time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	manager := newTestManager(t, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := manager.Increment(ctx, "user1", quota.FeatureSounds, quota.TierPlus); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	d := manager.Check(ctx, "user1", quota.FeatureSounds, quota.TierPlus)
	if d.Allowed {
		t.Fatal("Expected denial at the 5-sound monthly cap")
	}

	// New month: the stale counter reads as zero without any write
	now = time.Date(2024, 6, 1, 0, 0, 1, 0, time.UTC)
	d = manager.Check(ctx, "user1", quota.FeatureSounds, quota.TierPlus)
	if !d.Allowed {
		t.Fatal("Expected allowance after month rollover")
	}
	if d.Used != 0 {
		t.Errorf("Expected used=0 after rollover, got %d", d.Used)
	}

	// The next increment rewrites the period key and restarts at 1
	count, err := manager.Increment(ctx, "user1", quota.FeatureSounds, quota.TierPlus)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected restart at 1, got %d", count)
	}
}

func TestManager_DailyUploadRollover(t *testing.T) {
	now := time.Date(2024, 5, 30, 23, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	manager := newTestManager(t, clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := manager.Increment(ctx, "user1", quota.FeatureUploads, quota.TierFree); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}
	if d := manager.Check(ctx, "user1", quota.FeatureUploads, quota.TierFree); d.Allowed {
		t.Fatal("Expected denial at the daily upload cap")
	}

	now = now.Add(2 * time.Hour) // past midnight UTC
	if d := manager.Check(ctx, "user1", quota.FeatureUploads, quota.TierFree); !d.Allowed {
		t.Fatal("Expected allowance the next day")
	}
}

func TestManager_LifetimeMessagesNeverReset(t *testing.T) {
	now := time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	manager := newTestManager(t, clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := manager.Increment(ctx, "user1", quota.FeatureMessages, quota.TierFree); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}
	if d := manager.Check(ctx, "user1", quota.FeatureMessages, quota.TierFree); d.Allowed {
		t.Fatal("Expected denial at the lifetime message cap")
	}

	// A year later the free allowance is still spent
	now = now.AddDate(1, 0, 0)
	if d := manager.Check(ctx, "user1", quota.FeatureMessages, quota.TierFree); d.Allowed {
		t.Error("Lifetime counter reset unexpectedly")
	}
}

// failingStorage errors on every read but accepts writes, to exercise
// the fail-open path.
type failingStorage struct {
	*memory.Storage
	readErr error
}

func (f *failingStorage) GetUsage(ctx context.Context, userID string, feature quota.Feature) (*quota.Usage, error) {
	return nil, f.readErr
}

func TestManager_FailOpenOnStorageError(t *testing.T) {
	storage := &failingStorage{
		Storage: memory.New(),
		readErr: errors.New("deadline exceeded"),
	}
	manager, err := quota.NewManager(storage, quota.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ctx := context.Background()

	// Reads fail, so a capped feature behaves as if unused
	d := manager.Check(ctx, "user1", quota.FeatureImages, quota.TierPlus)
	if !d.Allowed {
		t.Error("Expected fail-open allowance on storage read error")
	}
	if d.Used != 0 {
		t.Errorf("Expected used=0 on read error, got %d", d.Used)
	}

	// Increment still lands (the write path works); the count restarts
	// at 1 because the failed read counted as zero
	count, err := manager.Increment(ctx, "user1", quota.FeatureImages, quota.TierPlus)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count=1, got %d", count)
	}
}

func TestManager_Tier(t *testing.T) {
	now := time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC)
	manager := newTestManager(t, func() time.Time { return now })
	ctx := context.Background()

	// No entitlement stored
	if tier := manager.Tier(ctx, "nobody"); tier != quota.TierFree {
		t.Errorf("Expected free tier for unknown user, got %s", tier)
	}

	// Active entitlement
	expires := now.Add(24 * time.Hour)
	err := manager.SetEntitlement(ctx, &quota.Entitlement{
		UserID:    "user1",
		Tier:      quota.TierClub,
		ExpiresAt: &expires,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("SetEntitlement failed: %v", err)
	}
	if tier := manager.Tier(ctx, "user1"); tier != quota.TierClub {
		t.Errorf("Expected club tier, got %s", tier)
	}

	// Expired entitlement falls back to free
	expired := now.Add(-time.Hour)
	_ = manager.SetEntitlement(ctx, &quota.Entitlement{
		UserID:    "user2",
		Tier:      quota.TierPlus,
		ExpiresAt: &expired,
		UpdatedAt: now,
	})
	if tier := manager.Tier(ctx, "user2"); tier != quota.TierFree {
		t.Errorf("Expected free tier for expired entitlement, got %s", tier)
	}

	// No expiry means the entitlement stands until replaced
	_ = manager.SetEntitlement(ctx, &quota.Entitlement{
		UserID:    "user3",
		Tier:      quota.TierTrackMode,
		UpdatedAt: now,
	})
	if tier := manager.Tier(ctx, "user3"); tier != quota.TierTrackMode {
		t.Errorf("Expected track_mode tier, got %s", tier)
	}
}

func TestManager_IncrementRequiresUser(t *testing.T) {
	manager := newTestManager(t, nil)

	_, err := manager.Increment(context.Background(), "", quota.FeatureMessages, quota.TierFree)
	if err != quota.ErrInvalidUser {
		t.Errorf("Expected ErrInvalidUser, got %v", err)
	}
}
