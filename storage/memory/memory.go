// Package memory provides an in-memory implementation of the quota.Storage
// and chat.Store interfaces. It is primarily intended for testing and
// development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/revlinehq/scotty/pkg/chat"
	"github.com/revlinehq/scotty/pkg/quota"
)

// Storage implements quota.Storage and chat.Store using in-memory maps.
type Storage struct {
	mu            sync.RWMutex
	usage         map[string]*quota.Usage
	entitlements  map[string]*quota.Entitlement
	conversations map[string][]chat.Message
}

// New creates a new in-memory storage adapter.
func New() *Storage {
	return &Storage{
		usage:         make(map[string]*quota.Usage),
		entitlements:  make(map[string]*quota.Entitlement),
		conversations: make(map[string][]chat.Message),
	}
}

// GetUsage implements quota.Storage.
func (s *Storage) GetUsage(ctx context.Context, userID string, feature quota.Feature) (*quota.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usage, ok := s.usage[usageKey(userID, feature)]
	if !ok {
		return nil, quota.ErrUsageNotFound
	}

	// Return a copy to prevent external mutations
	usageCopy := *usage
	return &usageCopy, nil
}

// PutUsage implements quota.Storage.
func (s *Storage) PutUsage(ctx context.Context, usage *quota.Usage) error {
	if usage == nil || usage.UserID == "" {
		return fmt.Errorf("invalid usage record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	usageCopy := *usage
	s.usage[usageKey(usage.UserID, usage.Feature)] = &usageCopy
	return nil
}

// GetEntitlement implements quota.Storage.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*quota.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entitlements[userID]
	if !ok {
		return nil, quota.ErrEntitlementNotFound
	}

	entCopy := *ent
	return &entCopy, nil
}

// SetEntitlement implements quota.Storage.
func (s *Storage) SetEntitlement(ctx context.Context, ent *quota.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return fmt.Errorf("invalid entitlement")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entCopy := *ent
	s.entitlements[ent.UserID] = &entCopy
	return nil
}

// AppendMessages implements chat.Store.
func (s *Storage) AppendMessages(ctx context.Context, userID, conversationID string, msgs ...chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := convKey(userID, conversationID)
	s.conversations[key] = append(s.conversations[key], msgs...)
	return nil
}

// Messages implements chat.Store.
func (s *Storage) Messages(ctx context.Context, userID, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := convKey(userID, conversationID)
	out := make([]chat.Message, len(s.conversations[key]))
	copy(out, s.conversations[key])
	return out, nil
}

func usageKey(userID string, feature quota.Feature) string {
	return userID + ":" + string(feature)
}

func convKey(userID, conversationID string) string {
	return userID + ":" + conversationID
}
