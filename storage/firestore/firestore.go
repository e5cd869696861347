// Package firestore provides a Firestore implementation of the
// quota.Storage and chat.Store interfaces for production persistence.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/revlinehq/scotty/pkg/chat"
	"github.com/revlinehq/scotty/pkg/quota"
)

// Storage implements quota.Storage and chat.Store using Google Cloud Firestore.
type Storage struct {
	client                  *firestore.Client
	usageCollection         string
	entitlementsCollection  string
	conversationsCollection string
}

// Config holds Firestore storage configuration.
type Config struct {
	// UsageCollection is the collection for usage counters
	// Default: "usage_counters"
	UsageCollection string

	// EntitlementsCollection is the collection for user entitlements
	// Default: "entitlements"
	EntitlementsCollection string

	// ConversationsCollection is the collection for conversation logs
	// Default: "conversations"
	ConversationsCollection string
}

// New creates a new Firestore storage adapter.
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.UsageCollection == "" {
		config.UsageCollection = "usage_counters"
	}
	if config.EntitlementsCollection == "" {
		config.EntitlementsCollection = "entitlements"
	}
	if config.ConversationsCollection == "" {
		config.ConversationsCollection = "conversations"
	}

	return &Storage{
		client:                  client,
		usageCollection:         config.UsageCollection,
		entitlementsCollection:  config.EntitlementsCollection,
		conversationsCollection: config.ConversationsCollection,
	}, nil
}

// GetUsage implements quota.Storage.
func (s *Storage) GetUsage(ctx context.Context, userID string, feature quota.Feature) (*quota.Usage, error) {
	doc := s.usageDoc(userID, feature)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, quota.ErrUsageNotFound
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	if !snap.Exists() {
		return nil, quota.ErrUsageNotFound
	}

	data := snap.Data()
	return &quota.Usage{
		UserID:    userID,
		Feature:   feature,
		PeriodKey: getString(data, "periodKey"),
		Count:     getInt(data, "count"),
		UpdatedAt: getTime(data, "updatedAt"),
	}, nil
}

// PutUsage implements quota.Storage. A plain merge-set, no transaction:
// the manager's read-then-write race is accepted by design.
func (s *Storage) PutUsage(ctx context.Context, usage *quota.Usage) error {
	if usage == nil || usage.UserID == "" {
		return fmt.Errorf("invalid usage record")
	}

	doc := s.usageDoc(usage.UserID, usage.Feature)
	_, err := doc.Set(ctx, map[string]interface{}{
		"periodKey": usage.PeriodKey,
		"count":     usage.Count,
		"updatedAt": usage.UpdatedAt,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to put usage: %w", err)
	}
	return nil
}

// GetEntitlement implements quota.Storage.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*quota.Entitlement, error) {
	doc := s.client.Collection(s.entitlementsCollection).Doc(userID)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, quota.ErrEntitlementNotFound
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	if !snap.Exists() {
		return nil, quota.ErrEntitlementNotFound
	}

	data := snap.Data()
	ent := &quota.Entitlement{
		UserID:    userID,
		Tier:      quota.ParseTier(getString(data, "tier")),
		UpdatedAt: getTime(data, "updatedAt"),
	}
	if expiresAt, ok := data["expiresAt"].(time.Time); ok && !expiresAt.IsZero() {
		ent.ExpiresAt = &expiresAt
	}
	return ent, nil
}

// SetEntitlement implements quota.Storage.
func (s *Storage) SetEntitlement(ctx context.Context, ent *quota.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return fmt.Errorf("invalid entitlement")
	}

	data := map[string]interface{}{
		"tier":      string(ent.Tier),
		"updatedAt": ent.UpdatedAt,
	}
	if ent.ExpiresAt != nil {
		data["expiresAt"] = *ent.ExpiresAt
	}

	_, err := s.client.Collection(s.entitlementsCollection).Doc(ent.UserID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set entitlement: %w", err)
	}
	return nil
}

// AppendMessages implements chat.Store. Each message becomes its own
// document under the conversation, ordered by a sequence timestamp.
func (s *Storage) AppendMessages(ctx context.Context, userID, conversationID string, msgs ...chat.Message) error {
	col := s.conversationCol(userID, conversationID)
	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, _, err := col.Add(ctx, map[string]interface{}{
			"role":      string(m.Role),
			"content":   m.Content,
			"imageUrl":  m.ImageURL,
			"createdAt": createdAt,
		})
		if err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}
	return nil
}

// Messages implements chat.Store.
func (s *Storage) Messages(ctx context.Context, userID, conversationID string) ([]chat.Message, error) {
	iter := s.conversationCol(userID, conversationID).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []chat.Message
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read messages: %w", err)
		}
		data := snap.Data()
		out = append(out, chat.Message{
			Role:      chat.Role(getString(data, "role")),
			Content:   getString(data, "content"),
			ImageURL:  getString(data, "imageUrl"),
			CreatedAt: getTime(data, "createdAt"),
		})
	}
	return out, nil
}

func (s *Storage) usageDoc(userID string, feature quota.Feature) *firestore.DocumentRef {
	return s.client.Collection(s.usageCollection).Doc(userID + "_" + string(feature))
}

func (s *Storage) conversationCol(userID, conversationID string) *firestore.CollectionRef {
	return s.client.Collection(s.conversationsCollection).
		Doc(userID).
		Collection("threads").
		Doc(conversationID).
		Collection("messages")
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
