// Package notification stores per-user notifications in the KV store and
// fans them out to connected sockets and, for high priority, web push.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifesync/lifesync/internal/kv"
	"github.com/lifesync/lifesync/internal/metrics"
	"github.com/lifesync/lifesync/internal/model"
	"github.com/lifesync/lifesync/internal/push"
	"github.com/lifesync/lifesync/internal/websocket"
)

// Retention is how long a notification is kept.
const Retention = 30 * 24 * time.Hour

// Publisher delivers realtime messages to a user's open sockets.
type Publisher interface {
	SendToUser(userID int64, msg websocket.Message)
}

// Pusher delivers web push payloads to a user's subscriptions.
type Pusher interface {
	SendToUser(ctx context.Context, userID int64, payload push.Payload) (int, error)
}

// ListOptions controls List paging.
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

type Service struct {
	store     kv.Store
	publisher Publisher
	pusher    Pusher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a notification service. publisher and pusher may be nil.
func NewService(store kv.Store, publisher Publisher, pusher Pusher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		pusher:    pusher,
		metrics:   m,
		logger:    logger.With("component", "notification"),
		now:       time.Now,
	}
}

func key(userID int64, id string) string {
	return fmt.Sprintf("notification:%d:%s", userID, id)
}

// Notify stores a notification and delivers it. Delivery failures are
// logged; only a storage failure is returned.
func (s *Service) Notify(ctx context.Context, userID int64, notifType, message, priority string, data map[string]any) (*model.Notification, error) {
	if priority == "" {
		priority = model.PriorityNormal
	}
	if data == nil {
		data = map[string]any{}
	}
	now := s.now().UTC()
	n := &model.Notification{
		ID:        fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8]),
		UserID:    userID,
		Type:      notifType,
		Message:   message,
		Priority:  priority,
		Data:      data,
		CreatedAt: now,
	}

	if err := kv.SetJSON(ctx, s.store, key(userID, n.ID), n, Retention); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	s.metrics.ObserveNotification(notifType)

	if s.publisher != nil {
		s.publisher.SendToUser(userID, websocket.NewMessage("notification", "created", 0, map[string]any{
			"notification": n,
		}))
	}

	if priority == model.PriorityHigh && s.pusher != nil {
		payload := push.Payload{
			Title: pushTitle(notifType),
			Body:  message,
			Tag:   notifType,
			Data:  map[string]any{"notification_id": n.ID},
		}
		if _, err := s.pusher.SendToUser(ctx, userID, payload); err != nil {
			s.logger.Warn("push notification", "user_id", userID, "type", notifType, "error", err)
		}
	}

	s.logger.Debug("notification created", "user_id", userID, "type", notifType, "priority", priority)
	return n, nil
}

func pushTitle(notifType string) string {
	switch notifType {
	case model.NotifTypeAutomationTriggered:
		return "Automation triggered"
	case model.NotifTypeRewardsGranted:
		return "New rewards"
	}
	return "LifeSync"
}

// List returns the user's live notifications, newest first.
func (s *Service) List(ctx context.Context, userID int64, opts ListOptions) ([]model.Notification, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	keys, err := s.store.Scan(ctx, fmt.Sprintf("notification:%d:*", userID))
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}

	var all []model.Notification
	for _, k := range keys {
		var n model.Notification
		if err := kv.GetJSON(ctx, s.store, k, &n); err != nil {
			// Expired between scan and get.
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load notification: %w", err)
		}
		if opts.UnreadOnly && n.Read {
			continue
		}
		all = append(all, n)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if opts.Offset >= len(all) {
		return []model.Notification{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[opts.Offset:end], nil
}

// MarkRead flags the given notifications as read and returns how many were
// updated. Unknown or expired ids are ignored.
func (s *Service) MarkRead(ctx context.Context, userID int64, ids []string) (int, error) {
	marked := 0
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, ":*?[") {
			continue
		}
		k := key(userID, id)
		var n model.Notification
		if err := kv.GetJSON(ctx, s.store, k, &n); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return marked, fmt.Errorf("load notification: %w", err)
		}
		if n.Read {
			continue
		}
		ttl := n.CreatedAt.Add(Retention).Sub(s.now())
		if ttl <= 0 {
			continue
		}
		n.Read = true
		if err := kv.SetJSON(ctx, s.store, k, n, ttl); err != nil {
			return marked, fmt.Errorf("update notification: %w", err)
		}
		marked++
	}
	return marked, nil
}
