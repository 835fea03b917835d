package inapp

import (
	"context"
	"strings"

	"techo_backend/internal/notification/sse"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type Service struct {
	store Store
	sse   *sse.Service
	log   *logger.Logger
}

// NewService creates the inbox service. stream may be nil.
func NewService(store Store, stream *sse.Service, log *logger.Logger) *Service {
	return &Service{store: store, sse: stream, log: log}
}

// Send stores d and, when the recipient has a stream open, pushes it.
func (s *Service) Send(ctx context.Context, d Draft) error {
	d.Title = strings.TrimSpace(d.Title)
	d.Body = strings.TrimSpace(d.Body)
	if d.UserID == uuid.Nil || d.Title == "" || d.Body == "" {
		return apperr.Validation("recipient, title and body are required").WithOp("inapp.Send")
	}
	if d.Level == "" {
		d.Level = LevelInfo
	}
	if !d.Level.valid() {
		return apperr.Validation("unknown notification level").WithOp("inapp.Send")
	}

	n, err := s.store.Insert(ctx, d)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to store notification", "error", err, "userId", d.UserID)
		return err
	}

	if s.sse != nil {
		ev := sse.Event{Type: sse.EventNotification, Message: n.Title, Data: n}
		if n.Resource != nil && n.Resource.Type == "incidence" {
			ev.IncidenceID = n.Resource.ID
		}
		s.sse.Publish(n.UserID, ev)
	}
	return nil
}

// Inbox returns page (1-based) of the user's notifications.
func (s *Service) Inbox(ctx context.Context, userID uuid.UUID, page, size int) (Page, error) {
	page = max(page, 1)
	if size < 1 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	items, total, err := s.store.Inbox(ctx, userID, size, (page-1)*size)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Notification{}
	}
	return Page{Items: items, Total: total, Page: page, Size: size}, nil
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}

// MarkAllRead returns how many notifications changed.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
