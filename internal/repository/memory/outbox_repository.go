package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/google/uuid"
)

type OutboxRepository struct {
	s *Store
}

func NewOutboxRepository(s *Store) *OutboxRepository {
	return &OutboxRepository{s: s}
}

func (r *OutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	return r.s.withUnit(ctx, func(u *unit) error {
		cp := *entry
		u.outbox = append(u.outbox, &cp)
		return nil
	})
}

func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var pending []*outbox.Entry
	for _, e := range r.s.outbox {
		if e.Status == outbox.StatusPending {
			cp := *e
			pending = append(pending, &cp)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.outbox {
		if e.ID == id {
			now := time.Now().UTC()
			e.Status = outbox.StatusPublished
			e.PublishedAt = &now
			return nil
		}
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.outbox {
		if e.ID == id {
			e.RetryCount++
			if e.Exhausted() {
				e.Status = outbox.StatusFailed
			}
			return nil
		}
	}
	return nil
}
