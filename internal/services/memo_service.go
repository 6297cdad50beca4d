package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"birthdaymemo/internal/amqp"
	"birthdaymemo/internal/cache"
	"birthdaymemo/internal/core"
	applog "birthdaymemo/internal/log"
	"birthdaymemo/internal/metrics"
	"birthdaymemo/internal/records"
)

// Publisher announces saved records. *amqp.Client satisfies it.
type Publisher interface {
	PublishMemoSaved(ctx context.Context, msg *amqp.MemoSavedMessage) error
}

// MemoService runs the load-modify-save cycle for a user's record, with a
// short-lived read cache in front of the store.
type MemoService struct {
	store     records.Store
	cache     *cache.LRUCache[core.Record]
	loads     singleflight.Group
	publisher Publisher
	metrics   *metrics.Metrics
	events    *applog.StructuredLogger
}

type Option func(*MemoService)

// WithCache enables the record cache.
func WithCache(c *cache.LRUCache[core.Record]) Option {
	return func(s *MemoService) { s.cache = c }
}

// WithPublisher sends a notification after every successful save.
func WithPublisher(p Publisher) Option {
	return func(s *MemoService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *MemoService) { s.metrics = m }
}

func NewMemoService(store records.Store, opts ...Option) *MemoService {
	s := &MemoService{
		store:  store,
		events: applog.NewStructuredLogger(applog.FromContext(context.Background()).WithComponent(applog.ComponentMemo)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

// Load returns a copy of the user's record. Callers may mutate it freely.
func (s *MemoService) Load(ctx context.Context, username string) (core.Record, error) {
	key, err := records.SanitizeUsername(username)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if rec, ok := s.cache.Get(key); ok {
			s.metrics.RecordCacheHits.Inc()
			return rec.Clone(), nil
		}
		s.metrics.RecordCacheMisses.Inc()
	}

	v, err, shared := s.loads.Do(key, func() (interface{}, error) {
		rec, err := s.store.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(key, rec)
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load record for %s: %w", key, err)
	}
	if shared {
		slog.DebugContext(ctx, "Coalesced record load", "username", key)
	}
	return v.(core.Record).Clone(), nil
}

// Save merges the session's buffers for its year into the stored record and
// rewrites it. It returns the roles that were written; blank entries are skipped.
func (s *MemoService) Save(ctx context.Context, username string, session *core.FormSession) ([]core.Role, error) {
	key, err := records.SanitizeUsername(username)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateYear(session.Year); err != nil {
		s.metrics.SavesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	rec, err := s.store.Load(ctx, key)
	if err != nil {
		s.metrics.SavesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load record for %s: %w", key, err)
	}

	written := session.Apply(rec)

	if err := s.store.Save(ctx, key, rec); err != nil {
		s.metrics.SavesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("save record for %s: %w", key, err)
	}
	if s.cache != nil {
		s.cache.Delete(key)
	}

	s.metrics.SavesTotal.WithLabelValues("ok").Inc()
	roles := make([]string, len(written))
	for i, r := range written {
		roles[i] = r.String()
		s.metrics.EntriesWritten.WithLabelValues(r.String()).Inc()
	}
	s.events.LogMemoSaved(ctx, key, session.Year, roles)

	s.publish(ctx, key, session.Year, roles)
	return written, nil
}

func (s *MemoService) publish(ctx context.Context, username string, year int, roles []string) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewMemoSavedMessage(username, year, roles)
	if err := s.publisher.PublishMemoSaved(ctx, msg); err != nil {
		s.metrics.PublishFailures.Inc()
		slog.ErrorContext(ctx, "Failed to publish memo saved message",
			"username", username, "year", year, "error", err)
	}
}

// Ping reports store health when the store supports it.
func (s *MemoService) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
