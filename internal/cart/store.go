package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/cache"
	"github.com/adilrza0/qusamba-sub001/internal/metrics"
	"github.com/adilrza0/qusamba-sub001/internal/models"
)

// Store persists one State per cart session. Transitions for a session are
// assumed to arrive one at a time; concurrent writers to the same session
// are last-write-wins.
type Store struct {
	kv      cache.KV
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Collectors
}

func NewStore(kv cache.KV, ttl time.Duration, log *zap.Logger, m *metrics.Collectors) *Store {
	return &Store{kv: kv, ttl: ttl, log: log, metrics: m}
}

func storageKey(session string) string {
	return "cart:" + session
}

type persisted struct {
	Items []models.LineItem `json:"items"`
}

// Load returns the stored cart, or an empty one when nothing usable is
// stored. Only backend failures are errors.
func (s *Store) Load(ctx context.Context, session string) (State, error) {
	raw, found, err := s.kv.Get(ctx, storageKey(session))
	if err != nil {
		return Empty(), errors.Wrap(err, "load cart")
	}
	if !found {
		return Empty(), nil
	}

	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn("discarding unreadable cart", zap.String("session", session), zap.Error(err))
		return Empty(), nil
	}
	state, ok := Restore(p.Items)
	if !ok {
		s.log.Warn("discarding inconsistent cart", zap.String("session", session))
		return Empty(), nil
	}
	return state, nil
}

// Dispatch applies cmd to the session's cart and persists the result.
func (s *Store) Dispatch(ctx context.Context, session string, cmd Command) (State, error) {
	current, err := s.Load(ctx, session)
	if err != nil {
		return Empty(), err
	}

	next := Reduce(current, cmd)
	if err := s.save(ctx, session, next); err != nil {
		return current, err
	}

	if s.metrics != nil {
		s.metrics.CartTransitions.WithLabelValues(CommandName(cmd)).Inc()
	}
	s.log.Debug("cart transition",
		zap.String("session", session),
		zap.String("command", CommandName(cmd)),
		zap.Int("item_count", next.ItemCount),
		zap.String("total", next.Total.StringFixed(2)),
	)
	return next, nil
}

// Discard drops the session's cart once the order has been placed.
func (s *Store) Discard(ctx context.Context, session string) error {
	if err := s.kv.Delete(ctx, storageKey(session)); err != nil {
		return errors.Wrap(err, "discard cart")
	}
	if s.metrics != nil {
		s.metrics.CartTransitions.WithLabelValues("discard").Inc()
	}
	s.log.Debug("cart discarded", zap.String("session", session))
	return nil
}

func (s *Store) save(ctx context.Context, session string, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	if err := s.kv.Set(ctx, storageKey(session), raw, s.ttl); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}
