package streaming

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zoneinfo/server/internal/snapshot"
	"github.com/zoneinfo/server/internal/world"
)

// ErrSubscriptionNotFound is returned for unknown subscription ids.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Manager coordinates snapshot view subscriptions.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	defaults      snapshot.Options
	seq           atomic.Uint64
	logger        *slog.Logger
}

// Subscription tracks the view one connection asked for.
type Subscription struct {
	ID        string
	ConnID    string
	Options   snapshot.Options
	LastPass  uint64 // last pass delivered
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionRequest is sent by clients to begin or change a view. Omitted
// fields fall back to the server defaults.
type SubscriptionRequest struct {
	District       *int  `json:"district,omitempty" validate:"omitempty,gte=0,lte=128"`
	Percent        *bool `json:"percent,omitempty"`
	IncludeUnzoned *bool `json:"include_unzoned,omitempty"`
}

// SubscriptionPlan captures the server response to a subscription.
type SubscriptionPlan struct {
	SubscriptionID string           `json:"subscription_id"`
	Options        snapshot.Options `json:"options"`
}

var validate = validator.New()

// NewManager builds a manager applying defaults to omitted request fields.
func NewManager(defaults snapshot.Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		defaults:      defaults,
		logger:        logger.With("component", "stream"),
	}
}

// Resolve validates req and fills omitted fields from base.
func Resolve(base snapshot.Options, req SubscriptionRequest) (snapshot.Options, error) {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return base, fmt.Errorf("%s must be between 0 and %d", "district", world.DistrictEntireCity)
		}
		return base, err
	}
	opts := base
	if req.District != nil {
		opts.District = uint8(*req.District)
	}
	if req.Percent != nil {
		opts.Percent = *req.Percent
	}
	if req.IncludeUnzoned != nil {
		opts.IncludeUnzoned = *req.IncludeUnzoned
	}
	return opts, nil
}

// Subscribe validates the request and registers a subscription for connID.
func (m *Manager) Subscribe(connID string, req SubscriptionRequest) (*SubscriptionPlan, error) {
	if connID == "" {
		return nil, fmt.Errorf("connection id is required")
	}
	opts, err := Resolve(m.defaults, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sub := &Subscription{
		ID:        fmt.Sprintf("sub_%d_%d", m.seq.Add(1), now.UnixNano()),
		ConnID:    connID,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.subscriptions[sub.ID] = sub
	m.mu.Unlock()

	m.logger.Debug("subscribed", "subscription", sub.ID, "conn", connID, "district", opts.District)
	return &SubscriptionPlan{SubscriptionID: sub.ID, Options: opts}, nil
}

// Update changes the view of an existing subscription. The next publish
// delivers the new view even if its pass was already sent.
func (m *Manager) Update(connID, subscriptionID string, req SubscriptionRequest) (*SubscriptionPlan, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
	}
	if sub.ConnID != connID {
		return nil, fmt.Errorf("subscription %s does not belong to this connection", subscriptionID)
	}
	opts, err := Resolve(sub.Options, req)
	if err != nil {
		return nil, err
	}
	sub.Options = opts
	sub.LastPass = 0
	sub.UpdatedAt = time.Now()
	return &SubscriptionPlan{SubscriptionID: sub.ID, Options: opts}, nil
}

// Unsubscribe removes one subscription of connID.
func (m *Manager) Unsubscribe(connID, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok || sub.ConnID != connID {
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
	}
	delete(m.subscriptions, subscriptionID)
	return nil
}

// RemoveConnection drops every subscription of connID and returns how many
// were removed.
func (m *Manager) RemoveConnection(connID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sub := range m.subscriptions {
		if sub.ConnID == connID {
			delete(m.subscriptions, id)
			removed++
		}
	}
	return removed
}

// GetSubscription returns a copy of a subscription.
func (m *Manager) GetSubscription(subscriptionID string) (Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
	}
	return *sub, nil
}

// Due returns copies of the subscriptions that have not yet received pass
// and marks them as delivered, ordered by id.
func (m *Manager) Due(pass uint64) []Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Subscription
	for _, sub := range m.subscriptions {
		if sub.LastPass >= pass && pass != 0 {
			continue
		}
		sub.LastPass = pass
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live subscriptions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}
