// Package rollouts implements the rollouts-state publisher and
// personalization assignment logging.
package rollouts

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/credentials"
	"github.com/rconfig/engine/internal/workerpool"
)

// Subscriber receives the activated container's rollouts state, once
// synthetically on registration and again on every subsequent activation.
type Subscriber interface {
	OnRolloutsStateChanged(c *container.Container)
}

// Publisher owns the rollouts-state subscriber registry and the
// personalization-logging dedup cache.
type Publisher struct {
	pool      *workerpool.Pool
	log       zerolog.Logger
	analytics credentials.AnalyticsLogger

	mu          sync.Mutex
	subscribers map[Subscriber]struct{}

	loggedMu sync.Mutex
	logged   map[string]string // parameter key -> last choiceId logged
}

// New constructs a Publisher. analytics may be nil, which disables
// personalization logging entirely.
func New(pool *workerpool.Pool, analytics credentials.AnalyticsLogger, log zerolog.Logger) *Publisher {
	return &Publisher{
		pool:        pool,
		log:         log,
		analytics:   analytics,
		subscribers: make(map[Subscriber]struct{}),
		logged:      make(map[string]string),
	}
}

// AddSubscriber registers s and, if current is non-nil, immediately
// delivers one synthetic state publication reflecting it.
func (p *Publisher) AddSubscriber(s Subscriber, current *container.Container) {
	p.mu.Lock()
	p.subscribers[s] = struct{}{}
	p.mu.Unlock()

	if current != nil {
		p.pool.Submit(func() { s.OnRolloutsStateChanged(current) })
	}
}

// RemoveSubscriber deregisters s.
func (p *Publisher) RemoveSubscriber(s Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, s)
}

// PublishActivated notifies every subscriber of a new activated
// container.
func (p *Publisher) PublishActivated(c *container.Container) {
	p.mu.Lock()
	subs := make([]Subscriber, 0, len(p.subscribers))
	for s := range p.subscribers {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s := s
		p.pool.Submit(func() { s.OnRolloutsStateChanged(c) })
	}
}

// LogPersonalizationIfNew emits one analytics event per distinct
// (key, choiceId) pair observed in this process, driven by the resolver's
// activated-lookup listener. A nil analytics collaborator or a key with
// no personalization metadata is a no-op.
func (p *Publisher) LogPersonalizationIfNew(key string, c *container.Container) {
	if p.analytics == nil || c == nil {
		return
	}
	meta, ok := c.Personalization(key)
	if !ok || meta.ChoiceID == "" {
		return
	}

	p.loggedMu.Lock()
	last, seen := p.logged[key]
	if seen && last == meta.ChoiceID {
		p.loggedMu.Unlock()
		return
	}
	p.logged[key] = meta.ChoiceID
	p.loggedMu.Unlock()

	armValue, _ := c.Get(key)
	p.pool.Submit(func() {
		p.analytics.LogAssignment(context.Background(), credentials.Assignment{
			Kind:              credentials.AssignmentPersonalization,
			ParameterKey:      key,
			PersonalizationID: meta.PersonalizationID,
			ChoiceID:          meta.ChoiceID,
			ArmValue:          armValue,
			ArmIndex:          meta.ArmIndex,
			Group:             meta.Group,
		})
	})
}
