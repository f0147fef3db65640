package server

import (
	"context"
	"sync"

	"github.com/dyluth/roost/internal/session"
	"github.com/dyluth/roost/pkg/board"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// registry holds the session controller of every presentation currently
// being presented through this server.
type registry struct {
	ctx   context.Context
	store session.Store
	clock clockwork.Clock

	mu          sync.Mutex
	controllers map[string]*session.Controller
}

func newRegistry(ctx context.Context, store session.Store, clock clockwork.Clock) *registry {
	return &registry{
		ctx:         ctx,
		store:       store,
		clock:       clock,
		controllers: make(map[string]*session.Controller),
	}
}

// get returns the controller for p, creating and restoring it on first use.
// A cached controller that was closed is replaced.
func (r *registry) get(ctx context.Context, p *board.Presentation) (*session.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[p.ID]; ok {
		if !c.Closed() {
			return c, nil
		}
		delete(r.controllers, p.ID)
	}

	c, err := session.NewController(r.ctx, r.store, p, session.WithClock(r.clock))
	if err != nil {
		return nil, err
	}
	if err := c.Restore(ctx); err != nil {
		c.Close()
		return nil, err
	}

	r.controllers[p.ID] = c
	log.Info().Str("presentation_id", p.ID).Int("presenting", len(r.controllers)).Msg("presenter attached")
	return c, nil
}

// lookup returns the controller for id if one is running.
func (r *registry) lookup(id string) (*session.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[id]
	return c, ok
}

// evict stops and forgets the controller for id. The stored session is left
// alone; the next get restores it against the current slides.
func (r *registry) evict(id string) {
	r.mu.Lock()
	c, ok := r.controllers[id]
	delete(r.controllers, id)
	r.mu.Unlock()

	if ok {
		c.Close()
		log.Info().Str("presentation_id", id).Msg("presenter detached")
	}
}

func (r *registry) closeAll() {
	r.mu.Lock()
	controllers := r.controllers
	r.controllers = make(map[string]*session.Controller)
	r.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
}
