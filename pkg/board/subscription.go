package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// SessionEventKind says what happened to an active session.
type SessionEventKind string

const (
	// SessionEventUpdated carries the full session after an upsert
	SessionEventUpdated SessionEventKind = "updated"

	// SessionEventEnded means the session row was removed
	SessionEventEnded SessionEventKind = "ended"
)

// SessionEvent is published on the session_events channel of a presentation.
type SessionEvent struct {
	Kind           SessionEventKind `json:"kind"`
	PresentationID string           `json:"presentation_id"`
	Session        *ActiveSession   `json:"session,omitempty"`
}

// VoteEventKind says what happened to the vote log.
type VoteEventKind string

const (
	// VoteEventRecorded carries a newly appended vote
	VoteEventRecorded VoteEventKind = "recorded"

	// VoteEventReset means every vote of the presentation was deleted
	VoteEventReset VoteEventKind = "reset"
)

// VoteEvent is published on the vote_events channel of a presentation.
type VoteEvent struct {
	Kind           VoteEventKind `json:"kind"`
	PresentationID string        `json:"presentation_id"`
	Vote           *Vote         `json:"vote,omitempty"`
}

// Subscription represents an active Pub/Sub subscription.
// Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// SessionSubscription delivers session changes of one presentation.
type SessionSubscription = Subscription[SessionEvent]

// VoteSubscription delivers vote log changes of one presentation.
type VoteSubscription = Subscription[VoteEvent]

// Events returns the channel of decoded events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures; the subscription continues after errors.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeSessionEvents subscribes to session changes of a presentation.
// Context cancellation also stops the subscription.
func (c *Client) SubscribeSessionEvents(ctx context.Context, presentationID string) (*SessionSubscription, error) {
	return subscribe[SessionEvent](ctx, c, SessionEventsChannel(c.instanceName, presentationID), "session")
}

// SubscribeVoteEvents subscribes to vote log changes of a presentation.
func (c *Client) SubscribeVoteEvents(ctx context.Context, presentationID string) (*VoteSubscription, error) {
	return subscribe[VoteEvent](ctx, c, VoteEventsChannel(c.instanceName, presentationID), "vote")
}

// subscribe starts a goroutine that decodes JSON messages from channel.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub (at-most-once delivery).
func subscribe[T any](ctx context.Context, c *Client, channel, name string) (*Subscription[T], error) {
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s events: %w", name, err)
	}

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal %s event: %w", name, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
