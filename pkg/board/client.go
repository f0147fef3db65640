package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrDuplicateVote is returned by RecordVote when the voter already answered the slide.
	ErrDuplicateVote = errors.New("voter already answered this slide")

	// ErrStaleSession is returned by SaveSession when the stored revision moved on.
	ErrStaleSession = errors.New("active session was changed by another presenter")
)

// Client provides instance-scoped Redis operations for presentations, votes and sessions.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	now          func() time.Time
}

// NewClient creates a new board client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: roost instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		now:          time.Now,
	}, nil
}

// InstanceName returns the namespace this client reads and writes.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreatePresentation writes a new presentation and its slides.
// Timestamps are filled in when zero. Fails if the ID is already taken.
func (c *Client) CreatePresentation(ctx context.Context, p *Presentation) error {
	nowMs := c.now().UnixMilli()
	if p.CreatedAtMs == 0 {
		p.CreatedAtMs = nowMs
	}
	if p.UpdatedAtMs == 0 {
		p.UpdatedAtMs = p.CreatedAtMs
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid presentation: %w", err)
	}

	exists, err := c.PresentationExists(ctx, p.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("presentation %s already exists", p.ID)
	}

	if err := c.writePresentation(ctx, p, nil); err != nil {
		return fmt.Errorf("failed to write presentation to Redis: %w", err)
	}

	return nil
}

// SavePresentation replaces the title and slide list of an existing presentation.
// Slide IDs are preserved; slides missing from p.Slides are deleted and the
// order index is rewritten from the slice order.
// Returns redis.Nil if the presentation does not exist.
func (c *Client) SavePresentation(ctx context.Context, p *Presentation) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid presentation: %w", err)
	}

	hash, err := c.rdb.HGetAll(ctx, PresentationKey(c.instanceName, p.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to read presentation from Redis: %w", err)
	}
	if len(hash) == 0 {
		return redis.Nil
	}

	existing, err := HashToPresentation(hash)
	if err != nil {
		return fmt.Errorf("failed to deserialize presentation: %w", err)
	}

	// Ownership and creation time are not editable
	p.OwnerID = existing.OwnerID
	p.CreatedAtMs = existing.CreatedAtMs
	p.UpdatedAtMs = c.now().UnixMilli()

	oldSlideIDs, err := c.rdb.ZRange(ctx, SlideOrderKey(c.instanceName, p.ID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read slide order: %w", err)
	}

	if err := c.writePresentation(ctx, p, oldSlideIDs); err != nil {
		return fmt.Errorf("failed to update presentation in Redis: %w", err)
	}

	return nil
}

// writePresentation writes the presentation hash, slide hashes and indexes in one transaction.
func (c *Client) writePresentation(ctx context.Context, p *Presentation, oldSlideIDs []string) error {
	keep := make(map[string]bool, len(p.Slides))
	for i := range p.Slides {
		p.Slides[i].Order = i
		keep[p.Slides[i].ID] = true
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, PresentationKey(c.instanceName, p.ID), PresentationToHash(p))

		member := redis.Z{Score: float64(p.CreatedAtMs), Member: p.ID}
		pipe.ZAdd(ctx, PresentationsKey(c.instanceName), member)
		pipe.ZAdd(ctx, OwnerPresentationsKey(c.instanceName, p.OwnerID), member)

		for _, id := range oldSlideIDs {
			if !keep[id] {
				pipe.Del(ctx, SlideKey(c.instanceName, id))
			}
		}

		orderKey := SlideOrderKey(c.instanceName, p.ID)
		pipe.Del(ctx, orderKey)
		for i := range p.Slides {
			hash, err := SlideToHash(p.ID, &p.Slides[i])
			if err != nil {
				return err
			}
			slideKey := SlideKey(c.instanceName, p.Slides[i].ID)
			pipe.Del(ctx, slideKey)
			pipe.HSet(ctx, slideKey, hash)
			pipe.ZAdd(ctx, orderKey, redis.Z{Score: float64(i), Member: p.Slides[i].ID})
		}
		return nil
	})
	return err
}

// GetPresentation retrieves a presentation with its slides in order.
// Returns (nil, redis.Nil) if the presentation doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetPresentation(ctx context.Context, presentationID string) (*Presentation, error) {
	hash, err := c.rdb.HGetAll(ctx, PresentationKey(c.instanceName, presentationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presentation from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	p, err := HashToPresentation(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize presentation: %w", err)
	}

	slideIDs, err := c.rdb.ZRange(ctx, SlideOrderKey(c.instanceName, presentationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read slide order: %w", err)
	}

	if len(slideIDs) == 0 {
		return p, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(slideIDs))
	for i, id := range slideIDs {
		cmds[i] = pipe.HGetAll(ctx, SlideKey(c.instanceName, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read slides from Redis: %w", err)
	}

	for i, cmd := range cmds {
		slideHash := cmd.Val()
		if len(slideHash) == 0 {
			// Order index points at a slide that was removed; skip it
			continue
		}
		slide, err := HashToSlide(slideHash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize slide %s: %w", slideIDs[i], err)
		}
		p.Slides = append(p.Slides, *slide)
	}

	return p, nil
}

// PresentationExists checks if a presentation exists without fetching it.
func (c *Client) PresentationExists(ctx context.Context, presentationID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, PresentationKey(c.instanceName, presentationID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presentation existence: %w", err)
	}
	return exists > 0, nil
}

// ListPresentations returns an owner's presentations, newest first.
// An empty ownerID lists every presentation in the instance.
func (c *Client) ListPresentations(ctx context.Context, ownerID string) ([]*Presentation, error) {
	indexKey := PresentationsKey(c.instanceName)
	if ownerID != "" {
		indexKey = OwnerPresentationsKey(c.instanceName, ownerID)
	}

	ids, err := c.rdb.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presentation index: %w", err)
	}

	presentations := make([]*Presentation, 0, len(ids))
	for _, id := range ids {
		p, err := c.GetPresentation(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		presentations = append(presentations, p)
	}

	return presentations, nil
}

// ScanPresentations returns the IDs of presentations whose ID starts with prefix,
// oldest first. Matching is case-insensitive.
func (c *Client) ScanPresentations(ctx context.Context, prefix string) ([]string, error) {
	ids, err := c.rdb.ZRange(ctx, PresentationsKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presentation index: %w", err)
	}

	prefix = strings.ToLower(prefix)
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(strings.ToLower(id), prefix) {
			matches = append(matches, id)
		}
	}

	return matches, nil
}

// DeletePresentation removes a presentation with its slides, votes and session.
// Deleting a missing presentation is not an error.
func (c *Client) DeletePresentation(ctx context.Context, presentationID string) error {
	hash, err := c.rdb.HGetAll(ctx, PresentationKey(c.instanceName, presentationID)).Result()
	if err != nil {
		return fmt.Errorf("failed to read presentation from Redis: %w", err)
	}

	slideIDs, err := c.rdb.ZRange(ctx, SlideOrderKey(c.instanceName, presentationID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read slide order: %w", err)
	}

	voterKeys, err := c.scanKeys(ctx, SlideVotersPattern(c.instanceName, presentationID))
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			PresentationKey(c.instanceName, presentationID),
			SlideOrderKey(c.instanceName, presentationID),
			VoteLogKey(c.instanceName, presentationID),
			SessionKey(c.instanceName, presentationID),
		)
		for _, id := range slideIDs {
			pipe.Del(ctx, SlideKey(c.instanceName, id))
		}
		if len(voterKeys) > 0 {
			pipe.Del(ctx, voterKeys...)
		}
		pipe.ZRem(ctx, PresentationsKey(c.instanceName), presentationID)
		if owner := hash["owner_id"]; owner != "" {
			pipe.ZRem(ctx, OwnerPresentationsKey(c.instanceName, owner), presentationID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete presentation: %w", err)
	}

	return nil
}

// recordVoteScript claims the (slide, voter) slot and appends to the vote log
// in one step. A failed append releases the claim so the voter can retry.
// KEYS: voters hash, vote log. ARGV: voter name, vote JSON.
var recordVoteScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
local res = redis.pcall('RPUSH', KEYS[2], ARGV[2])
if type(res) ~= 'number' then
	redis.call('HDEL', KEYS[1], ARGV[1])
	if type(res) == 'table' and res.err then
		return res
	end
	return redis.error_reply('vote log append failed')
end
return 1
`)

// RecordVote appends a vote to the presentation's vote log and publishes an event.
// A second vote by the same voter on the same slide returns ErrDuplicateVote
// and is not logged.
func (c *Client) RecordVote(ctx context.Context, v *Vote) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid vote: %w", err)
	}

	voteJSON, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal vote: %w", err)
	}

	keys := []string{
		SlideVotersKey(c.instanceName, v.PresentationID, v.SlideID),
		VoteLogKey(c.instanceName, v.PresentationID),
	}
	claimed, err := recordVoteScript.Run(ctx, c.rdb, keys, v.VoterName, string(voteJSON)).Int()
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	if claimed == 0 {
		return ErrDuplicateVote
	}

	return c.publish(ctx, VoteEventsChannel(c.instanceName, v.PresentationID), VoteEvent{
		Kind:           VoteEventRecorded,
		PresentationID: v.PresentationID,
		Vote:           v,
	})
}

// HasVoted reports whether voterName already has a stored vote for the slide.
func (c *Client) HasVoted(ctx context.Context, presentationID, slideID, voterName string) (bool, error) {
	exists, err := c.rdb.HExists(ctx, SlideVotersKey(c.instanceName, presentationID, slideID), voterName).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check vote existence: %w", err)
	}
	return exists, nil
}

// GetVotesForPresentation returns the full vote log in submission order.
// Returns an empty slice if no votes exist (not an error).
func (c *Client) GetVotesForPresentation(ctx context.Context, presentationID string) ([]Vote, error) {
	raw, err := c.rdb.LRange(ctx, VoteLogKey(c.instanceName, presentationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read votes from Redis: %w", err)
	}

	votes := make([]Vote, 0, len(raw))
	for i, entry := range raw {
		var v Vote
		if err := json.Unmarshal([]byte(entry), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vote %d: %w", i, err)
		}
		votes = append(votes, v)
	}

	return votes, nil
}

// GetVotesForSlide returns the votes cast on one slide in submission order.
func (c *Client) GetVotesForSlide(ctx context.Context, presentationID, slideID string) ([]Vote, error) {
	all, err := c.GetVotesForPresentation(ctx, presentationID)
	if err != nil {
		return nil, err
	}

	votes := make([]Vote, 0, len(all))
	for _, v := range all {
		if v.SlideID == slideID {
			votes = append(votes, v)
		}
	}
	return votes, nil
}

// ResetVotes deletes every vote of a presentation and publishes a reset event.
func (c *Client) ResetVotes(ctx context.Context, presentationID string) error {
	keys, err := c.scanKeys(ctx, SlideVotersPattern(c.instanceName, presentationID))
	if err != nil {
		return err
	}
	keys = append(keys, VoteLogKey(c.instanceName, presentationID))

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset votes: %w", err)
	}

	return c.publish(ctx, VoteEventsChannel(c.instanceName, presentationID), VoteEvent{
		Kind:           VoteEventReset,
		PresentationID: presentationID,
	})
}

// SaveSession upserts the active session of a presentation and publishes it.
//
// s.Revision must equal the stored revision (0 when no session is stored);
// otherwise ErrStaleSession is returned and nothing is written. On success
// s.Revision is advanced to the new stored revision.
func (c *Client) SaveSession(ctx context.Context, s *ActiveSession) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	key := SessionKey(c.instanceName, s.PresentationID)
	next := *s

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "revision").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read session revision: %w", err)
		}

		if current != s.Revision {
			return ErrStaleSession
		}
		next.Revision = current + 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, SessionToHash(&next))
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, ErrStaleSession):
		return ErrStaleSession
	case err != nil:
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}

	s.Revision = next.Revision

	return c.publish(ctx, SessionEventsChannel(c.instanceName, s.PresentationID), SessionEvent{
		Kind:           SessionEventUpdated,
		PresentationID: s.PresentationID,
		Session:        &next,
	})
}

// GetSession retrieves the active session of a presentation.
// Returns (nil, redis.Nil) if no session is active.
func (c *Client) GetSession(ctx context.Context, presentationID string) (*ActiveSession, error) {
	hash, err := c.rdb.HGetAll(ctx, SessionKey(c.instanceName, presentationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}

	if len(hash) == 0 {
		return nil, redis.Nil
	}

	session, err := HashToSession(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}

	return session, nil
}

// DeleteSession removes the active session and publishes an ended event.
func (c *Client) DeleteSession(ctx context.Context, presentationID string) error {
	if err := c.rdb.Del(ctx, SessionKey(c.instanceName, presentationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return c.publish(ctx, SessionEventsChannel(c.instanceName, presentationID), SessionEvent{
		Kind:           SessionEventEnded,
		PresentationID: presentationID,
	})
}

// publish marshals an event and publishes it on a channel.
func (c *Client) publish(ctx context.Context, channel string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// scanKeys collects every key matching pattern.
func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetPresentation or GetSession returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
