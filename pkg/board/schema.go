package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so several
// roost deployments can share one Redis server.
//
// Key pattern: roost:{instance_name}:{entity}:{id}
// Channel pattern: roost:{instance_name}:presentation:{id}:{event_type}_events

// PresentationsKey returns the Redis key for the global presentation index.
// ZSET of presentation IDs scored by creation time.
// Pattern: roost:{instance_name}:presentations
func PresentationsKey(instanceName string) string {
	return fmt.Sprintf("roost:%s:presentations", instanceName)
}

// OwnerPresentationsKey returns the Redis key for one owner's presentation index.
// Pattern: roost:{instance_name}:owner:{owner_id}:presentations
func OwnerPresentationsKey(instanceName, ownerID string) string {
	return fmt.Sprintf("roost:%s:owner:%s:presentations", instanceName, ownerID)
}

// PresentationKey returns the Redis key for a presentation hash.
// Pattern: roost:{instance_name}:presentation:{presentation_id}
func PresentationKey(instanceName, presentationID string) string {
	return fmt.Sprintf("roost:%s:presentation:%s", instanceName, presentationID)
}

// SlideOrderKey returns the Redis key for a presentation's slide ordering ZSET.
// Members are slide IDs scored by their order index.
// Pattern: roost:{instance_name}:presentation:{presentation_id}:slides
func SlideOrderKey(instanceName, presentationID string) string {
	return fmt.Sprintf("roost:%s:presentation:%s:slides", instanceName, presentationID)
}

// SlideKey returns the Redis key for a slide hash.
// Pattern: roost:{instance_name}:slide:{slide_id}
func SlideKey(instanceName, slideID string) string {
	return fmt.Sprintf("roost:%s:slide:%s", instanceName, slideID)
}

// VoteLogKey returns the Redis key for a presentation's append-only vote list.
// Pattern: roost:{instance_name}:presentation:{presentation_id}:votes
func VoteLogKey(instanceName, presentationID string) string {
	return fmt.Sprintf("roost:%s:presentation:%s:votes", instanceName, presentationID)
}

// SlideVotersKey returns the Redis key for the voter->vote hash of one slide.
// Used to claim (slide, voter) pairs with HSETNX.
// Pattern: roost:{instance_name}:presentation:{presentation_id}:slide:{slide_id}:voters
func SlideVotersKey(instanceName, presentationID, slideID string) string {
	return fmt.Sprintf("roost:%s:presentation:%s:slide:%s:voters", instanceName, presentationID, slideID)
}

// SlideVotersPattern returns a SCAN pattern matching every voter hash of a presentation.
func SlideVotersPattern(instanceName, presentationID string) string {
	return fmt.Sprintf("roost:%s:presentation:%s:slide:*:voters", instanceName, presentationID)
}

// SessionKey returns the Redis key for a presentation's active session hash.
// Pattern: roost:{instance_name}:session:{presentation_id}
func SessionKey(instanceName, presentationID string) string {
	return fmt.Sprintf("roost:%s:session:%s", instanceName, presentationID)
}

// SessionEventsChannel returns the Pub/Sub channel for session changes.
// Pattern: roost:{instance_name}:presentation:{presentation_id}:session_events
func SessionEventsChannel(instanceName, presentationID string) string {
	return fmt.Sprintf("roost:%s:presentation:%s:session_events", instanceName, presentationID)
}

// VoteEventsChannel returns the Pub/Sub channel for new votes.
// Pattern: roost:{instance_name}:presentation:{presentation_id}:vote_events
func VoteEventsChannel(instanceName, presentationID string) string {
	return fmt.Sprintf("roost:%s:presentation:%s:vote_events", instanceName, presentationID)
}
