// Package board is the shared store every roost client talks to: presentations,
// slides, the vote log and the active session of each presentation, kept in Redis.
//
// # Overview
//
// The presenter writes the ActiveSession row on every phase or slide change and
// voters append Votes. Both directions are announced on per-presentation Pub/Sub
// channels, so a presenter sees votes arrive and voters see phase changes without
// polling. Polling GetSession remains a valid fallback: Pub/Sub delivery is
// at-most-once.
//
// # Usage Example
//
//	client, err := board.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	sub, err := client.SubscribeSessionEvents(ctx, presentationID)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
//
//	for event := range sub.Events() {
//		fmt.Println(event.Kind, event.Session.Phase)
//	}
//
// # Redis Schema
//
// All Redis keys follow the pattern: roost:{instance_name}:{entity}:{id}
//
// Presentation index: roost:{instance_name}:presentations (ZSET by created_at_ms)
// Owner index: roost:{instance_name}:owner:{owner_id}:presentations
// Presentations: roost:{instance_name}:presentation:{presentation_id}
// Slide order: roost:{instance_name}:presentation:{presentation_id}:slides (ZSET by order)
// Slides: roost:{instance_name}:slide:{slide_id}
// Vote log: roost:{instance_name}:presentation:{presentation_id}:votes (LIST)
// Voters: roost:{instance_name}:presentation:{presentation_id}:slide:{slide_id}:voters
// Sessions: roost:{instance_name}:session:{presentation_id}
//
// Pub/Sub channels: roost:{instance_name}:presentation:{presentation_id}:{session,vote}_events
//
// # Consistency
//
// Votes are unique per (slide, voter): RecordVote claims the pair with HSETNX
// before appending to the log. Sessions carry a revision; SaveSession uses
// WATCH/MULTI and rejects writes based on an outdated revision so two presenter
// tabs cannot silently overwrite each other.
package board
