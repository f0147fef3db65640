package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like the
// option list are JSON-encoded into single hash fields. Slides are not part of
// the presentation hash; they live in their own hashes, ordered by a ZSET.

// PresentationToHash converts a Presentation to a Redis hash.
// The slide list is stored separately.
func PresentationToHash(p *Presentation) map[string]interface{} {
	return map[string]interface{}{
		"id":            p.ID,
		"owner_id":      p.OwnerID,
		"title":         p.Title,
		"created_at_ms": p.CreatedAtMs,
		"updated_at_ms": p.UpdatedAtMs,
	}
}

// HashToPresentation converts a Redis hash to a Presentation with no slides.
func HashToPresentation(hash map[string]string) (*Presentation, error) {
	createdAtMs, err := parseInt64(hash, "created_at_ms")
	if err != nil {
		return nil, err
	}

	updatedAtMs, err := parseInt64(hash, "updated_at_ms")
	if err != nil {
		return nil, err
	}

	return &Presentation{
		ID:          hash["id"],
		OwnerID:     hash["owner_id"],
		Title:       hash["title"],
		CreatedAtMs: createdAtMs,
		UpdatedAtMs: updatedAtMs,
		Slides:      []Slide{},
	}, nil
}

// SlideToHash converts a Slide to a Redis hash.
// Options are JSON-encoded.
func SlideToHash(presentationID string, s *Slide) (map[string]interface{}, error) {
	options := s.Options
	if options == nil {
		options = []Option{}
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}

	return map[string]interface{}{
		"id":                   s.ID,
		"presentation_id":      presentationID,
		"type":                 string(s.Type),
		"title":                s.Title,
		"question":             s.Question,
		"duration":             s.Duration,
		"enable_reading_timer": strconv.FormatBool(s.EnableReadingTimer),
		"reading_duration":     s.ReadingDuration,
		"max_points":           s.MaxPoints,
		"text_align":           string(s.TextAlign),
		"text_color":           s.TextColor,
		"background_color":     s.BackgroundColor,
		"font_size":            s.FontSize,
		"options":              string(optionsJSON),
		"order":                s.Order,
	}, nil
}

// HashToSlide converts a Redis hash to a Slide.
func HashToSlide(hash map[string]string) (*Slide, error) {
	ints := make(map[string]int, 5)
	for _, field := range []string{"duration", "reading_duration", "max_points", "font_size", "order"} {
		v, err := parseInt(hash, field)
		if err != nil {
			return nil, err
		}
		ints[field] = v
	}

	var options []Option
	if optionsJSON := hash["options"]; optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options: %w", err)
		}
	}

	if options == nil {
		options = []Option{}
	}

	readingTimer, _ := strconv.ParseBool(hash["enable_reading_timer"])

	return &Slide{
		ID:                 hash["id"],
		Type:               SlideType(hash["type"]),
		Title:              hash["title"],
		Question:           hash["question"],
		Duration:           ints["duration"],
		EnableReadingTimer: readingTimer,
		ReadingDuration:    ints["reading_duration"],
		MaxPoints:          ints["max_points"],
		TextAlign:          TextAlign(hash["text_align"]),
		TextColor:          hash["text_color"],
		BackgroundColor:    hash["background_color"],
		FontSize:           ints["font_size"],
		Options:            options,
		Order:              ints["order"],
	}, nil
}

// SessionToHash converts an ActiveSession to a Redis hash.
func SessionToHash(s *ActiveSession) map[string]interface{} {
	return map[string]interface{}{
		"presentation_id": s.PresentationID,
		"slide_id":        s.SlideID,
		"phase":           string(s.Phase),
		"start_time":      s.StartTimeMs,
		"paused":          strconv.FormatBool(s.Paused),
		"paused_at_ms":    s.PausedAtMs,
		"revision":        s.Revision,
	}
}

// HashToSession converts a Redis hash to an ActiveSession.
// A missing phase is read as ready.
func HashToSession(hash map[string]string) (*ActiveSession, error) {
	startTimeMs, err := parseInt64(hash, "start_time")
	if err != nil {
		return nil, err
	}

	pausedAtMs, err := parseInt64(hash, "paused_at_ms")
	if err != nil {
		return nil, err
	}

	revision, err := parseInt64(hash, "revision")
	if err != nil {
		return nil, err
	}

	phase := Phase(hash["phase"])
	if phase == "" {
		phase = PhaseReady
	}

	paused, _ := strconv.ParseBool(hash["paused"])

	return &ActiveSession{
		PresentationID: hash["presentation_id"],
		SlideID:        hash["slide_id"],
		Phase:          phase,
		StartTimeMs:    startTimeMs,
		Paused:         paused,
		PausedAtMs:     pausedAtMs,
		Revision:       revision,
	}, nil
}

// parseInt reads an optional integer field; missing fields are zero.
func parseInt(hash map[string]string, field string) (int, error) {
	raw, ok := hash[field]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return v, nil
}

// parseInt64 reads an optional int64 field; missing fields are zero.
func parseInt64(hash map[string]string, field string) (int64, error) {
	raw, ok := hash[field]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return v, nil
}
