package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dyluth/roost/pkg/board"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Deck is the YAML form of a presentation accepted by `roost import`.
type Deck struct {
	Title  string      `yaml:"title"`
	Slides []DeckSlide `yaml:"slides"`
}

// DeckSlide is one slide of a Deck. Zero timings fall back to the slide defaults.
type DeckSlide struct {
	Type            string       `yaml:"type"` // multiple_choice (default), word_cloud or heading
	Title           string       `yaml:"title,omitempty"`
	Question        string       `yaml:"question"`
	Duration        int          `yaml:"duration,omitempty"`
	ReadingDuration int          `yaml:"reading_duration,omitempty"`
	Reading         bool         `yaml:"reading,omitempty"` // Enable the reading phase
	MaxPoints       int          `yaml:"max_points,omitempty"`
	TextAlign       string       `yaml:"text_align,omitempty"`
	TextColor       string       `yaml:"text_color,omitempty"`
	BackgroundColor string       `yaml:"background_color,omitempty"`
	FontSize        int          `yaml:"font_size,omitempty"`
	Options         []DeckOption `yaml:"options,omitempty"`
}

// DeckOption is one answer of a DeckSlide.
type DeckOption struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct,omitempty"`
}

// LoadDeck reads a deck file and converts it into a new presentation owned
// by ownerID. Every slide and option gets a fresh id.
func LoadDeck(path, ownerID string) (*board.Presentation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}

	var deck Deck
	if err := yaml.Unmarshal(data, &deck); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	p, err := deck.Presentation(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid deck %s: %w", path, err)
	}
	return p, nil
}

// Presentation converts the deck and validates the result.
func (d *Deck) Presentation(ownerID string) (*board.Presentation, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if len(d.Slides) == 0 {
		return nil, fmt.Errorf("at least one slide is required")
	}

	p := &board.Presentation{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Title:   strings.TrimSpace(d.Title),
		Slides:  make([]board.Slide, 0, len(d.Slides)),
	}

	for i, ds := range d.Slides {
		slideType := board.SlideType(ds.Type)
		if ds.Type == "" {
			slideType = board.SlideTypeMultipleChoice
		}

		slide := board.Slide{
			ID:                 uuid.New().String(),
			Type:               slideType,
			Title:              ds.Title,
			Question:           ds.Question,
			Duration:           ds.Duration,
			EnableReadingTimer: ds.Reading || ds.ReadingDuration > 0,
			ReadingDuration:    ds.ReadingDuration,
			MaxPoints:          ds.MaxPoints,
			TextAlign:          board.TextAlign(ds.TextAlign),
			TextColor:          ds.TextColor,
			BackgroundColor:    ds.BackgroundColor,
			FontSize:           ds.FontSize,
			Options:            make([]board.Option, 0, len(ds.Options)),
			Order:              i,
		}
		for _, o := range ds.Options {
			slide.Options = append(slide.Options, board.Option{
				ID:        uuid.New().String(),
				Text:      o.Text,
				IsCorrect: o.Correct,
			})
		}

		if slideType == board.SlideTypeMultipleChoice && len(slide.Options) == 0 {
			return nil, fmt.Errorf("slide %d: multiple choice slides need options", i+1)
		}

		p.Slides = append(p.Slides, slide)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}
