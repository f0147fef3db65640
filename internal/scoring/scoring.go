// Package scoring derives leaderboards, per-option tallies and word clouds
// from a presentation's vote log.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/dyluth/roost/pkg/board"
)

// BaseShare is the fraction of MaxPoints awarded for any correct answer.
// The remainder is a speed bonus that decays linearly over the voting window.
const BaseShare = 0.6

// Entry is one voter's row on the leaderboard.
type Entry struct {
	VoterName string `json:"voter_name"`
	Score     int    `json:"score"`
	Correct   int    `json:"correct"`  // Number of correct answers
	Answered  int    `json:"answered"` // Number of counted votes
}

// OptionResult is the tally of one option on a multiple-choice slide.
type OptionResult struct {
	OptionID  string `json:"option_id"`
	Text      string `json:"text"`
	Votes     int    `json:"votes"`
	IsCorrect bool   `json:"is_correct"`
}

// WordCount is one word of a word cloud with its frequency.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Points returns the score for a correct answer given after timeTakenMs on a
// slide worth maxPoints with a voting window of durationMs.
// A nil timeTakenMs is scored as if the whole window was used.
func Points(maxPoints int, durationMs int64, timeTakenMs *int64) int {
	base := math.Round(float64(maxPoints) * BaseShare)
	maxBonus := float64(maxPoints) - base

	taken := durationMs
	if timeTakenMs != nil {
		taken = *timeTakenMs
	}
	if taken > durationMs {
		taken = durationMs
	}
	if taken < 0 {
		taken = 0
	}

	bonus := 0.0
	if durationMs > 0 {
		bonus = maxBonus * (1 - float64(taken)/float64(durationMs))
	}

	return int(math.Round(base + bonus))
}

// ScoreVote returns the points a single vote earns and whether it was correct.
// Votes for slides that no longer exist, unknown options and incorrect
// options all score 0.
func ScoreVote(p *board.Presentation, v *board.Vote) (int, bool) {
	slide, _ := p.FindSlide(v.SlideID)
	if slide == nil {
		return 0, false
	}

	opt := slide.FindOption(v.OptionID)
	if opt == nil || !opt.IsCorrect {
		return 0, false
	}

	return Points(slide.EffectiveMaxPoints(), slide.PhaseDurationMs(board.PhaseVoting), v.TimeTakenMs), true
}

// Leaderboard accumulates scores per voter across every slide of p.
//
// Every voter with at least one counted vote appears, even with 0 points.
// Only the first vote per (slide, voter) in log order counts. Entries are
// sorted by score descending; ties keep the order voters first appeared.
func Leaderboard(p *board.Presentation, votes []board.Vote) []Entry {
	entries := make([]Entry, 0)
	index := make(map[string]int)
	seen := make(map[[2]string]bool)

	for i := range votes {
		v := &votes[i]
		key := [2]string{v.SlideID, v.VoterName}
		if seen[key] {
			continue
		}
		seen[key] = true

		idx, ok := index[v.VoterName]
		if !ok {
			idx = len(entries)
			index[v.VoterName] = idx
			entries = append(entries, Entry{VoterName: v.VoterName})
		}

		points, correct := ScoreVote(p, v)
		entries[idx].Score += points
		entries[idx].Answered++
		if correct {
			entries[idx].Correct++
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	return entries
}

// Results tallies the votes of one slide per option, in option order.
// Votes for other slides and unknown options are ignored.
func Results(slide *board.Slide, votes []board.Vote) []OptionResult {
	results := make([]OptionResult, len(slide.Options))
	index := make(map[string]int, len(slide.Options))
	for i, opt := range slide.Options {
		results[i] = OptionResult{OptionID: opt.ID, Text: opt.Text, IsCorrect: opt.IsCorrect}
		index[opt.ID] = i
	}

	seen := make(map[string]bool)
	for _, v := range votes {
		if v.SlideID != slide.ID || seen[v.VoterName] {
			continue
		}
		seen[v.VoterName] = true

		if i, ok := index[v.OptionID]; ok {
			results[i].Votes++
		}
	}

	return results
}

// WordCloud counts the free-text answers of votes. Words are trimmed and
// lower-cased; empty answers are skipped. The most frequent words come
// first and ties are alphabetical.
func WordCloud(votes []board.Vote) []WordCount {
	counts := make(map[string]int)
	for _, v := range votes {
		word := strings.ToLower(strings.TrimSpace(v.Text))
		if word == "" {
			continue
		}
		counts[word]++
	}

	cloud := make([]WordCount, 0, len(counts))
	for word, n := range counts {
		cloud = append(cloud, WordCount{Word: word, Count: n})
	}

	sort.Slice(cloud, func(i, j int) bool {
		if cloud[i].Count != cloud[j].Count {
			return cloud[i].Count > cloud[j].Count
		}
		return cloud[i].Word < cloud[j].Word
	})

	return cloud
}

// Total returns the number of voters represented in results.
func Total(results []OptionResult) int {
	total := 0
	for _, r := range results {
		total += r.Votes
	}
	return total
}
