// Package analyzer maps free-text requests to ranked agents and a complexity class.
//
// Scoring is pure: the same input always yields the same per-agent scores. Each
// agent's score is the strongest vocabulary signal found in the input, never a
// sum, so a single strong phrase is not diluted by incidental weak matches.
package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dyluth/warren/internal/config"
)

// Complexity classifies how demanding a task is.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ParseComplexity converts a hint string into a Complexity.
func ParseComplexity(s string) (Complexity, error) {
	switch c := Complexity(strings.ToLower(strings.TrimSpace(s))); c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return c, nil
	default:
		return "", fmt.Errorf("invalid complexity %q (must be 'low', 'medium' or 'high')", s)
	}
}

// Thresholds of the scoring contract.
const (
	CandidateThreshold = 70
	SupportThreshold   = 60
	HighThreshold      = 85
	ComprehensiveBonus = 10
	maxScore           = 100
)

var comprehensivePhrases = [][]string{
	{"comprehensive"},
	{"complete"},
	{"full"},
	{"thorough"},
	{"end", "to", "end"},
	{"everything"},
}

// Analysis is the result of scoring one input.
type Analysis struct {
	PrimaryAgentID      string         `json:"primary_agent_id"`
	Confidence          int            `json:"confidence"`
	Complexity          Complexity     `json:"complexity"`
	SupportingAgentIDs  []string       `json:"supporting_agent_ids"`
	Candidates          []string       `json:"candidates"`
	PerAgentScores      map[string]int `json:"per_agent_scores"`
	NeedsMultipleAgents bool           `json:"needs_multiple_agents"`
	Comprehensive       bool           `json:"comprehensive"`
}

func (a *Analysis) clone() *Analysis {
	c := *a
	c.SupportingAgentIDs = append([]string(nil), a.SupportingAgentIDs...)
	c.Candidates = append([]string(nil), a.Candidates...)
	c.PerAgentScores = make(map[string]int, len(a.PerAgentScores))
	for id, s := range a.PerAgentScores {
		c.PerAgentScores[id] = s
	}
	return &c
}

type signal struct {
	words []string
	score int
}

// Scorer scores inputs against each agent's vocabulary.
type Scorer struct {
	agentIDs   []string
	vocabulary map[string][]signal
}

// NewScorer builds a scorer from a phrase -> score vocabulary per agent.
func NewScorer(vocabularies map[string]map[string]int) *Scorer {
	s := &Scorer{vocabulary: make(map[string][]signal, len(vocabularies))}
	for agentID, vocab := range vocabularies {
		s.agentIDs = append(s.agentIDs, agentID)
		signals := make([]signal, 0, len(vocab))
		for phrase, score := range vocab {
			words := tokenize(phrase)
			if len(words) == 0 {
				continue
			}
			signals = append(signals, signal{words: words, score: score})
		}
		s.vocabulary[agentID] = signals
	}
	sort.Strings(s.agentIDs)
	return s
}

// FromConfig builds a scorer from the roster vocabulary.
func FromConfig(cfg *config.WarrenConfig) *Scorer {
	vocabularies := make(map[string]map[string]int, len(cfg.Agents))
	for id, agent := range cfg.Agents {
		vocabularies[id] = agent.Vocabulary
	}
	return NewScorer(vocabularies)
}

// Score analyses input. An input matching no vocabulary yields an empty
// PrimaryAgentID, confidence 0 and low complexity.
func (s *Scorer) Score(input string) *Analysis {
	return s.scoreTokens(tokenize(input))
}

func (s *Scorer) scoreTokens(tokens []string) *Analysis {
	scores := make(map[string]int, len(s.agentIDs))
	for _, id := range s.agentIDs {
		best := 0
		for _, sig := range s.vocabulary[id] {
			if sig.score > best && containsPhrase(tokens, sig.words) {
				best = sig.score
			}
		}
		scores[id] = best
	}

	analysis := &Analysis{PerAgentScores: scores}

	for _, phrase := range comprehensivePhrases {
		if containsPhrase(tokens, phrase) {
			analysis.Comprehensive = true
			break
		}
	}

	if analysis.Comprehensive {
		for id, score := range scores {
			if score >= SupportThreshold {
				scores[id] = min(score+ComprehensiveBonus, maxScore)
			}
		}
		analysis.NeedsMultipleAgents = true
	}

	ranked := make([]string, 0, len(s.agentIDs))
	for _, id := range s.agentIDs {
		if scores[id] > 0 {
			ranked = append(ranked, id)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	for _, id := range ranked {
		if scores[id] >= CandidateThreshold {
			analysis.Candidates = append(analysis.Candidates, id)
		}
	}
	if len(analysis.Candidates) > 1 {
		analysis.NeedsMultipleAgents = true
	}

	if len(ranked) == 0 {
		analysis.Complexity = ComplexityLow
		return analysis
	}

	winner := ranked[0]
	analysis.PrimaryAgentID = winner
	analysis.Confidence = scores[winner]
	analysis.Complexity = complexityFor(scores[winner])

	for _, id := range ranked[1:] {
		if scores[id] >= SupportThreshold {
			analysis.SupportingAgentIDs = append(analysis.SupportingAgentIDs, id)
		}
	}

	return analysis
}

func complexityFor(score int) Complexity {
	switch {
	case score >= HighThreshold:
		return ComplexityHigh
	case score >= CandidateThreshold:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// tokenize lower-cases input and splits it into words of letters and digits.
// Phrase matching on token sequences gives word-boundary semantics.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, w := range phrase {
			if tokens[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
