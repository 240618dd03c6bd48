// Package memory is the per-agent log of task outcomes and derived knowledge.
// Entries are append-only and only removed by the retention sweep.
package memory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/warren/internal/clock"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
)

// Entry is a memory entry as stored on the blackboard.
type Entry = blackboard.MemoryEntry

// Metadata keys written with outcome entries.
const (
	MetaOutcome  = "outcome"
	MetaStrategy = "strategy"
	MetaDomain   = "domain"
	MetaTaskID   = "task_id"
	MetaRole     = "role"
	MetaError    = "error"
)

// Outcome tags.
const (
	TagSuccess = "success"
	TagFailure = "failure"
)

// Importance levels for outcome entries.
const (
	ImportanceFailure        = 8
	ImportanceHighConfidence = 6
	ImportanceRoutine        = 3
	highConfidence           = 85
)

// OutcomeImportance ranks an outcome: failures highest, then high-confidence
// successes, then everything else.
func OutcomeImportance(success bool, confidence int) int {
	switch {
	case !success:
		return ImportanceFailure
	case confidence >= highConfidence:
		return ImportanceHighConfidence
	default:
		return ImportanceRoutine
	}
}

// Backend is the storage collaborator behind the store.
type Backend interface {
	RecordMemory(ctx context.Context, m *blackboard.MemoryEntry) error
	GetMemory(ctx context.Context, entryID string) (*blackboard.MemoryEntry, error)
	AgentMemoryIDs(ctx context.Context, agentID string, since time.Time) ([]string, error)
	MemoryIDsBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteMemory(ctx context.Context, m *blackboard.MemoryEntry) error
}

// Filter narrows a query. Zero values match everything.
type Filter struct {
	Type          string
	Tags          []string // every tag must be present
	MinImportance int
	Since         time.Time
	Limit         int
}

func (f Filter) matches(e *Entry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if e.Importance < f.MinImportance {
		return false
	}
	for _, tag := range f.Tags {
		if !e.HasTag(tag) {
			return false
		}
	}
	return true
}

// Context is what past outcomes say about an agent in one domain.
type Context struct {
	SuccessStrategies []string
	FailurePatterns   []string
}

// ConfidenceDelta is the confidence adjustment implied by the context:
// +5 per success strategy up to +10, -5 per failure pattern down to -15.
func (c *Context) ConfidenceDelta() int {
	up := min(5*len(c.SuccessStrategies), 10)
	down := min(5*len(c.FailurePatterns), 15)
	return up - down
}

// Options configures retention.
type Options struct {
	Retention     time.Duration
	KeepThreshold int
}

// Store records and queries memory entries.
type Store struct {
	backend       Backend
	clock         clock.Clock
	retention     time.Duration
	keepThreshold int
}

// NewStore creates a store over backend.
func NewStore(backend Backend, clk clock.Clock, opts Options) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	if opts.Retention <= 0 {
		opts.Retention = 168 * time.Hour
	}
	if opts.KeepThreshold == 0 {
		opts.KeepThreshold = 7
	}
	return &Store{
		backend:       backend,
		clock:         clk,
		retention:     opts.Retention,
		keepThreshold: opts.KeepThreshold,
	}
}

// Record appends an entry, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock.Now().UTC()
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}

	if err := s.backend.RecordMemory(ctx, e); err != nil {
		return fmt.Errorf("failed to record memory for agent %s: %w", e.AgentID, err)
	}
	return nil
}

// Query returns the agent's entries matching filter, newest first.
// Entries recorded within the same millisecond come back in reverse insertion order.
func (s *Store) Query(ctx context.Context, agentID string, filter Filter) ([]*Entry, error) {
	ids, err := s.backend.AgentMemoryIDs(ctx, agentID, filter.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory for agent %s: %w", agentID, err)
	}

	var out []*Entry
	for _, id := range ids {
		entry, err := s.backend.GetMemory(ctx, id)
		if err != nil {
			if blackboard.IsNotFound(err) {
				// Swept between index read and fetch
				continue
			}
			return nil, fmt.Errorf("failed to load memory entry %s: %w", id, err)
		}

		if !filter.matches(entry) {
			continue
		}
		out = append(out, entry)

		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	return out, nil
}

// RelevantContext collects the strategies that worked and the failures seen for
// the agent's outcomes tagged with domain.
func (s *Store) RelevantContext(ctx context.Context, agentID, domain string) (*Context, error) {
	filter := Filter{Type: blackboard.MemoryTypeOutcome, Limit: 50}
	if domain != "" {
		filter.Tags = []string{domain}
	}

	entries, err := s.Query(ctx, agentID, filter)
	if err != nil {
		return nil, err
	}

	result := &Context{}
	seenStrategy := map[string]bool{}
	seenFailure := map[string]bool{}

	for _, e := range entries {
		switch {
		case e.HasTag(TagSuccess):
			strategy := e.Metadata[MetaStrategy]
			if strategy == "" || seenStrategy[strategy] {
				continue
			}
			seenStrategy[strategy] = true
			result.SuccessStrategies = append(result.SuccessStrategies, strategy)
		case e.HasTag(TagFailure):
			pattern := e.Metadata[MetaError]
			if pattern == "" {
				pattern = e.Content
			}
			if seenFailure[pattern] {
				continue
			}
			seenFailure[pattern] = true
			result.FailurePatterns = append(result.FailurePatterns, pattern)
		}
	}

	return result, nil
}

// Sweep removes entries older than the retention window whose importance is
// below the keep threshold. It returns the number of entries removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.retention)

	ids, err := s.backend.MemoryIDsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired memory: %w", err)
	}

	removed := 0
	for _, id := range ids {
		entry, err := s.backend.GetMemory(ctx, id)
		if err != nil {
			if blackboard.IsNotFound(err) {
				continue
			}
			return removed, fmt.Errorf("failed to load memory entry %s: %w", id, err)
		}

		if entry.Importance >= s.keepThreshold {
			continue
		}

		if err := s.backend.DeleteMemory(ctx, entry); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

// RunRetention sweeps every interval until ctx is cancelled.
func (s *Store) RunRetention(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	log.Printf("[Memory] Retention sweeps every %s (window %s, keep threshold %d)", interval, s.retention, s.keepThreshold)

	for {
		if err := clock.Sleep(ctx, s.clock, interval); err != nil {
			return nil
		}

		removed, err := s.Sweep(ctx)
		if err != nil {
			log.Printf("[Memory] Retention sweep failed: %v", err)
			continue
		}
		if removed > 0 {
			log.Printf("[Memory] Retention sweep removed %d entries", removed)
		}
	}
}
