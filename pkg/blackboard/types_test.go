package blackboard

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryEntryValidate(t *testing.T) {
	valid := func() *MemoryEntry {
		return &MemoryEntry{
			ID:        uuid.New().String(),
			AgentID:   "research_agent",
			Type:      MemoryTypeOutcome,
			Timestamp: time.Now(),
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid memory entry failed validation: %v", err)
	}

	testCases := []struct {
		name   string
		mutate func(m *MemoryEntry)
	}{
		{"invalid ID", func(m *MemoryEntry) { m.ID = "not-a-uuid" }},
		{"empty agent", func(m *MemoryEntry) { m.AgentID = "" }},
		{"empty type", func(m *MemoryEntry) { m.Type = "" }},
		{"zero timestamp", func(m *MemoryEntry) { m.Timestamp = time.Time{} }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := valid()
			tc.mutate(m)
			if err := m.Validate(); err == nil {
				t.Error("expected validation to fail, but it passed")
			}
		})
	}
}

func TestGoalValidate(t *testing.T) {
	valid := func() *Goal {
		return &Goal{
			ID:          uuid.New().String(),
			Description: "summarise competitor pricing",
			Priority:    5,
			Status:      GoalStatusActive,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid goal failed validation: %v", err)
	}

	testCases := []struct {
		name   string
		mutate func(g *Goal)
	}{
		{"invalid ID", func(g *Goal) { g.ID = "abc" }},
		{"empty description", func(g *Goal) { g.Description = "" }},
		{"priority too low", func(g *Goal) { g.Priority = 0 }},
		{"priority too high", func(g *Goal) { g.Priority = 11 }},
		{"unknown status", func(g *Goal) { g.Status = "paused" }},
		{"negative progress", func(g *Goal) { g.Progress = -1 }},
		{"progress over 100", func(g *Goal) { g.Progress = 100.5 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := valid()
			tc.mutate(g)
			if err := g.Validate(); err == nil {
				t.Error("expected validation to fail, but it passed")
			}
		})
	}
}

func TestGoalStatusValidate_AllValid(t *testing.T) {
	for _, s := range []GoalStatus{GoalStatusActive, GoalStatusCompleted, GoalStatusFailed} {
		if err := s.Validate(); err != nil {
			t.Errorf("status %q failed validation: %v", s, err)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"task", Request{ID: uuid.New().String(), Kind: RequestKindTask, Text: "fill the form"}, false},
		{"task without text", Request{ID: uuid.New().String(), Kind: RequestKindTask}, true},
		{"goal", Request{ID: uuid.New().String(), Kind: RequestKindGoal, Text: "digest", Priority: 3}, false},
		{"goal without priority", Request{ID: uuid.New().String(), Kind: RequestKindGoal, Text: "digest"}, true},
		{"cancel goal", Request{ID: uuid.New().String(), Kind: RequestKindCancelGoal, GoalID: uuid.New().String()}, false},
		{"cancel without goal ID", Request{ID: uuid.New().String(), Kind: RequestKindCancelGoal}, true},
		{"unknown kind", Request{ID: uuid.New().String(), Kind: "batch", Text: "x"}, true},
		{"invalid ID", Request{ID: "nope", Kind: RequestKindTask, Text: "x"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation to fail, but it passed")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestMemoryEntryHasTag(t *testing.T) {
	m := &MemoryEntry{Tags: []string{"success", "navigation"}}
	if !m.HasTag("navigation") {
		t.Error("expected navigation tag")
	}
	if m.HasTag("failure") {
		t.Error("unexpected failure tag")
	}
}

// TestIsValidUUID tests the UUID validation helper
func TestIsValidUUID(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid UUID v4", uuid.New().String(), true},
		{"valid UUID with hyphens", "550e8400-e29b-41d4-a716-446655440000", true},
		{"invalid - not a UUID", "not-a-uuid", false},
		{"invalid - empty string", "", false},
		{"invalid - too short", "550e8400", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := isValidUUID(tc.input)
			if result != tc.expected {
				t.Errorf("isValidUUID(%q) = %v, expected %v", tc.input, result, tc.expected)
			}
		})
	}
}
