package goals

import (
	"time"

	"github.com/dyluth/warren/pkg/blackboard"
)

// Summary aggregates goal state for status displays.
type Summary struct {
	Total        int     `json:"total"`
	Active       int     `json:"active"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	MeanProgress float64 `json:"mean_progress"`
	Overdue      int     `json:"overdue"` // active goals past their deadline
}

// Summarize computes a Summary over goals as of now. MeanProgress covers every
// goal regardless of status and is 0 when there are none.
func Summarize(goals []*blackboard.Goal, now time.Time) Summary {
	var s Summary
	var progress float64

	for _, g := range goals {
		s.Total++
		progress += g.Progress

		switch g.Status {
		case blackboard.GoalStatusActive:
			s.Active++
			if g.Deadline != nil && g.Deadline.Before(now) {
				s.Overdue++
			}
		case blackboard.GoalStatusCompleted:
			s.Completed++
		case blackboard.GoalStatusFailed:
			s.Failed++
		}
	}

	if s.Total > 0 {
		s.MeanProgress = progress / float64(s.Total)
	}
	return s
}

func (s Summary) fields() map[string]interface{} {
	return map[string]interface{}{
		"total":         s.Total,
		"active":        s.Active,
		"completed":     s.Completed,
		"failed":        s.Failed,
		"mean_progress": s.MeanProgress,
		"overdue":       s.Overdue,
	}
}
