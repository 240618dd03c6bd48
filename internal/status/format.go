// Package status renders orchestrator state for the warren CLI: agent
// snapshots, goals, memory entries, analyses and task results, as aligned
// tables or JSON.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/warren/internal/analyzer"
	"github.com/dyluth/warren/internal/goals"
	"github.com/dyluth/warren/internal/instance"
	"github.com/dyluth/warren/pkg/blackboard"
)

// FormatAgents writes agent snapshots as a table and returns the number of rows.
func FormatAgents(w io.Writer, snaps []*blackboard.AgentSnapshot, instanceName string, now time.Time) int {
	if len(snaps) == 0 {
		fmt.Fprintf(w, "No agents registered for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Agents for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-22s %-11s %-5s %-6s %-5s %-6s %-10s %s\n",
		"AGENT", "STATUS", "PERF", "HEALTH", "DONE", "FAILED", "ACTIVE", "LAST ACTIVE")
	fmt.Fprintf(w, "%-22s %-11s %-5s %-6s %-5s %-6s %-10s %s\n",
		"----------------------", "-----------", "-----", "------", "-----", "------", "----------", "-----------")

	for _, s := range snaps {
		fmt.Fprintf(w, "%-22s %-11s %-5.2f %-6.2f %-5d %-6d %-10s %s\n",
			truncate(s.AgentID, 22),
			s.Status,
			s.Performance,
			s.HealthScore,
			s.CompletedTasks,
			s.FailedTasks,
			formatTaskIDs(s.ActiveTasks),
			formatAge(s.LastActive, now),
		)
	}

	fmt.Fprintf(w, "\n%d %s\n", len(snaps), plural(len(snaps), "agent", "agents"))
	return len(snaps)
}

// FormatInstances writes discovered instances as a table.
func FormatInstances(w io.Writer, infos []instance.Info) int {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No instances found")
		return 0
	}

	fmt.Fprintf(w, "%-24s %-6s %-5s %s\n", "INSTANCE", "AGENTS", "GOALS", "PENDING")
	fmt.Fprintf(w, "%-24s %-6s %-5s %s\n", "------------------------", "------", "-----", "-------")
	for _, info := range infos {
		fmt.Fprintf(w, "%-24s %-6d %-5d %d\n", truncate(info.Name, 24), info.Agents, info.Goals, info.PendingRequests)
	}
	return len(infos)
}

// FormatGoals writes goals as a table followed by their summary.
func FormatGoals(w io.Writer, gs []*blackboard.Goal, now time.Time) int {
	if len(gs) == 0 {
		fmt.Fprintln(w, "No goals found")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-9s %-3s %-17s %-10s %s\n",
		"ID", "STATUS", "PRI", "PROGRESS", "UPDATED", "DESCRIPTION")
	fmt.Fprintf(w, "%-10s %-9s %-3s %-17s %-10s %s\n",
		"----------", "---------", "---", "-----------------", "----------", "----------------------------------------")

	for _, g := range gs {
		fmt.Fprintf(w, "%-10s %-9s %-3d %-17s %-10s %s\n",
			shortID(g.ID),
			g.Status,
			g.Priority,
			progressBar(g.Progress),
			formatAge(g.UpdatedAt, now),
			firstLine(g.Description, 40),
		)
	}

	s := goals.Summarize(gs, now)
	fmt.Fprintf(w, "\n%d %s: %d active, %d completed, %d failed, mean progress %.1f%%",
		s.Total, plural(s.Total, "goal", "goals"), s.Active, s.Completed, s.Failed, s.MeanProgress)
	if s.Overdue > 0 {
		fmt.Fprintf(w, ", %d overdue", s.Overdue)
	}
	fmt.Fprintln(w)

	return len(gs)
}

// FormatMemory writes an agent's memory entries, newest first as given.
func FormatMemory(w io.Writer, entries []*blackboard.MemoryEntry, agentID string, now time.Time) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No memory entries found for agent '%s'\n", agentID)
		return 0
	}

	fmt.Fprintf(w, "Memory for agent '%s':\n\n", agentID)
	fmt.Fprintf(w, "%-10s %-10s %-3s %-24s %-8s %s\n",
		"ID", "TYPE", "IMP", "TAGS", "AGE", "CONTENT")
	fmt.Fprintf(w, "%-10s %-10s %-3s %-24s %-8s %s\n",
		"----------", "----------", "---", "------------------------", "--------", "----------------------------------------")

	for _, e := range entries {
		fmt.Fprintf(w, "%-10s %-10s %-3d %-24s %-8s %s\n",
			shortID(e.ID),
			truncate(e.Type, 10),
			e.Importance,
			truncate(strings.Join(e.Tags, ","), 24),
			formatAge(e.Timestamp, now),
			firstLine(e.Content, 40),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(entries), plural(len(entries), "entry", "entries"))
	return len(entries)
}

// FormatAnalysis writes the scorer's ranking for one input.
func FormatAnalysis(w io.Writer, input string, a *analyzer.Analysis) {
	fmt.Fprintf(w, "Input:       %s\n", input)
	if a.PrimaryAgentID == "" {
		fmt.Fprintf(w, "Primary:     - (no agent matched)\n")
	} else {
		fmt.Fprintf(w, "Primary:     %s\n", a.PrimaryAgentID)
	}
	fmt.Fprintf(w, "Confidence:  %d\n", a.Confidence)
	fmt.Fprintf(w, "Complexity:  %s\n", a.Complexity)
	fmt.Fprintf(w, "Supporting:  %s\n", orDash(strings.Join(a.SupportingAgentIDs, ", ")))

	if len(a.PerAgentScores) == 0 {
		return
	}

	ids := make([]string, 0, len(a.PerAgentScores))
	for id := range a.PerAgentScores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := a.PerAgentScores[ids[i]], a.PerAgentScores[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	fmt.Fprintf(w, "\n%-22s %s\n", "AGENT", "SCORE")
	fmt.Fprintf(w, "%-22s %s\n", "----------------------", "-----")
	for _, id := range ids {
		fmt.Fprintf(w, "%-22s %d\n", id, a.PerAgentScores[id])
	}
}

// FormatTaskResult writes a coordinated task's outcome.
func FormatTaskResult(w io.Writer, r *blackboard.TaskResult) {
	outcome := "success"
	if !r.Success {
		outcome = "failed"
		if r.ErrorKind != "" {
			outcome = "failed (" + r.ErrorKind + ")"
		}
	}

	fmt.Fprintf(w, "Task:        %s\n", r.TaskID)
	fmt.Fprintf(w, "Outcome:     %s\n", outcome)
	fmt.Fprintf(w, "Type:        %s\n", orDash(r.Type))
	fmt.Fprintf(w, "Complexity:  %s\n", orDash(r.Complexity))
	fmt.Fprintf(w, "Confidence:  %d\n", r.Confidence)
	fmt.Fprintf(w, "Primary:     %s\n", orDash(r.PrimaryAgentID))
	fmt.Fprintf(w, "Supporting:  %s\n", orDash(strings.Join(r.SupportingAgentIDs, ", ")))
	fmt.Fprintf(w, "Duration:    %s\n", time.Duration(r.ExecutionTimeMs)*time.Millisecond)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", r.Error)
	}
	if r.Result != "" {
		fmt.Fprintf(w, "\n%s\n", r.Result)
	}
}

// FormatJSONL writes each item as one compact JSON object per line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatJSON writes v as pretty-printed JSON.
func FormatJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// shortID truncates a UUID to its first 8 characters.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if s == "" {
		return "-"
	}
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// firstLine returns the first non-blank line of s, truncated to n characters.
func firstLine(s string, n int) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return truncate(trimmed, n)
		}
	}
	return "-"
}

func formatTaskIDs(ids []string) string {
	switch len(ids) {
	case 0:
		return "-"
	case 1:
		return shortID(ids[0])
	default:
		return fmt.Sprintf("%s+%d", shortID(ids[0]), len(ids)-1)
	}
}

// progressBar renders progress as "[#####-----] 50%".
func progressBar(progress float64) string {
	filled := int(progress / 10)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %3.0f%%", strings.Repeat("#", filled), strings.Repeat("-", 10-filled), progress)
}

// formatAge renders t relative to now, like "2m ago" or "3d ago".
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
