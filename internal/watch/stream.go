package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/warren/pkg/blackboard"
)

// OutputFormat selects how StreamEvents renders each event.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

var eventIcons = map[string]string{
	"task_granted":   "🎯",
	"task_completed": "✅",
	"task_failed":    "❌",
	"goal_completed": "🏁",
	"goal_cancelled": "🛑",
	"goal_progress":  "📈",
}

// StreamEvents writes workflow events from sub to w until ctx is cancelled or
// the subscription closes. Malformed messages are reported and skipped.
func StreamEvents(ctx context.Context, sub *blackboard.WorkflowSubscription, format OutputFormat, w io.Writer) error {
	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeEvent(w, event, format, time.Now()); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(w, "warning: %v\n", err)
		}
	}
}

func writeEvent(w io.Writer, event *blackboard.WorkflowEvent, format OutputFormat, now time.Time) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	_, err := fmt.Fprintf(w, "[%s] %s\n", now.Format("15:04:05"), FormatEvent(event))
	return err
}

// FormatEvent renders an event as "<icon> <event> key=value ...", keys sorted.
func FormatEvent(event *blackboard.WorkflowEvent) string {
	icon, ok := eventIcons[event.Event]
	if !ok {
		icon = "•"
	}

	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(icon)
	b.WriteString(" ")
	b.WriteString(event.Event)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, event.Data[k])
	}
	return b.String()
}
