// Package resolver expands the short goal IDs printed by the CLI tables
// into full UUIDs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ErrInvalidShortID marks input that can never match a goal ID.
var ErrInvalidShortID = errors.New("invalid short ID")

// maxListed caps the matches named by an AmbiguousError.
const maxListed = 10

// GoalLookup is the subset of the blackboard client the resolver needs.
type GoalLookup interface {
	GetGoal(ctx context.Context, goalID string) (*blackboard.Goal, error)
	ScanGoalIDs(ctx context.Context, prefix string) ([]string, error)
}

// ResolveGoalID resolves a full goal UUID or a unique prefix of one.
// A full UUID must name an existing goal.
func ResolveGoalID(ctx context.Context, store GoalLookup, id string) (string, error) {
	if _, err := uuid.Parse(id); err == nil {
		if _, err := store.GetGoal(ctx, id); err != nil {
			if blackboard.IsNotFound(err) {
				return "", &NotFoundError{ID: id}
			}
			return "", fmt.Errorf("failed to verify goal existence: %w", err)
		}
		return id, nil
	}

	if len(id) < MinShortIDLength {
		return "", fmt.Errorf("%w: must be at least %d characters (got %d)", ErrInvalidShortID, MinShortIDLength, len(id))
	}
	if strings.ContainsAny(id, "*?[]\\") {
		return "", fmt.Errorf("%w '%s'", ErrInvalidShortID, id)
	}

	matches, err := store.ScanGoalIDs(ctx, strings.ToLower(id))
	if err != nil {
		return "", fmt.Errorf("failed to search for goal: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ID: id}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ID: id, Matches: matches}
	}
}

// NotFoundError indicates no goal matched the ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no goals found matching '%s'", e.ID)
}

// AmbiguousError indicates multiple goals matched the short ID.
type AmbiguousError struct {
	ID      string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d goals", e.ID, len(e.Matches))
}

// Listing names the matches, up to ten, followed by "...and N more".
func (e *AmbiguousError) Listing() string {
	var b strings.Builder
	for i, m := range e.Matches {
		if i == maxListed {
			fmt.Fprintf(&b, "...and %d more\n", len(e.Matches)-maxListed)
			break
		}
		fmt.Fprintf(&b, "%s\n", m)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
