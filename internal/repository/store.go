// Package repository provides durable storage for giveaway snapshots.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"giveaway-bot/internal/model"
)

// Common errors for repository operations.
var (
	// ErrCorruptState is returned by Load when persisted data cannot be decoded
	// or violates the record invariants. Startup must abort on it.
	ErrCorruptState = errors.New("persisted giveaway state is corrupt")

	// ErrPersistence is returned by Save when the snapshot could not be written.
	ErrPersistence = errors.New("failed to persist giveaways")
)

// Store durably holds the complete set of giveaway records.
// Save replaces the previous snapshot as a whole.
type Store interface {
	Load(ctx context.Context) ([]*model.Giveaway, error)
	Save(ctx context.Context, giveaways []*model.Giveaway) error
	Close() error
}

// ValidateSnapshot checks every record of a loaded snapshot.
func ValidateSnapshot(giveaways []*model.Giveaway) error {
	seen := make(map[int64]bool, len(giveaways))
	for i, g := range giveaways {
		if g == nil {
			return fmt.Errorf("%w: record %d is null", ErrCorruptState, i)
		}
		if err := validateRecord(g); err != nil {
			return fmt.Errorf("%w: giveaway %d: %s", ErrCorruptState, g.ID, err)
		}
		if seen[g.ID] {
			return fmt.Errorf("%w: duplicate giveaway id %d", ErrCorruptState, g.ID)
		}
		seen[g.ID] = true
	}
	return nil
}

func validateRecord(g *model.Giveaway) error {
	switch {
	case g.ID <= 0:
		return errors.New("id must be positive")
	case strings.TrimSpace(g.Title) == "":
		return errors.New("title is empty")
	case strings.TrimSpace(g.Prize) == "":
		return errors.New("prize is empty")
	case g.DurationSeconds <= 0:
		return errors.New("duration must be positive")
	case g.WinnerCount <= 0:
		return errors.New("winner count must be positive")
	case g.EndTime.IsZero():
		return errors.New("end time is missing")
	case !g.Status.Valid():
		return fmt.Errorf("unknown status %q", g.Status)
	}

	joined := make(map[int64]bool, len(g.Participants))
	for _, p := range g.Participants {
		if joined[p.UserID] {
			return fmt.Errorf("participant %d listed twice", p.UserID)
		}
		joined[p.UserID] = true
	}

	if len(g.Winners) > g.WinnerCount {
		return fmt.Errorf("%d winners exceed winner count %d", len(g.Winners), g.WinnerCount)
	}
	switch g.Status {
	case model.StatusOpen:
		if len(g.Winners) > 0 {
			return errors.New("open giveaway has winners")
		}
	case model.StatusFinalized:
		if g.FinalizedAt == nil {
			return errors.New("finalized giveaway has no finalization time")
		}
		if want := min(g.WinnerCount, len(g.Participants)); len(g.Winners) != want {
			return fmt.Errorf("finalized with %d winners, want %d", len(g.Winners), want)
		}
	}
	drawn := make(map[int64]bool, len(g.Winners))
	for _, w := range g.Winners {
		if !joined[w.UserID] {
			return fmt.Errorf("winner %d is not a participant", w.UserID)
		}
		if drawn[w.UserID] {
			return fmt.Errorf("winner %d drawn twice", w.UserID)
		}
		drawn[w.UserID] = true
	}
	return nil
}

// decodeSnapshot parses a JSON snapshot. Empty input means no prior state.
func decodeSnapshot(data []byte) ([]*model.Giveaway, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []*model.Giveaway{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var giveaways []*model.Giveaway
	if err := dec.Decode(&giveaways); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after snapshot", ErrCorruptState)
	}
	// A JSON null leaves the slice nil; a saved snapshot is always an array.
	if giveaways == nil {
		return nil, fmt.Errorf("%w: snapshot is not an array", ErrCorruptState)
	}
	if err := ValidateSnapshot(giveaways); err != nil {
		return nil, err
	}
	return giveaways, nil
}

func encodeSnapshot(giveaways []*model.Giveaway) ([]byte, error) {
	if giveaways == nil {
		giveaways = []*model.Giveaway{}
	}
	data, err := json.MarshalIndent(giveaways, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %w", ErrPersistence, err)
	}
	return append(data, '\n'), nil
}
