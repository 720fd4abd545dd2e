// Package model defines the data models for the giveaway bot.
package model

import "time"

// Status is the lifecycle state of a giveaway.
type Status string

// Giveaway statuses. A giveaway only ever moves from open to finalized.
const (
	StatusOpen      Status = "open"
	StatusFinalized Status = "finalized"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusFinalized
}

// Participant is a channel subscriber who joined a giveaway.
type Participant struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Giveaway is a time-boxed prize drawing announced in the channel.
type Giveaway struct {
	ID              int64         `json:"id"`
	Title           string        `json:"title"`
	Prize           string        `json:"prize"`
	DurationSeconds int64         `json:"duration"`
	EndTime         time.Time     `json:"end_time"`
	WinnerCount     int           `json:"winners"`
	Participants    []Participant `json:"participants"`
	AnnouncementRef string        `json:"announcement_ref,omitempty"`
	Status          Status        `json:"status"`
	Winners         []Participant `json:"winner_list,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	FinalizedAt     *time.Time    `json:"finalized_at,omitempty"`
}

// IsOpen reports whether the giveaway still accepts joins at the given time.
func (g *Giveaway) IsOpen(now time.Time) bool {
	return g.Status == StatusOpen && now.Before(g.EndTime)
}

// HasParticipant reports whether userID already joined.
func (g *Giveaway) HasParticipant(userID int64) bool {
	for _, p := range g.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the giveaway.
// Records held by the service are never mutated in place; changes are made on a clone.
func (g *Giveaway) Clone() *Giveaway {
	c := *g
	if g.Participants != nil {
		c.Participants = append(make([]Participant, 0, len(g.Participants)), g.Participants...)
	}
	if g.Winners != nil {
		c.Winners = append(make([]Participant, 0, len(g.Winners)), g.Winners...)
	}
	if g.FinalizedAt != nil {
		t := *g.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}
