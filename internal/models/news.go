package models

import (
	"errors"
	"time"
)

// NewsItem represents a transfer news document stored in the news_items index.
type NewsItem struct {
	ID              string    `json:"id"`
	PlayerName      string    `json:"playerName"`
	FromTo          string    `json:"fromTo"`
	Summary         string    `json:"summary"`
	ImageURL        string    `json:"imageUrl"`
	Timestamp       time.Time `json:"timestamp"`
	MilestoneStatus int       `json:"milestoneStatus"`
	IsBreakingNews  bool      `json:"isBreakingNews"`
	FollowCount     int64     `json:"followCount"`
	Keywords        []string  `json:"keywords,omitempty"`
}

// Milestone stages. A negative status marks the transfer as canceled at that stage.
const (
	MilestoneRumor    = 1
	MilestoneTalks    = 2
	MilestoneMedical  = 3
	MilestoneContract = 4
	MilestoneOfficial = 5
)

var milestoneLabels = [...]string{"Rumor", "Talks", "Medical", "Contract", "Official"}

// Stage returns the milestone magnitude, ignoring cancellation.
func (n NewsItem) Stage() int {
	if n.MilestoneStatus < 0 {
		return -n.MilestoneStatus
	}
	return n.MilestoneStatus
}

// Canceled reports whether the transfer was called off.
func (n NewsItem) Canceled() bool {
	return n.MilestoneStatus < 0
}

// MilestoneLabel returns the human label for the stage, or "" when out of range.
func (n NewsItem) MilestoneLabel() string {
	stage := n.Stage()
	if stage < MilestoneRumor || stage > MilestoneOfficial {
		return ""
	}
	return milestoneLabels[stage-1]
}

// ChangeKind classifies a write to a news document.
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Updated
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ErrEmptyChange is returned when neither a before nor an after state is present.
var ErrEmptyChange = errors.New("change has neither before nor after state")

// Change is a single write to one news document.
// Before is nil for creations, After is nil for deletions.
type Change struct {
	DocumentID string
	Kind       ChangeKind
	Before     *NewsItem
	After      *NewsItem
}

// NewChange classifies a (before, after) pair.
func NewChange(documentID string, before, after *NewsItem) (Change, error) {
	c := Change{DocumentID: documentID, Before: before, After: after}
	switch {
	case before == nil && after == nil:
		return Change{}, ErrEmptyChange
	case before == nil:
		c.Kind = Created
	case after == nil:
		c.Kind = Deleted
	default:
		c.Kind = Updated
	}
	return c, nil
}

// ChangeEvent is the wire representation of a Change on the change feed.
type ChangeEvent struct {
	EventID    string    `json:"event_id"`
	DocumentID string    `json:"document_id"`
	Before     *NewsItem `json:"before,omitempty"`
	After      *NewsItem `json:"after,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
