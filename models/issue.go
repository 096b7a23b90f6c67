package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueStatus enum
type IssueStatus string

const (
	PendingApproval IssueStatus = "Pending Approval"
	Reported        IssueStatus = "Reported"
	InProgress      IssueStatus = "In Progress"
	Resolved        IssueStatus = "Resolved"
	Duplicate       IssueStatus = "Duplicate"
)

// IssuePriority enum
type IssuePriority string

const (
	Low    IssuePriority = "Low"
	Medium IssuePriority = "Medium"
	High   IssuePriority = "High"
)

// Location holds the reported coordinates of an issue
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// LogEntry is a single immutable entry in an issue's updates or comments sequence
type LogEntry struct {
	Text      string             `bson:"text" json:"text"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Issue represents a civic issue reported by a user
type Issue struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID   `bson:"userId" json:"userId"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Image       string               `bson:"image" json:"image"`
	Location    Location             `bson:"location" json:"location"`
	Address     string               `bson:"address" json:"address"`
	Status      IssueStatus          `bson:"status" json:"status"`
	Priority    IssuePriority        `bson:"priority" json:"priority"`
	Funds       int64                `bson:"funds" json:"funds"`
	FundsGoal   int64                `bson:"fundsGoal" json:"fundsGoal"`
	UpvotedBy   []primitive.ObjectID `bson:"upvotedBy" json:"upvotedBy"`
	DownvotedBy []primitive.ObjectID `bson:"downvotedBy" json:"downvotedBy"`
	Updates     []LogEntry           `bson:"updates" json:"updates"`
	Comments    []LogEntry           `bson:"comments" json:"comments"`
	DuplicateOf *primitive.ObjectID  `bson:"duplicateOf,omitempty" json:"duplicateOf,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
}

// ValidStatus reports whether s is one of the known issue statuses.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case PendingApproval, Reported, InProgress, Resolved, Duplicate:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p IssuePriority) bool {
	switch p {
	case Low, Medium, High:
		return true
	}
	return false
}

// Actionable reports whether the issue still accepts engagement
// (votes, contributions, duplicate marking). Resolved and Duplicate
// issues are closed to further engagement.
func (i *Issue) Actionable() bool {
	return i.Status != Resolved && i.Status != Duplicate
}

// Visible reports whether the issue belongs in ordinary feed views.
// Issues awaiting approval only show up in the moderation queue.
func (i *Issue) Visible() bool {
	return i.Status != PendingApproval
}

// Clone returns a deep copy so callers can hand issues out of a store
// without sharing slice backing arrays.
func (i *Issue) Clone() Issue {
	out := *i
	out.UpvotedBy = append([]primitive.ObjectID(nil), i.UpvotedBy...)
	out.DownvotedBy = append([]primitive.ObjectID(nil), i.DownvotedBy...)
	out.Updates = append([]LogEntry(nil), i.Updates...)
	out.Comments = append([]LogEntry(nil), i.Comments...)
	if i.DuplicateOf != nil {
		dup := *i.DuplicateOf
		out.DuplicateOf = &dup
	}
	return out
}
