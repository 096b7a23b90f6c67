package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"civicstream-be/models"
	"civicstream-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrPermissionDenied means the caller's role or ownership check failed.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument means the request itself is malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState means the issue no longer accepts this action.
	ErrInvalidState = errors.New("issue is not actionable")
)

// applyRetries bounds re-reads when a conditional apply loses a race to a
// concurrent mutation of the same issue.
const applyRetries = 3

// Caller is the authenticated identity performing a mutation, as attested
// by the identity provider.
type Caller struct {
	ID      primitive.ObjectID
	IsAdmin bool
}

// IssueDraft carries the reporter-supplied fields of a new issue.
type IssueDraft struct {
	Title       string
	Description string
	Priority    models.IssuePriority
	Image       string
	Location    models.Location
	Address     string
	FundsGoal   int64
}

// IssueService owns issue lifecycle rules. It keeps no state of its own;
// every decision is computed against the store's current state and applied
// through the store's atomic mutation boundary.
type IssueService struct {
	Issues store.IssueStore
}

func NewIssueService(issues store.IssueStore) *IssueService {
	return &IssueService{Issues: issues}
}

// Create inserts a new issue in Pending Approval with empty engagement state.
func (s *IssueService) Create(ctx context.Context, draft IssueDraft, reporterID primitive.ObjectID) (models.Issue, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" || strings.TrimSpace(draft.Description) == "" {
		return models.Issue{}, ErrInvalidArgument
	}
	if !models.ValidPriority(draft.Priority) {
		return models.Issue{}, ErrInvalidArgument
	}
	if draft.FundsGoal < 0 {
		return models.Issue{}, ErrInvalidArgument
	}
	if draft.Location.Lat < -90 || draft.Location.Lat > 90 || draft.Location.Lng < -180 || draft.Location.Lng > 180 {
		return models.Issue{}, ErrInvalidArgument
	}

	image := draft.Image
	if image == "" {
		image = fallbackImage(title)
	}

	issue := models.Issue{
		UserID:      reporterID,
		Title:       title,
		Description: draft.Description,
		Image:       image,
		Location:    draft.Location,
		Address:     draft.Address,
		Status:      models.PendingApproval,
		Priority:    draft.Priority,
		Funds:       0,
		FundsGoal:   draft.FundsGoal,
		UpvotedBy:   []primitive.ObjectID{},
		DownvotedBy: []primitive.ObjectID{},
		Updates:     []models.LogEntry{},
		Comments:    []models.LogEntry{},
		CreatedAt:   time.Now().UTC(),
	}
	return s.Issues.Create(ctx, issue)
}

func fallbackImage(title string) string {
	words := strings.Fields(title)
	return "https://source.unsplash.com/800x600/?" + words[len(words)-1]
}

func (s *IssueService) Get(ctx context.Context, id primitive.ObjectID) (models.Issue, error) {
	return s.Issues.Get(ctx, id)
}

// Feed returns every visible issue, newest first. Issues pending approval
// are excluded; they only surface in the moderation queue.
func (s *IssueService) Feed(ctx context.Context) ([]models.Issue, error) {
	all, err := s.Issues.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]models.Issue, 0, len(all))
	for _, issue := range all {
		if issue.Visible() {
			visible = append(visible, issue)
		}
	}
	return visible, nil
}

// Moderation returns the admin-only queue of issues awaiting approval.
func (s *IssueService) Moderation(ctx context.Context, caller Caller) ([]models.Issue, error) {
	if !caller.IsAdmin {
		return nil, ErrPermissionDenied
	}
	all, err := s.Issues.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]models.Issue, 0)
	for _, issue := range all {
		if issue.Status == models.PendingApproval {
			pending = append(pending, issue)
		}
	}
	return pending, nil
}

// mutate re-reads the issue, lets build compute conditions and operations
// against that state, and retries when a concurrent commit invalidates the
// conditions. Exhausting the retries surfaces store.ErrConflict.
func (s *IssueService) mutate(ctx context.Context, id primitive.ObjectID, build func(models.Issue) ([]store.Cond, []store.FieldOp, error)) (models.Issue, error) {
	lastErr := error(store.ErrConflict)
	for attempt := 0; attempt < applyRetries; attempt++ {
		issue, err := s.Issues.Get(ctx, id)
		if err != nil {
			return models.Issue{}, err
		}
		conds, ops, err := build(issue)
		if err != nil {
			return models.Issue{}, err
		}
		updated, err := s.Issues.Apply(ctx, id, conds, ops)
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			continue
		}
		return updated, err
	}
	return models.Issue{}, lastErr
}

// Vote toggles the user's membership in the matching vote set. Voting the
// same way twice retracts the vote; voting the opposite way switches it in
// one atomic step. The membership decision is guarded by conditions so two
// sessions of the same user converge instead of double-counting.
func (s *IssueService) Vote(ctx context.Context, issueID, userID primitive.ObjectID, kind models.VoteKind) (models.Issue, error) {
	if !models.ValidVoteKind(kind) {
		return models.Issue{}, ErrInvalidArgument
	}
	return s.mutate(ctx, issueID, func(issue models.Issue) ([]store.Cond, []store.FieldOp, error) {
		if !issue.Actionable() {
			return nil, nil, ErrInvalidState
		}
		matching, opposite := "upvotedBy", "downvotedBy"
		set := issue.UpvotedBy
		if kind == models.Downvote {
			matching, opposite = opposite, matching
			set = issue.DownvotedBy
		}
		conds := []store.Cond{store.Eq("status", issue.Status)}
		if models.HasVoter(set, userID) {
			conds = append(conds, store.Contains(matching, userID))
			return conds, []store.FieldOp{store.Pull(matching, userID)}, nil
		}
		conds = append(conds, store.NotContains(matching, userID))
		ops := []store.FieldOp{
			store.AddToSet(matching, userID),
			store.Pull(opposite, userID),
		}
		return conds, ops, nil
	})
}

// Contribute adds a positive amount to the issue's funds. Over-funding past
// the goal is allowed; the total never decreases.
func (s *IssueService) Contribute(ctx context.Context, issueID primitive.ObjectID, amount int64) (models.Issue, error) {
	if amount <= 0 {
		return models.Issue{}, ErrInvalidArgument
	}
	return s.mutate(ctx, issueID, func(issue models.Issue) ([]store.Cond, []store.FieldOp, error) {
		if !issue.Actionable() {
			return nil, nil, ErrInvalidState
		}
		conds := []store.Cond{store.Eq("status", issue.Status)}
		return conds, []store.FieldOp{store.Inc("funds", amount)}, nil
	})
}

// SetStatus moves an issue to a new status. Admin-only. Entering Duplicate
// requires a canonical original and must go through MarkDuplicate; leaving
// Duplicate clears the stale duplicateOf reference.
func (s *IssueService) SetStatus(ctx context.Context, issueID primitive.ObjectID, newStatus models.IssueStatus, caller Caller) (models.Issue, error) {
	if !caller.IsAdmin {
		return models.Issue{}, ErrPermissionDenied
	}
	if !models.ValidStatus(newStatus) || newStatus == models.Duplicate {
		return models.Issue{}, ErrInvalidArgument
	}
	return s.mutate(ctx, issueID, func(issue models.Issue) ([]store.Cond, []store.FieldOp, error) {
		conds := []store.Cond{store.Eq("status", issue.Status)}
		ops := []store.FieldOp{store.Set("status", newStatus)}
		if issue.Status == models.Duplicate {
			ops = append(ops, store.Set("duplicateOf", nil))
		}
		return conds, ops, nil
	})
}

// MarkDuplicate collapses issueID into originalID as its canonical report.
// Self-references and chains onto an issue that is itself a duplicate are
// rejected outright.
func (s *IssueService) MarkDuplicate(ctx context.Context, issueID, originalID primitive.ObjectID, caller Caller) (models.Issue, error) {
	if issueID == originalID {
		return models.Issue{}, ErrInvalidArgument
	}
	original, err := s.Issues.Get(ctx, originalID)
	if err != nil {
		return models.Issue{}, err
	}
	if original.Status == models.Duplicate {
		return models.Issue{}, ErrInvalidArgument
	}
	return s.mutate(ctx, issueID, func(issue models.Issue) ([]store.Cond, []store.FieldOp, error) {
		if !caller.IsAdmin && issue.UserID != caller.ID {
			return nil, nil, ErrPermissionDenied
		}
		if !issue.Actionable() {
			return nil, nil, ErrInvalidState
		}
		conds := []store.Cond{store.Eq("status", issue.Status)}
		ops := []store.FieldOp{
			store.Set("status", models.Duplicate),
			store.Set("duplicateOf", originalID),
		}
		return conds, ops, nil
	})
}

// AddUpdate appends an admin-authored progress update.
func (s *IssueService) AddUpdate(ctx context.Context, issueID primitive.ObjectID, text string, caller Caller) (models.Issue, error) {
	if !caller.IsAdmin {
		return models.Issue{}, ErrPermissionDenied
	}
	return s.appendLog(ctx, issueID, "updates", text, caller)
}

// AddComment appends a comment from any authenticated user.
func (s *IssueService) AddComment(ctx context.Context, issueID primitive.ObjectID, text string, caller Caller) (models.Issue, error) {
	return s.appendLog(ctx, issueID, "comments", text, caller)
}

func (s *IssueService) appendLog(ctx context.Context, issueID primitive.ObjectID, field, text string, caller Caller) (models.Issue, error) {
	if strings.TrimSpace(text) == "" {
		return models.Issue{}, ErrInvalidArgument
	}
	entry := models.LogEntry{
		Text:      text,
		UserID:    caller.ID,
		Timestamp: time.Now().UTC(),
	}
	return s.Issues.Apply(ctx, issueID, nil, []store.FieldOp{store.AddToSet(field, entry)})
}

// Delete permanently removes an issue. Only the reporter or an admin may
// delete; subscribers learn about it through a distinct deletion event.
func (s *IssueService) Delete(ctx context.Context, issueID primitive.ObjectID, caller Caller) error {
	issue, err := s.Issues.Get(ctx, issueID)
	if err != nil {
		return err
	}
	if !caller.IsAdmin && issue.UserID != caller.ID {
		return ErrPermissionDenied
	}
	return s.Issues.Delete(ctx, issueID)
}
