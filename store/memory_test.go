package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"civicstream-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) all() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func seedIssue(t *testing.T, s *MemoryIssueStore, createdAt time.Time) models.Issue {
	t.Helper()
	issue, err := s.Create(context.Background(), models.Issue{
		UserID:      primitive.NewObjectID(),
		Title:       "pothole",
		Description: "deep one",
		Status:      models.Reported,
		Priority:    models.Low,
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return issue
}

func TestMemoryApplyFieldOps(t *testing.T) {
	s := NewMemoryIssueStore(nil)
	issue := seedIssue(t, s, time.Time{})
	ctx := context.Background()
	voter := primitive.NewObjectID()

	got, err := s.Apply(ctx, issue.ID, nil, []FieldOp{
		Inc("funds", 250),
		AddToSet("upvotedBy", voter),
		Set("status", models.InProgress),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Funds != 250 || got.Status != models.InProgress || !models.HasVoter(got.UpvotedBy, voter) {
		t.Errorf("apply result wrong: %+v", got)
	}

	// AddToSet is a set operation, not an append.
	got, err = s.Apply(ctx, issue.ID, nil, []FieldOp{AddToSet("upvotedBy", voter)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got.UpvotedBy) != 1 {
		t.Errorf("upvotedBy = %v, want one entry", got.UpvotedBy)
	}

	got, err = s.Apply(ctx, issue.ID, nil, []FieldOp{Pull("upvotedBy", voter)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got.UpvotedBy) != 0 {
		t.Errorf("upvotedBy = %v, want empty after pull", got.UpvotedBy)
	}
}

func TestMemoryApplyConditions(t *testing.T) {
	s := NewMemoryIssueStore(nil)
	issue := seedIssue(t, s, time.Time{})
	ctx := context.Background()
	voter := primitive.NewObjectID()

	if _, err := s.Apply(ctx, issue.ID, []Cond{Eq("status", models.Resolved)}, []FieldOp{Inc("funds", 1)}); !errors.Is(err, ErrConflict) {
		t.Errorf("failed eq cond: err = %v, want ErrConflict", err)
	}
	if _, err := s.Apply(ctx, issue.ID, []Cond{Contains("upvotedBy", voter)}, []FieldOp{Pull("upvotedBy", voter)}); !errors.Is(err, ErrConflict) {
		t.Errorf("failed contains cond: err = %v, want ErrConflict", err)
	}
	if _, err := s.Apply(ctx, issue.ID, []Cond{NotContains("upvotedBy", voter)}, []FieldOp{AddToSet("upvotedBy", voter)}); err != nil {
		t.Errorf("not-contains cond should hold: %v", err)
	}

	got, err := s.Get(ctx, issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Funds != 0 {
		t.Errorf("funds = %d after rejected apply, want 0", got.Funds)
	}

	if _, err := s.Apply(ctx, primitive.NewObjectID(), nil, []FieldOp{Inc("funds", 1)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing issue: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryBadOpLeavesIssueUntouched(t *testing.T) {
	s := NewMemoryIssueStore(nil)
	issue := seedIssue(t, s, time.Time{})
	ctx := context.Background()

	_, err := s.Apply(ctx, issue.ID, nil, []FieldOp{
		Inc("funds", 100),
		Set("title", "mutating immutable field"),
	})
	if err == nil {
		t.Fatal("expected error for unsupported field")
	}
	got, _ := s.Get(ctx, issue.ID)
	if got.Funds != 0 {
		t.Errorf("partial apply leaked: funds = %d", got.Funds)
	}
}

func TestMemoryListOrder(t *testing.T) {
	s := NewMemoryIssueStore(nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := seedIssue(t, s, base)
	newer := seedIssue(t, s, base.Add(time.Hour))

	issues, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(issues) != 2 || issues[0].ID != newer.ID || issues[1].ID != older.ID {
		t.Errorf("list not ordered by creation time descending")
	}
}

func TestMemoryConcurrentDisjointVotes(t *testing.T) {
	s := NewMemoryIssueStore(nil)
	issue := seedIssue(t, s, time.Time{})
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			voter := primitive.NewObjectID()
			if _, err := s.Apply(ctx, issue.ID, nil, []FieldOp{AddToSet("upvotedBy", voter)}); err != nil {
				t.Errorf("apply: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, issue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.UpvotedBy) != n {
		t.Errorf("upvotedBy = %d entries, want %d (lost update)", len(got.UpvotedBy), n)
	}
}

func TestMemoryPublishesChangeEvents(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewMemoryIssueStore(pub)
	ctx := context.Background()

	issue := seedIssue(t, s, time.Time{})
	if _, err := s.Apply(ctx, issue.ID, nil, []FieldOp{Inc("funds", 5)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.Delete(ctx, issue.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, issue.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}

	events := pub.all()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	kinds := []string{EventUpserted, EventUpserted, EventDeleted}
	for i, ev := range events {
		if ev.Kind != kinds[i] || ev.Collection != CollectionIssues || ev.ID != issue.ID.Hex() {
			t.Errorf("event %d = %+v, want kind %q for issue %s", i, ev, kinds[i], issue.ID.Hex())
		}
	}
}

func TestMemoryGetReturnsCopies(t *testing.T) {
	s := NewMemoryIssueStore(nil)
	issue := seedIssue(t, s, time.Time{})
	ctx := context.Background()
	voter := primitive.NewObjectID()

	if _, err := s.Apply(ctx, issue.ID, nil, []FieldOp{AddToSet("upvotedBy", voter)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := s.Get(ctx, issue.ID)
	got.UpvotedBy[0] = primitive.NewObjectID()

	again, _ := s.Get(ctx, issue.ID)
	if again.UpvotedBy[0] != voter {
		t.Error("mutating a returned issue leaked into the store")
	}
}

func TestMemoryUserStore(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewMemoryUserStore(pub)
	ctx := context.Background()

	user, err := s.Create(ctx, models.User{Name: "Asha", Username: "asha", Email: "asha@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.GetByEmail(ctx, "asha@example.com"); err != nil {
		t.Errorf("get by email: %v", err)
	}
	if _, err := s.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing email: err = %v, want ErrNotFound", err)
	}

	updated, err := s.SetAvatar(ctx, user.ID, "https://example.com/a.png")
	if err != nil {
		t.Fatalf("set avatar: %v", err)
	}
	if updated.Avatar != "https://example.com/a.png" {
		t.Errorf("avatar = %q", updated.Avatar)
	}

	events := pub.all()
	if len(events) != 2 || events[0].Collection != CollectionUsers {
		t.Errorf("user events = %+v, want two user upserts", events)
	}
}
