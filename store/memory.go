package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"civicstream-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryIssueStore is an in-process IssueStore. Mutations on one issue are
// serialized behind that issue's mutex, giving the same atomicity as the
// Mongo operators without a server. Used by tests and as a fallback store.
type MemoryIssueStore struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]*issueEntry
	seq    int64
	pub    Publisher
}

type issueEntry struct {
	mu    sync.Mutex
	issue models.Issue
	seq   int64
}

func NewMemoryIssueStore(pub Publisher) *MemoryIssueStore {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &MemoryIssueStore{issues: make(map[primitive.ObjectID]*issueEntry), pub: pub}
}

func (s *MemoryIssueStore) Create(_ context.Context, issue models.Issue) (models.Issue, error) {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.seq++
	s.issues[issue.ID] = &issueEntry{issue: issue.Clone(), seq: s.seq}
	s.mu.Unlock()
	s.pub.Publish(Event{Collection: CollectionIssues, Kind: EventUpserted, ID: issue.ID.Hex()})
	return issue, nil
}

func (s *MemoryIssueStore) entry(id primitive.ObjectID) (*issueEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.issues[id]
	return e, ok
}

func (s *MemoryIssueStore) Get(_ context.Context, id primitive.ObjectID) (models.Issue, error) {
	e, ok := s.entry(id)
	if !ok {
		return models.Issue{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issue.Clone(), nil
}

func (s *MemoryIssueStore) List(_ context.Context) ([]models.Issue, error) {
	s.mu.RLock()
	entries := make([]*issueEntry, 0, len(s.issues))
	for _, e := range s.issues {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if !ea.issue.CreatedAt.Equal(eb.issue.CreatedAt) {
			return ea.issue.CreatedAt.After(eb.issue.CreatedAt)
		}
		return ea.seq > eb.seq
	})

	issues := make([]models.Issue, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		issues = append(issues, e.issue.Clone())
		e.mu.Unlock()
	}
	return issues, nil
}

func (s *MemoryIssueStore) Apply(_ context.Context, id primitive.ObjectID, conds []Cond, ops []FieldOp) (models.Issue, error) {
	e, ok := s.entry(id)
	if !ok {
		return models.Issue{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, cond := range conds {
		holds, err := evalCond(&e.issue, cond)
		if err != nil {
			return models.Issue{}, err
		}
		if !holds {
			return models.Issue{}, ErrConflict
		}
	}

	// Apply against a copy so a bad op batch leaves the issue untouched.
	work := e.issue.Clone()
	for _, op := range ops {
		if err := applyOp(&work, op); err != nil {
			return models.Issue{}, err
		}
	}
	e.issue = work

	s.pub.Publish(Event{Collection: CollectionIssues, Kind: EventUpserted, ID: id.Hex()})
	return work.Clone(), nil
}

func (s *MemoryIssueStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	_, ok := s.issues[id]
	if ok {
		delete(s.issues, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.pub.Publish(Event{Collection: CollectionIssues, Kind: EventDeleted, ID: id.Hex()})
	return nil
}

func voteSet(issue *models.Issue, field string) (*[]primitive.ObjectID, bool) {
	switch field {
	case "upvotedBy":
		return &issue.UpvotedBy, true
	case "downvotedBy":
		return &issue.DownvotedBy, true
	}
	return nil, false
}

func evalCond(issue *models.Issue, cond Cond) (bool, error) {
	switch cond.Kind {
	case CondEq:
		if cond.Field == "status" {
			return issue.Status == cond.Value, nil
		}
		return false, fmt.Errorf("unsupported eq condition field %q", cond.Field)
	case CondContains, CondNotContains:
		set, ok := voteSet(issue, cond.Field)
		if !ok {
			return false, fmt.Errorf("unsupported membership condition field %q", cond.Field)
		}
		userID, ok := cond.Value.(primitive.ObjectID)
		if !ok {
			return false, fmt.Errorf("membership condition on %q needs an object id", cond.Field)
		}
		has := models.HasVoter(*set, userID)
		if cond.Kind == CondContains {
			return has, nil
		}
		return !has, nil
	}
	return false, fmt.Errorf("unknown condition kind %d", cond.Kind)
}

func applyOp(issue *models.Issue, op FieldOp) error {
	switch op.Kind {
	case OpSet:
		switch op.Field {
		case "status":
			status, ok := op.Value.(models.IssueStatus)
			if !ok {
				return fmt.Errorf("status set needs an IssueStatus value")
			}
			issue.Status = status
		case "duplicateOf":
			if op.Value == nil {
				issue.DuplicateOf = nil
				return nil
			}
			id, ok := op.Value.(primitive.ObjectID)
			if !ok {
				return fmt.Errorf("duplicateOf set needs an object id")
			}
			issue.DuplicateOf = &id
		default:
			return fmt.Errorf("unsupported set field %q", op.Field)
		}
	case OpInc:
		if op.Field != "funds" {
			return fmt.Errorf("unsupported inc field %q", op.Field)
		}
		delta, ok := op.Value.(int64)
		if !ok {
			return fmt.Errorf("funds inc needs an int64 delta")
		}
		issue.Funds += delta
	case OpAddToSet:
		if set, ok := voteSet(issue, op.Field); ok {
			userID, ok := op.Value.(primitive.ObjectID)
			if !ok {
				return fmt.Errorf("vote add on %q needs an object id", op.Field)
			}
			if !models.HasVoter(*set, userID) {
				*set = append(*set, userID)
			}
			return nil
		}
		entry, ok := op.Value.(models.LogEntry)
		if !ok {
			return fmt.Errorf("unsupported add field %q", op.Field)
		}
		switch op.Field {
		case "updates":
			issue.Updates = append(issue.Updates, entry)
		case "comments":
			issue.Comments = append(issue.Comments, entry)
		default:
			return fmt.Errorf("unsupported add field %q", op.Field)
		}
	case OpPull:
		set, ok := voteSet(issue, op.Field)
		if !ok {
			return fmt.Errorf("unsupported pull field %q", op.Field)
		}
		userID, ok := op.Value.(primitive.ObjectID)
		if !ok {
			return fmt.Errorf("vote pull on %q needs an object id", op.Field)
		}
		out := (*set)[:0]
		for _, id := range *set {
			if id != userID {
				out = append(out, id)
			}
		}
		*set = out
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
	return nil
}

// MemoryUserStore is the in-process counterpart of MongoUserStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
	pub   Publisher
}

func NewMemoryUserStore(pub Publisher) *MemoryUserStore {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &MemoryUserStore{users: make(map[primitive.ObjectID]models.User), pub: pub}
}

func (s *MemoryUserStore) Create(_ context.Context, user models.User) (models.User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	s.pub.Publish(Event{Collection: CollectionUsers, Kind: EventUpserted, ID: user.ID.Hex()})
	return user, nil
}

func (s *MemoryUserStore) Get(_ context.Context, id primitive.ObjectID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryUserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(a, b int) bool { return users[a].CreatedAt.Before(users[b].CreatedAt) })
	return users, nil
}

func (s *MemoryUserStore) SetAvatar(_ context.Context, id primitive.ObjectID, avatar string) (models.User, error) {
	s.mu.Lock()
	user, ok := s.users[id]
	if ok {
		user.Avatar = avatar
		user.UpdatedAt = time.Now().UTC()
		s.users[id] = user
	}
	s.mu.Unlock()
	if !ok {
		return models.User{}, ErrNotFound
	}
	s.pub.Publish(Event{Collection: CollectionUsers, Kind: EventUpserted, ID: id.Hex()})
	return user, nil
}
