package store

import (
	"context"
	"errors"

	"civicstream-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound means the referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict means the document exists but a mutation's conditions no
	// longer hold; the caller should re-read and retry.
	ErrConflict = errors.New("conditional update conflict")
)

// OpKind identifies a field-level atomic operation.
type OpKind int

const (
	OpSet OpKind = iota
	OpInc
	OpAddToSet
	OpPull
)

// FieldOp is a single atomic operation against one field of a document.
// Operations in a batch are applied together; two batches touching
// disjoint fields never clobber each other.
type FieldOp struct {
	Kind  OpKind
	Field string
	Value interface{}
}

func Set(field string, value interface{}) FieldOp {
	return FieldOp{Kind: OpSet, Field: field, Value: value}
}

func Inc(field string, delta int64) FieldOp {
	return FieldOp{Kind: OpInc, Field: field, Value: delta}
}

func AddToSet(field string, value interface{}) FieldOp {
	return FieldOp{Kind: OpAddToSet, Field: field, Value: value}
}

func Pull(field string, value interface{}) FieldOp {
	return FieldOp{Kind: OpPull, Field: field, Value: value}
}

// CondKind identifies a precondition evaluated atomically with an apply.
type CondKind int

const (
	CondEq CondKind = iota
	CondContains
	CondNotContains
)

// Cond guards a batch of field operations. All conditions must hold on the
// current document state at apply time or the batch is rejected with
// ErrConflict.
type Cond struct {
	Kind  CondKind
	Field string
	Value interface{}
}

func Eq(field string, value interface{}) Cond {
	return Cond{Kind: CondEq, Field: field, Value: value}
}

func Contains(field string, value interface{}) Cond {
	return Cond{Kind: CondContains, Field: field, Value: value}
}

func NotContains(field string, value interface{}) Cond {
	return Cond{Kind: CondNotContains, Field: field, Value: value}
}

// Event describes one committed change, consumed by the broadcaster.
type Event struct {
	Collection string `json:"collection"`
	Kind       string `json:"kind"`
	ID         string `json:"id"`
}

const (
	CollectionIssues = "issues"
	CollectionUsers  = "users"

	EventUpserted = "upserted"
	EventDeleted  = "deleted"
)

// Publisher receives change events after each committed mutation.
type Publisher interface {
	Publish(Event)
}

// NopPublisher discards events; handy when no broadcaster is attached.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// IssueStore is the durable mapping from issue id to Issue. Mutations on a
// single issue are atomic and totally ordered; different issues are
// independent.
type IssueStore interface {
	Create(ctx context.Context, issue models.Issue) (models.Issue, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Issue, error)
	// List returns every issue ordered by creation time descending.
	List(ctx context.Context) ([]models.Issue, error)
	// Apply commits ops atomically if every cond holds, returning the
	// post-mutation issue. ErrConflict signals a failed condition on an
	// existing issue.
	Apply(ctx context.Context, id primitive.ObjectID, conds []Cond, ops []FieldOp) (models.Issue, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UserStore is the durable user directory.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetAvatar(ctx context.Context, id primitive.ObjectID, avatar string) (models.User, error)
}
