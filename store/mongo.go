package store

import (
	"context"
	"time"

	"civicstream-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIssueStore keeps issues in a MongoDB collection, relying on the
// server's atomic update operators for field-level mutations.
type MongoIssueStore struct {
	col *mongo.Collection
	pub Publisher
}

func NewMongoIssueStore(col *mongo.Collection, pub Publisher) *MongoIssueStore {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &MongoIssueStore{col: col, pub: pub}
}

func condFilter(id primitive.ObjectID, conds []Cond) bson.M {
	filter := bson.M{"_id": id}
	for _, cond := range conds {
		switch cond.Kind {
		case CondEq, CondContains:
			filter[cond.Field] = cond.Value
		case CondNotContains:
			filter[cond.Field] = bson.M{"$ne": cond.Value}
		}
	}
	return filter
}

func updateDoc(ops []FieldOp) bson.M {
	update := bson.M{}
	put := func(operator string, op FieldOp) {
		fields, ok := update[operator].(bson.M)
		if !ok {
			fields = bson.M{}
			update[operator] = fields
		}
		fields[op.Field] = op.Value
	}
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			put("$set", op)
		case OpInc:
			put("$inc", op)
		case OpAddToSet:
			put("$addToSet", op)
		case OpPull:
			put("$pull", op)
		}
	}
	return update
}

func (s *MongoIssueStore) Create(ctx context.Context, issue models.Issue) (models.Issue, error) {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}
	if _, err := s.col.InsertOne(ctx, issue); err != nil {
		return models.Issue{}, err
	}
	s.pub.Publish(Event{Collection: CollectionIssues, Kind: EventUpserted, ID: issue.ID.Hex()})
	return issue, nil
}

func (s *MongoIssueStore) Get(ctx context.Context, id primitive.ObjectID) (models.Issue, error) {
	var issue models.Issue
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return models.Issue{}, ErrNotFound
	}
	if err != nil {
		return models.Issue{}, err
	}
	return issue, nil
}

func (s *MongoIssueStore) List(ctx context.Context) ([]models.Issue, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (s *MongoIssueStore) Apply(ctx context.Context, id primitive.ObjectID, conds []Cond, ops []FieldOp) (models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Issue
	err := s.col.FindOneAndUpdate(ctx, condFilter(id, conds), updateDoc(ops), opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		// Distinguish a failed condition from a missing document.
		count, countErr := s.col.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return models.Issue{}, countErr
		}
		if count == 0 {
			return models.Issue{}, ErrNotFound
		}
		return models.Issue{}, ErrConflict
	}
	if err != nil {
		return models.Issue{}, err
	}
	s.pub.Publish(Event{Collection: CollectionIssues, Kind: EventUpserted, ID: id.Hex()})
	return updated, nil
}

func (s *MongoIssueStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	s.pub.Publish(Event{Collection: CollectionIssues, Kind: EventDeleted, ID: id.Hex()})
	return nil
}

// MongoUserStore keeps the user directory in a MongoDB collection.
type MongoUserStore struct {
	col *mongo.Collection
	pub Publisher
}

func NewMongoUserStore(col *mongo.Collection, pub Publisher) *MongoUserStore {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &MongoUserStore{col: col, pub: pub}
}

func (s *MongoUserStore) Create(ctx context.Context, user models.User) (models.User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if _, err := s.col.InsertOne(ctx, user); err != nil {
		return models.User{}, err
	}
	s.pub.Publish(Event{Collection: CollectionUsers, Kind: EventUpserted, ID: user.ID.Hex()})
	return user, nil
}

func (s *MongoUserStore) Get(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *MongoUserStore) List(ctx context.Context) ([]models.User, error) {
	cursor, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoUserStore) SetAvatar(ctx context.Context, id primitive.ObjectID, avatar string) (models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"avatar": avatar, "updatedAt": time.Now().UTC()}}
	var updated models.User
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	s.pub.Publish(Event{Collection: CollectionUsers, Kind: EventUpserted, ID: id.Hex()})
	return updated, nil
}
