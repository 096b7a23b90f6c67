package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// VoteKind enum
type VoteKind string

const (
	Upvote   VoteKind = "upvote"
	Downvote VoteKind = "downvote"
)

// ValidVoteKind reports whether k is a known vote kind.
func ValidVoteKind(k VoteKind) bool {
	return k == Upvote || k == Downvote
}

// HasVoter reports whether userID is present in the given vote set.
func HasVoter(set []primitive.ObjectID, userID primitive.ObjectID) bool {
	for _, id := range set {
		if id == userID {
			return true
		}
	}
	return false
}

// Score returns the net vote score of an issue.
func (i *Issue) Score() int {
	return len(i.UpvotedBy) - len(i.DownvotedBy)
}
