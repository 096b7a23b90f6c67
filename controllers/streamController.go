package controllers

import (
	"context"
	"io"
	"log"

	"civicstream-be/models"
	"civicstream-be/realtime"
	"civicstream-be/store"

	"github.com/gin-gonic/gin"
)

// StreamController serves the real-time sync surface over server-sent
// events. Every subscriber runs its own push loop; on each committed
// mutation it re-reads the full collection and pushes a fresh snapshot, so
// clients never have to assume their own write landed until the push
// arrives. Deletions are forwarded as a distinct event ahead of the
// refreshed snapshot so an open detail view can tell "deleted" apart from
// "still loading".
type StreamController struct {
	Hub    *realtime.Hub
	Issues store.IssueStore
	Users  store.UserStore
}

func NewStreamController(hub *realtime.Hub, issues store.IssueStore, users store.UserStore) *StreamController {
	return &StreamController{Hub: hub, Issues: issues, Users: users}
}

func sseHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
}

// StreamIssues pushes the full issue collection to the subscriber on every
// committed issue mutation.
func (sc *StreamController) StreamIssues(c *gin.Context) {
	sseHeaders(c)

	_, events, cancel := sc.Hub.Subscribe(realtime.DefaultBuffer)
	defer cancel()

	// Initial snapshot so the client has state before the first mutation.
	if !sc.pushIssueSnapshot(c) {
		return
	}

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-events:
			if !ok {
				// Dropped by the hub for falling behind; the client
				// reconnects and gets a fresh subscription.
				return false
			}
			if ev.Collection != store.CollectionIssues {
				return true
			}
			if ev.Kind == store.EventDeleted {
				c.SSEvent("deleted", gin.H{"id": ev.ID})
			}
			return sc.pushIssueSnapshot(c)
		}
	})
}

func (sc *StreamController) pushIssueSnapshot(c *gin.Context) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issues, err := sc.Issues.List(ctx)
	if err != nil {
		log.Println("stream: failed to read issue snapshot:", err)
		return false
	}
	c.SSEvent("snapshot", gin.H{"issues": issues})
	c.Writer.Flush()
	return true
}

// StreamUsers pushes the user directory on every committed user mutation.
func (sc *StreamController) StreamUsers(c *gin.Context) {
	sseHeaders(c)

	_, events, cancel := sc.Hub.Subscribe(realtime.DefaultBuffer)
	defer cancel()

	if !sc.pushUserSnapshot(c) {
		return
	}

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if ev.Collection != store.CollectionUsers {
				return true
			}
			return sc.pushUserSnapshot(c)
		}
	})
}

func (sc *StreamController) pushUserSnapshot(c *gin.Context) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	users, err := sc.Users.List(ctx)
	if err != nil {
		log.Println("stream: failed to read user snapshot:", err)
		return false
	}
	directory := make(map[string]models.User, len(users))
	for _, user := range users {
		directory[user.ID.Hex()] = user
	}
	c.SSEvent("snapshot", gin.H{"users": directory})
	c.Writer.Flush()
	return true
}
