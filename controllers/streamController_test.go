package controllers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civicstream-be/models"
	"civicstream-be/realtime"
	"civicstream-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sseEvent struct {
	name string
	data string
}

// readEvent parses one server-sent event, failing the test if none arrives
// in time.
func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	done := make(chan sseEvent, 1)
	fail := make(chan error, 1)
	go func() {
		var ev sseEvent
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				fail <- err
				return
			}
			line = strings.TrimRight(line, "\r\n")
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && (ev.name != "" || ev.data != ""):
				done <- ev
				return
			}
		}
	}()
	select {
	case ev := <-done:
		return ev
	case err := <-fail:
		t.Fatalf("read event: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return sseEvent{}
}

func TestStreamIssuesPushesSnapshotsAndDeletions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewHub()
	issues := store.NewMemoryIssueStore(hub)
	users := store.NewMemoryUserStore(hub)
	sc := NewStreamController(hub, issues, users)

	r := gin.New()
	r.GET("/stream", sc.StreamIssues)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	// The subscriber gets a snapshot before any mutation happens.
	first := readEvent(t, reader)
	if first.name != "snapshot" {
		t.Fatalf("first event = %q, want snapshot", first.name)
	}

	issue, err := issues.Create(context.Background(), models.Issue{
		UserID: primitive.NewObjectID(),
		Title:  "flooded underpass",
		Status: models.Reported,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	after := readEvent(t, reader)
	if after.name != "snapshot" || !strings.Contains(after.data, issue.ID.Hex()) {
		t.Fatalf("post-create event = %+v, want snapshot containing the new issue", after)
	}

	// Deletion arrives as a distinct event before the refreshed snapshot,
	// so a detail view can tell "deleted" apart from "still loading".
	if err := issues.Delete(context.Background(), issue.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	deleted := readEvent(t, reader)
	if deleted.name != "deleted" || !strings.Contains(deleted.data, issue.ID.Hex()) {
		t.Fatalf("deletion event = %+v, want deleted with the issue id", deleted)
	}
	final := readEvent(t, reader)
	if final.name != "snapshot" || strings.Contains(final.data, issue.ID.Hex()) {
		t.Fatalf("final event = %+v, want snapshot without the deleted issue", final)
	}
}

func TestStreamUsersPushesDirectory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewHub()
	issues := store.NewMemoryIssueStore(hub)
	users := store.NewMemoryUserStore(hub)
	sc := NewStreamController(hub, issues, users)

	r := gin.New()
	r.GET("/stream", sc.StreamUsers)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	if first := readEvent(t, reader); first.name != "snapshot" {
		t.Fatalf("first event = %q, want snapshot", first.name)
	}

	user, err := users.Create(context.Background(), models.User{Name: "Ravi", Username: "ravi", Email: "ravi@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Issue events are filtered out of the user stream, so the next event
	// the subscriber sees is the refreshed user directory.
	if _, err := issues.Create(context.Background(), models.Issue{UserID: user.ID, Title: "x", Status: models.Reported}); err != nil {
		t.Fatalf("create issue: %v", err)
	}

	after := readEvent(t, reader)
	if after.name != "snapshot" || !strings.Contains(after.data, user.ID.Hex()) {
		t.Fatalf("user snapshot = %+v, want directory containing the new user", after)
	}
}
