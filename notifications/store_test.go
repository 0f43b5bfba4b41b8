package notifications_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matchday-app/matchday-go/api"
	"github.com/matchday-app/matchday-go/notifications"
	"github.com/matchday-app/matchday-go/tokenstore/storefake"
	"github.com/stretchr/testify/require"
)

func record(id string, read bool) notifications.Notification {
	return notifications.Notification{
		ID:        id,
		Title:     "Match reminder",
		Body:      "Kickoff at 6pm",
		Read:      read,
		CreatedAt: time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC),
	}
}

func TestStore_UpsertPrependsNewestFirst(t *testing.T) {
	store := notifications.NewStore()

	store.Upsert(record("a", false))
	store.Upsert(record("b", false))

	list := store.List()
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, "a", list[1].ID)
}

func TestStore_UpsertDeduplicatesByID(t *testing.T) {
	store := notifications.NewStore()

	store.Upsert(record("a", false))
	store.Upsert(record("b", false))

	// Redelivery of "a" updates in place, keeping position and count.
	updated := record("a", false)
	updated.Body = "Kickoff moved to 7pm"
	store.Upsert(updated)

	list := store.List()
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, "Kickoff moved to 7pm", list[1].Body)
}

func TestStore_MarkReadIsIdempotent(t *testing.T) {
	changes := 0
	store := notifications.NewStore(notifications.WithOnChange(func() { changes++ }))

	store.Upsert(record("a", false))
	require.Equal(t, 1, store.UnreadCount())
	changes = 0

	store.MarkRead("a")
	require.Equal(t, 0, store.UnreadCount())
	require.Equal(t, 1, changes)

	// Marking again is a no-op with no side effects.
	store.MarkRead("a")
	require.Equal(t, 0, store.UnreadCount())
	require.Equal(t, 1, changes)

	store.MarkRead("unknown")
	require.Equal(t, 1, changes)
}

func TestStore_MarkAllRead(t *testing.T) {
	store := notifications.NewStore()
	store.Upsert(record("a", false))
	store.Upsert(record("b", true))
	store.Upsert(record("c", false))

	store.MarkAllRead()
	require.Equal(t, 0, store.UnreadCount())
}

func TestStore_ReplaceAllDiscardsPrevious(t *testing.T) {
	store := notifications.NewStore()
	store.Upsert(record("stale", false))

	store.ReplaceAll([]notifications.Notification{record("x", false), record("y", true)})

	list := store.List()
	require.Len(t, list, 2)
	require.Equal(t, "x", list[0].ID)
	require.Equal(t, 1, store.UnreadCount())
}

func TestStore_UnreadCountMatchesFilter(t *testing.T) {
	store := notifications.NewStore()
	require.Equal(t, 0, store.UnreadCount())

	store.Upsert(record("a", false))
	store.Upsert(record("b", true))
	store.Upsert(record("c", false))

	unread := 0
	for _, n := range store.List() {
		if !n.Read {
			unread++
		}
	}
	require.Equal(t, unread, store.UnreadCount())
}

func setupInboxClient(t *testing.T, handler http.Handler) (*notifications.Client, *notifications.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := storefake.NewFakeStore()
	require.NoError(t, store.SetTokens(context.Background(), "t1", "r1"))
	inbox := notifications.NewStore()
	return notifications.NewClient(api.New(server.URL, store), inbox), inbox
}

func TestClient_FetchReplacesCollection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /notifications", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"n1","title":"Invite","read":false},{"id":"n2","title":"Result","read":true}]`))
	})
	client, inbox := setupInboxClient(t, mux)
	inbox.Upsert(record("stale", false))

	require.NoError(t, client.Fetch(context.Background()))
	require.Len(t, inbox.List(), 2)
	require.Equal(t, 1, inbox.UnreadCount())
}

func TestClient_MarkReadMirrorsServerAcceptance(t *testing.T) {
	accepted := false
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /notifications/n1/read", func(w http.ResponseWriter, r *http.Request) {
		accepted = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PATCH /notifications/n2/read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, inbox := setupInboxClient(t, mux)
	inbox.Upsert(record("n1", false))
	inbox.Upsert(record("n2", false))

	require.NoError(t, client.MarkRead(context.Background(), "n1"))
	require.True(t, accepted)
	require.Equal(t, 1, inbox.UnreadCount())

	// A rejected mutation leaves the local record untouched.
	require.Error(t, client.MarkRead(context.Background(), "n2"))
	require.Equal(t, 1, inbox.UnreadCount())
}
