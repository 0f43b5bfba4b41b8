package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matchday-app/matchday-go/api"
	"github.com/matchday-app/matchday-go/notifications"
	"github.com/matchday-app/matchday-go/session"
	"github.com/matchday-app/matchday-go/tokenstore"
	"github.com/matchday-app/matchday-go/tokenstore/storefake"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	lock       sync.Mutex
	registered []registerMessage
	events     chan serverEvent
	closed     chan struct{}
	closeOnce  sync.Once
}

var _ Conn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan serverEvent, 8),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(ctx context.Context, v any) error {
	select {
	case event := <-c.events:
		*(v.(*serverEvent)) = event
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) WriteJSON(ctx context.Context, v any) error {
	if msg, ok := v.(registerMessage); ok {
		c.lock.Lock()
		c.registered = append(c.registered, msg)
		c.lock.Unlock()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(t *testing.T, record notifications.Notification) {
	t.Helper()
	data, err := json.Marshal(record)
	require.NoError(t, err)
	c.events <- serverEvent{Event: eventNotification, Data: data}
}

type fakeDialer struct {
	lock  sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) dial(ctx context.Context, url string) (Conn, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) count() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.conns)
}

func setupService(t *testing.T) (*Service, *fakeDialer, *notifications.Store) {
	t.Helper()
	dialer := &fakeDialer{}
	store := notifications.NewStore()
	service := NewService("ws://test", store, WithDialer(dialer.dial))
	t.Cleanup(service.Teardown)
	return service, dialer, store
}

func TestService_AttachRegistersUser(t *testing.T) {
	service, dialer, _ := setupService(t)

	service.apply("A")

	require.Equal(t, 1, dialer.count())
	conn := dialer.conn(0)
	require.Equal(t, []registerMessage{{Event: eventRegister, UserID: "A"}}, conn.registered)
	require.False(t, conn.isClosed())
}

func TestService_ChannelExclusivity(t *testing.T) {
	service, dialer, _ := setupService(t)

	service.apply("A")
	service.apply("B")

	require.Equal(t, 2, dialer.count())
	require.True(t, dialer.conn(0).isClosed(), "A's channel must be fully closed")
	second := dialer.conn(1)
	require.False(t, second.isClosed())
	require.Equal(t, []registerMessage{{Event: eventRegister, UserID: "B"}}, second.registered)
}

func TestService_SameUserKeepsChannel(t *testing.T) {
	service, dialer, _ := setupService(t)

	service.apply("A")
	service.apply("A")

	require.Equal(t, 1, dialer.count())
	require.False(t, dialer.conn(0).isClosed())
}

func TestService_DetachOnSessionEnd(t *testing.T) {
	service, dialer, store := setupService(t)

	service.apply("A")
	service.apply("")

	require.True(t, dialer.conn(0).isClosed())

	// An event arriving on the dead transport is never processed.
	dialer.conn(0).events <- serverEvent{Event: eventNotification, Data: []byte(`{"id":"late"}`)}
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, store.List())
}

func TestService_EventsFlowIntoStore(t *testing.T) {
	service, dialer, store := setupService(t)
	service.apply("A")

	dialer.conn(0).push(t, notifications.Notification{ID: "n1", Title: "Match invite"})

	require.Eventually(t, func() bool {
		return len(store.List()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "n1", store.List()[0].ID)
}

func TestService_RedeliveredEventIsUpserted(t *testing.T) {
	service, dialer, store := setupService(t)
	service.apply("A")

	dialer.conn(0).push(t, notifications.Notification{ID: "n1", Title: "Match invite"})
	dialer.conn(0).push(t, notifications.Notification{ID: "n1", Title: "Match invite"})
	dialer.conn(0).push(t, notifications.Notification{ID: "n2", Title: "Result posted"})

	require.Eventually(t, func() bool {
		return len(store.List()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, store.UnreadCount())
}

func TestService_AssignsFallbackIDAndTimestamp(t *testing.T) {
	service, dialer, store := setupService(t)
	service.apply("A")

	dialer.conn(0).push(t, notifications.Notification{Title: "No id"})

	require.Eventually(t, func() bool {
		return len(store.List()) == 1
	}, time.Second, 5*time.Millisecond)
	got := store.List()[0]
	require.NotEmpty(t, got.ID)
	require.False(t, got.CreatedAt.IsZero())
}

func TestService_FollowsSessionLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ctx := context.Background()
	store := storefake.NewFakeStore()
	require.NoError(t, store.SetTokens(ctx, "a", "r"))
	require.NoError(t, store.Set(ctx, tokenstore.KeyUser, `{"id":"42"}`))
	manager := session.New(api.New(server.URL, store), store)

	service, dialer, _ := setupService(t)
	service.Init(manager)
	require.Equal(t, 0, dialer.count(), "no channel before authentication")

	require.NoError(t, manager.Restore(ctx))
	require.Equal(t, 1, dialer.count())
	require.Equal(t, "42", dialer.conn(0).registered[0].UserID)

	manager.Logout(ctx)
	require.True(t, dialer.conn(0).isClosed())
	require.Equal(t, 1, dialer.count(), "logout must not open a new channel")
}

func TestService_TeardownDetaches(t *testing.T) {
	service, dialer, _ := setupService(t)
	service.apply("A")

	service.Teardown()
	require.True(t, dialer.conn(0).isClosed())
}
