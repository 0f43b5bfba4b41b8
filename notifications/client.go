package notifications

import (
	"context"
	"net/http"

	"github.com/matchday-app/matchday-go/api"
	"github.com/pkg/errors"
)

const (
	notificationsPath = "/notifications"
	readAllPath       = "/notifications/read-all"
)

// Client mirrors inbox mutations to the server and keeps the local store in
// sync. Fetch replaces the whole collection; the mark operations apply locally
// only after the server accepted them.
type Client struct {
	api   *api.Client
	store *Store
}

func NewClient(apiClient *api.Client, store *Store) *Client {
	return &Client{api: apiClient, store: store}
}

func (c *Client) Fetch(ctx context.Context) error {
	var records []Notification
	if err := c.api.Do(ctx, http.MethodGet, notificationsPath, nil, &records); err != nil {
		return errors.Wrap(err, "[Client.Fetch]")
	}
	c.store.ReplaceAll(records)
	return nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	if err := c.api.Do(ctx, http.MethodPatch, notificationsPath+"/"+id+"/read", nil, nil); err != nil {
		return errors.Wrap(err, "[Client.MarkRead]")
	}
	c.store.MarkRead(id)
	return nil
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.api.Do(ctx, http.MethodPost, readAllPath, nil, nil); err != nil {
		return errors.Wrap(err, "[Client.MarkAllRead]")
	}
	c.store.MarkAllRead()
	return nil
}
