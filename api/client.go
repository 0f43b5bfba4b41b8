package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/matchday-app/matchday-go/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const refreshTokenPath = "/auth/refresh-token"

// Client is the single outbound request path. It attaches the bearer token
// read fresh from the token store on every request, and on a 401 runs the
// refresh protocol: one refresh round-trip (collapsed across concurrent
// failures by a singleflight group), one retry of the original request, and
// session invalidation when the refresh token itself is rejected.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	store         tokenstore.Store
	refreshGroup  singleflight.Group
	onInvalidated func()
	log           zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func New(baseURL string, store tokenstore.Store, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// OnSessionInvalidated registers the callback fired after the refresh protocol
// has cleared the stored tokens. At most one callback is held; the session
// manager owns it.
func (c *Client) OnSessionInvalidated(fn func()) {
	c.onInvalidated = fn
}

// Do sends a JSON request. body may be nil; out may be nil when the response
// payload is not needed.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.Do] marshal body")
		}
	}
	return c.send(ctx, method, path, "application/json", payload, out)
}

// DoMultipart sends a pre-encoded multipart body. The payload is a byte slice
// rather than a reader so the 401 retry can re-send it.
func (c *Client) DoMultipart(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	return c.send(ctx, method, path, contentType, body, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	resp, hadAuth, err := c.roundTrip(ctx, method, path, contentType, body, true)
	if err != nil {
		return err
	}

	// The refresh protocol only applies to requests that carried a bearer
	// token: a 401 on an unauthenticated call (bad login credentials) is a
	// plain API error.
	if resp.status == http.StatusUnauthorized && hadAuth {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		resp, _, err = c.roundTrip(ctx, method, path, contentType, body, true)
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			// Already retried once. The refreshed token was rejected too.
			c.invalidate(ctx)
			return errors.Wrap(ErrSessionInvalidated, "[Client.send] retried request rejected")
		}
	}

	return decode(resp, out)
}

type response struct {
	status int
	body   []byte
}

func (c *Client) roundTrip(ctx context.Context, method, path, contentType string, body []byte, attachAuth bool) (response, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, false, errors.Wrap(err, "[Client.roundTrip] build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	hadAuth := false
	if attachAuth {
		accessToken, err := c.store.Get(ctx, tokenstore.KeyAccessToken)
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+accessToken)
			hadAuth = true
		case errors.Is(err, tokenstore.ErrKeyNotFound):
			// Unauthenticated request, no bearer to attach.
		default:
			return response{}, false, &StorageError{Err: err}
		}
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("requestID", requestID).Str("path", path).Err(err).Msg("request failed")
		return response{}, hadAuth, &NetworkError{Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return response{}, hadAuth, &NetworkError{Err: err}
	}
	c.log.Debug().Str("requestID", requestID).Str("path", path).Int("status", httpResp.StatusCode).Msg("request complete")
	return response{status: httpResp.StatusCode, body: data}, hadAuth, nil
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the stored refresh token for a new pair. Concurrent 401
// handlers share a single round-trip through the singleflight group, so one
// invalidation event triggers exactly one refresh call.
func (c *Client) refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		refreshToken, err := c.store.Get(ctx, tokenstore.KeyRefreshToken)
		if errors.Is(err, tokenstore.ErrKeyNotFound) {
			c.invalidate(ctx)
			return nil, errors.Wrap(ErrSessionInvalidated, "[Client.refresh] no refresh token")
		}
		if err != nil {
			return nil, &StorageError{Err: err}
		}

		payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
		if err != nil {
			return nil, errors.Wrap(err, "[Client.refresh] marshal")
		}
		resp, _, err := c.roundTrip(ctx, http.MethodPost, refreshTokenPath, "application/json", payload, false)
		if err != nil {
			// Transport failure: the refresh token was never judged, keep
			// the session.
			return nil, err
		}
		if resp.status != http.StatusOK {
			c.invalidate(ctx)
			return nil, errors.Wrap(ErrSessionInvalidated, "[Client.refresh] refresh rejected")
		}

		var pair tokenPair
		if err := json.Unmarshal(resp.body, &pair); err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
			c.invalidate(ctx)
			return nil, errors.Wrap(ErrSessionInvalidated, "[Client.refresh] malformed token response")
		}
		if err := c.store.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			return nil, &StorageError{Err: err}
		}
		c.log.Info().Msg("access token refreshed")
		return nil, nil
	})
	return err
}

func (c *Client) invalidate(ctx context.Context) {
	if err := c.store.Clear(ctx, tokenstore.SessionKeys...); err != nil {
		c.log.Error().Err(err).Msg("failed to clear tokens on invalidation")
	}
	if c.onInvalidated != nil {
		c.onInvalidated()
	}
}

func decode(resp response, out any) error {
	if resp.status < 200 || resp.status > 299 {
		return &APIError{StatusCode: resp.status, Message: serverMessage(resp.body)}
	}
	if out == nil || len(resp.body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(resp.body, out), "[Client] decode response")
}

func serverMessage(body []byte) string {
	var msg struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return ""
	}
	if msg.Message != "" {
		return msg.Message
	}
	return msg.Error
}
