package tokenstore

import (
	"context"
	"errors"
)

// Persisted keys. All values are strings; the user object is stored as a JSON
// string under KeyUser.
const (
	KeyAccessToken    = "accessToken"
	KeyRefreshToken   = "refreshToken"
	KeyUser           = "user"
	KeyOnboardingSeen = "onboardingSeen"
)

// SessionKeys are the keys owned by the session manager: cleared together on
// logout, account deletion, and refresh failure.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

var ErrKeyNotFound = errors.New("key not found")

// Store is the durable key/value holder for the token pair and the cached
// user. The access and refresh tokens must only ever be written through
// SetTokens so the pair stays both-present or both-absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetTokens(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context, keys ...string) error
}
