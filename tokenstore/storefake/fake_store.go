package storefake

import (
	"context"
	"sync"

	"github.com/matchday-app/matchday-go/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store for tests. WriteHook, when set, runs before
// every mutating call and can inject a failure; op is "set", "setTokens" or
// "clear", key is the first affected key.
type FakeStore struct {
	values    map[string]string
	lock      sync.RWMutex
	WriteHook func(op, key string) error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{values: make(map[string]string)}
}

func (fs *FakeStore) Get(ctx context.Context, key string) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	value, ok := fs.values[key]
	if !ok {
		return "", tokenstore.ErrKeyNotFound
	}
	return value, nil
}

func (fs *FakeStore) Set(ctx context.Context, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.writeError("set", key); err != nil {
		return err
	}
	fs.values[key] = value
	return nil
}

func (fs *FakeStore) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.writeError("setTokens", tokenstore.KeyAccessToken); err != nil {
		return err
	}
	fs.values[tokenstore.KeyAccessToken] = accessToken
	fs.values[tokenstore.KeyRefreshToken] = refreshToken
	return nil
}

func (fs *FakeStore) Clear(ctx context.Context, keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	first := ""
	if len(keys) > 0 {
		first = keys[0]
	}
	if err := fs.writeError("clear", first); err != nil {
		return err
	}
	for _, key := range keys {
		delete(fs.values, key)
	}
	return nil
}

func (fs *FakeStore) writeError(op, key string) error {
	if fs.WriteHook == nil {
		return nil
	}
	return fs.WriteHook(op, key)
}
