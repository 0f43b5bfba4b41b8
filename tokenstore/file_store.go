package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore persists values as a single JSON file. Every mutation rewrites the
// whole file via a temp-file rename, so a pair written with SetTokens can
// never be observed half-applied.
type FileStore struct {
	path   string
	lock   sync.Mutex
	values map[string]string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Get(ctx context.Context, key string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.load(); err != nil {
		return "", errors.Wrap(err, "[FileStore.Get] load")
	}
	value, ok := fs.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (fs *FileStore) Set(ctx context.Context, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.load(); err != nil {
		return errors.Wrap(err, "[FileStore.Set] load")
	}
	fs.values[key] = value
	return errors.Wrap(fs.persist(), "[FileStore.Set] persist")
}

func (fs *FileStore) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.load(); err != nil {
		return errors.Wrap(err, "[FileStore.SetTokens] load")
	}
	fs.values[KeyAccessToken] = accessToken
	fs.values[KeyRefreshToken] = refreshToken
	return errors.Wrap(fs.persist(), "[FileStore.SetTokens] persist")
}

func (fs *FileStore) Clear(ctx context.Context, keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.load(); err != nil {
		return errors.Wrap(err, "[FileStore.Clear] load")
	}
	for _, key := range keys {
		delete(fs.values, key)
	}
	return errors.Wrap(fs.persist(), "[FileStore.Clear] persist")
}

func (fs *FileStore) load() error {
	if fs.values != nil {
		return nil
	}
	fs.values = make(map[string]string)
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &fs.values)
}

func (fs *FileStore) persist() error {
	data, err := json.MarshalIndent(fs.values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}
