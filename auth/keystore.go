package auth

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"exoserve/logging"
)

// Keystore is the flat-file API-key allow-list: one key per line. The
// file is the source of truth; edits on disk (key revocation) are
// picked up by the watcher.
type Keystore struct {
	path    string
	mu      sync.RWMutex
	keys    map[string]struct{}
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open loads the key file. A missing file is not an error: the
// allow-list starts empty and the caller decides whether to bootstrap
// an initial key.
func Open(path string) (*Keystore, error) {
	if path == "" {
		return nil, errors.New("keys file path is required")
	}

	store := &Keystore{
		path: path,
		keys: make(map[string]struct{}),
		done: make(chan struct{}),
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Reload replaces the in-memory allow-list with the file contents.
func (k *Keystore) Reload() error {
	file, err := os.Open(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			k.mu.Lock()
			k.keys = make(map[string]struct{})
			k.mu.Unlock()
			return nil
		}
		return err
	}
	defer file.Close()

	keys := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			keys[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	k.mu.Lock()
	k.keys = keys
	k.mu.Unlock()
	return nil
}

// Valid reports whether the key is on the allow-list.
func (k *Keystore) Valid(key string) bool {
	if key == "" {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[key]
	return ok
}

func (k *Keystore) Count() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// Generate mints a new key, appends it to the file and adds it to the
// allow-list.
func (k *Keystore) Generate() (string, error) {
	key, err := NewKey()
	if err != nil {
		return "", err
	}

	file, err := os.OpenFile(k.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintln(file, key); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	k.mu.Lock()
	k.keys[key] = struct{}{}
	k.mu.Unlock()
	return key, nil
}

// Watch reloads the allow-list whenever the key file changes on disk.
func (k *Keystore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(k.path); err != nil {
		watcher.Close()
		return err
	}
	k.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					if err := k.Reload(); err != nil {
						logging.L().Errorf("reload API keys: %v", err)
						continue
					}
					logging.L().Infof("API keys reloaded, %d active", k.Count())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.L().Errorf("key file watcher: %v", err)
			case <-k.done:
				return
			}
		}
	}()
	return nil
}

func (k *Keystore) Close() error {
	close(k.done)
	if k.watcher != nil {
		return k.watcher.Close()
	}
	return nil
}

// NewKey returns a URL-safe random token, 32 bytes of entropy.
func NewKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
