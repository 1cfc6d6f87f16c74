// Package watcher polls the config file and hands reloaded configuration to a
// callback when its contents change.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/guess2/dailytrivia/internal/config"
	log "github.com/sirupsen/logrus"
)

// defaultPollInterval controls how often the config file is hashed.
const defaultPollInterval = 2 * time.Second

// ReloadFunc receives a validated configuration after the file changed.
type ReloadFunc func(config.Config)

// ConfigWatcher re-reads the config file whenever its hash changes.
type ConfigWatcher struct {
	path         string
	pollInterval time.Duration
	reload       ReloadFunc

	mu   sync.Mutex
	hash string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a ConfigWatcher for path. A non-positive interval uses the default.
func New(path string, interval time.Duration, reload ReloadFunc) *ConfigWatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ConfigWatcher{
		path:         strings.TrimSpace(path),
		pollInterval: interval,
		reload:       reload,
	}
}

// Start records the current file hash and polls until ctx is done or Stop is
// called. The first snapshot does not trigger a reload.
func (w *ConfigWatcher) Start(ctx context.Context) {
	if w == nil || w.path == "" {
		return
	}
	if data, errRead := os.ReadFile(w.path); errRead == nil {
		w.mu.Lock()
		w.hash = hashBytes(data)
		w.mu.Unlock()
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	log.Infof("config watcher started (path=%s, poll_interval=%s)", w.path, w.pollInterval)
}

// Stop cancels polling and waits for the loop to exit.
func (w *ConfigWatcher) Stop() {
	if w == nil || w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}

func (w *ConfigWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll reloads the config file when its contents changed since the last
// successful load and reports whether the callback ran. Invalid files are logged
// and retried on the next poll.
func (w *ConfigWatcher) Poll() bool {
	if w == nil || w.path == "" {
		return false
	}
	data, errRead := os.ReadFile(w.path)
	if errRead != nil || len(data) == 0 {
		return false
	}
	hash := hashBytes(data)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hash == hash {
		return false
	}

	cfg, errLoad := config.Load(w.path)
	if errLoad != nil {
		log.WithError(errLoad).Warn("config watcher: reload failed")
		return false
	}
	w.hash = hash
	log.WithField("path", w.path).Info("config watcher: config changed")
	if w.reload != nil {
		w.reload(cfg)
	}
	return true
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
