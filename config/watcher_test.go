package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/speedctl/logging"
)

type reloads struct {
	mu   sync.Mutex
	cfgs []*Config
}

func (r *reloads) add(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs = append(r.cfgs, cfg)
}

func (r *reloads) all() []*Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Config{}, r.cfgs...)
}

func TestWatcher(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	path := filepath.Join(t.TempDir(), "speed.json")
	test.That(t, os.WriteFile(path, []byte(fakeBoardConfig), 0o600), test.ShouldBeNil)

	_, err := NewWatcher(path, 0, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	var got reloads
	w, err := NewWatcher(path, 20*time.Millisecond, got.add, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()

	// Unrelated files in the same directory are ignored.
	test.That(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte("{}"), 0o600), test.ShouldBeNil)

	updated := strings.Replace(fakeBoardConfig, `"log_level": "debug"`, `"log_level": "error"`, 1)
	test.That(t, os.WriteFile(path, []byte(updated), 0o600), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		cfgs := got.all()
		test.That(tb, cfgs, test.ShouldNotBeEmpty)
		test.That(tb, cfgs[len(cfgs)-1].LogLevel, test.ShouldEqual, logging.ERROR)
	})

	count := len(got.all())
	test.That(t, os.WriteFile(path, []byte(`{"board": `), 0o600), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, observed.FilterMessageSnippet("failed to reload config").Len(), test.ShouldBeGreaterThan, 0)
	})
	test.That(t, len(got.all()), test.ShouldEqual, count)
}

func TestWatcherClose(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "speed.json")
	test.That(t, os.WriteFile(path, []byte(fakeBoardConfig), 0o600), test.ShouldBeNil)

	var got reloads
	w, err := NewWatcher(path, 20*time.Millisecond, got.add, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Close(), test.ShouldBeNil)
	test.That(t, w.Close(), test.ShouldBeNil)

	test.That(t, os.WriteFile(path, []byte(fakeBoardConfig), 0o600), test.ShouldBeNil)
	time.Sleep(100 * time.Millisecond)
	test.That(t, got.all(), test.ShouldBeEmpty)
}

func TestWatcherMissingDirectory(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewWatcher(filepath.Join(t.TempDir(), "gone", "speed.json"), 0, func(*Config) {}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to watch")
}
