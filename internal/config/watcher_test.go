package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mtgctx/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
upstreams:
  user_agent: mtgctx-test/1.0
`

const watcherUpdatedYAML = `
server:
  log_level: debug
upstreams:
  user_agent: mtgctx-test/1.0
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newWatcher(t *testing.T, content string, onChange func(old, new *config.Config)) (*config.Watcher, string) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, content)

	w, err := config.NewWatcher(cfgPath, onChange, config.WithInterval(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return w, cfgPath
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := newWatcher(t, watcherValidYAML, nil)

	cfg := w.Current()
	require.NotNil(t, cfg)
	assert.Equal(t, config.LogInfo, cfg.Server.LogLevel)
	assert.Equal(t, config.DefaultMinInterval, cfg.Upstreams.MinInterval)
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotOld, gotNew *config.Config
	called := make(chan struct{}, 1)

	w, cfgPath := newWatcher(t, watcherValidYAML, func(old, new *config.Config) {
		mu.Lock()
		gotOld, gotNew = old, new
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherUpdatedYAML)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, gotOld)
	require.NotNil(t, gotNew)
	assert.Equal(t, config.LogInfo, gotOld.Server.LogLevel)
	assert.Equal(t, config.LogDebug, gotNew.Server.LogLevel)
	assert.Equal(t, config.LogDebug, w.Current().Server.LogLevel)

	d := config.Diff(gotOld, gotNew)
	assert.True(t, d.LogLevelChanged)
	assert.Empty(t, d.RestartRequired)
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	w, cfgPath := newWatcher(t, watcherValidYAML, func(_, _ *config.Config) { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherInvalidYAML)
	time.Sleep(300 * time.Millisecond)

	assert.Zero(t, calls.Load(), "callback should not fire for an invalid config")
	assert.Equal(t, config.LogInfo, w.Current().Server.LogLevel)
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	_, err := config.NewWatcher("/nonexistent/path.yaml", nil)
	assert.Error(t, err)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := newWatcher(t, watcherValidYAML, nil)
	assert.NotPanics(t, func() {
		w.Stop()
		w.Stop()
	})
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	_, cfgPath := newWatcher(t, watcherValidYAML, func(_, _ *config.Config) { calls.Add(1) })

	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(cfgPath, now, now))
	time.Sleep(300 * time.Millisecond)

	assert.Zero(t, calls.Load(), "callback should not fire for touch-only")
}

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config) { calls.Add(1) }, config.WithInterval(time.Hour))
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	applied, err := w.Reload()
	require.NoError(t, err)
	assert.False(t, applied, "unchanged content is not reapplied")

	writeFile(t, cfgPath, watcherUpdatedYAML)
	applied, err = w.Reload()
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, config.LogDebug, w.Current().Server.LogLevel)

	writeFile(t, cfgPath, watcherInvalidYAML)
	applied, err = w.Reload()
	assert.Error(t, err)
	assert.False(t, applied)
	assert.Equal(t, config.LogDebug, w.Current().Server.LogLevel)
}
