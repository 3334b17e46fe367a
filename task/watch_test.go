package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReportsStoreWrites(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, store.Path(), nil, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
	}()

	// The watcher starts asynchronously, so keep writing until one lands.
	require.Eventually(t, func() bool {
		_, err := store.Create(context.Background(), Input{Title: "watched"})
		require.NoError(t, err)
		select {
		case <-changes:
			return true
		case <-time.After(300 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	called := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func() {
			select {
			case called <- struct{}{}:
			default:
			}
		})
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("[]"), 0o600))
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, <-done)
	assert.Empty(t, called)
}
