package backup

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/userlock"
)

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = data
	return nil
}

func (s *memStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBackupAndRestore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := newMemStore()
	m := NewManager(root, "backups", store, userlock.NewLocal(), zerolog.Nop())
	m.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

	writeFile(t, filepath.Join(root, "u1", "transactions.jsonl"), "line1\n")
	writeFile(t, filepath.Join(root, "u1", "index", "index.json"), `{"version":1}`)
	writeFile(t, filepath.Join(root, "u1", "index", "index.json.tmp"), "partial")

	snapshot, files, err := m.Backup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "20240501T093000.000000000Z", snapshot)
	assert.Equal(t, 2, files)
	assert.Contains(t, store.objects, "backups/u1/20240501T093000.000000000Z/index/index.json")

	// Lose the data, then restore the latest snapshot.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "u1")))

	restored, err := m.Restore(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	data, err := os.ReadFile(filepath.Join(root, "u1", "index", "index.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))
}

func TestSnapshots_Ordered(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	m := NewManager(root, "", newMemStore(), userlock.NewLocal(), zerolog.Nop())
	writeFile(t, filepath.Join(root, "u1", "transactions.jsonl"), "x\n")

	for _, ts := range []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	} {
		ts := ts
		m.now = func() time.Time { return ts }
		_, _, err := m.Backup(ctx, "u1")
		require.NoError(t, err)
	}

	snaps, err := m.Snapshots(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101T000000.000000000Z", "20240201T000000.000000000Z"}, snaps)
}

func TestBackup_SameSecondGetsOwnSnapshot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := newMemStore()
	m := NewManager(root, "", store, userlock.NewLocal(), zerolog.Nop())
	writeFile(t, filepath.Join(root, "u1", "transactions.jsonl"), "x\n")
	writeFile(t, filepath.Join(root, "u1", "index", "index.json"), `{"version":1}`)

	m.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 100_000_000, time.UTC) }
	first, files, err := m.Backup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, files)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "u1", "index")))
	m.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 200_000_000, time.UTC) }
	second, files, err := m.Backup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.NotEqual(t, first, second)

	snaps, err := m.Snapshots(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, snaps)

	// The latest snapshot holds only what the second backup saw.
	restored, err := m.Restore(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.NotContains(t, store.objects, "u1/"+second+"/index/index.json")
}

func TestBackupErrors(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir(), "", newMemStore(), userlock.NewLocal(), zerolog.Nop())

	_, _, err := m.Backup(ctx, "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = m.Backup(ctx, "../etc")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = m.Restore(ctx, "ghost", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = m.Restore(ctx, "u1", "../x")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRelativePath(t *testing.T) {
	for _, bad := range []string{"", "..", "../x", "/abs"} {
		_, err := relativePath(bad)
		assert.Error(t, err, bad)
	}
	got, err := relativePath("index/index.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("index", "index.json"), got)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
		wantErr            bool
	}{
		{"gs://my-bucket/backups/", "my-bucket", "backups", false},
		{"my-bucket", "my-bucket", "", false},
		{"gs://", "", "", true},
	}
	for _, tt := range tests {
		bucket, prefix, err := ParseLocation(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.prefix, prefix)
	}
}
