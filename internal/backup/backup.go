// Package backup copies a user's data directory (ledger and vector index)
// to object storage and back.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/userlock"
)

// ErrNotFound is returned by an ObjectStore for a missing object.
var ErrNotFound = errors.New("object not found")

// snapshotLayout names snapshots so that they sort chronologically. The
// fixed-width nanoseconds keep two backups in the same second apart.
const snapshotLayout = "20060102T150405.000000000Z"

// ObjectStore is the minimal object storage the backups need.
type ObjectStore interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Manager backs up and restores user directories under root. Objects are
// named <prefix>/<user>/<snapshot>/<relative path>.
type Manager struct {
	root   string
	prefix string
	store  ObjectStore
	locker userlock.Locker
	log    zerolog.Logger
	now    func() time.Time
}

// NewManager creates a backup manager. The user lock is held for the whole
// copy so a snapshot never sees a half-written index.
func NewManager(root, prefix string, store ObjectStore, locker userlock.Locker, log zerolog.Logger) *Manager {
	return &Manager{
		root:   root,
		prefix: strings.Trim(prefix, "/"),
		store:  store,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

func (m *Manager) userPrefix(userID string) string {
	if m.prefix == "" {
		return userID + "/"
	}
	return m.prefix + "/" + userID + "/"
}

// Backup uploads every file of the user's directory as a new snapshot and
// returns the snapshot name.
func (m *Manager) Backup(ctx context.Context, userID string) (string, int, error) {
	const op = "backup.Backup"
	if err := domain.CheckUserID(op, userID); err != nil {
		return "", 0, err
	}

	unlock, err := m.locker.Lock(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	defer unlock()

	dir := filepath.Join(m.root, userID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return "", 0, apperr.E(apperr.KindNotFound, op, "user has no data", err)
	}

	snapshot := m.now().UTC().Format(snapshotLayout)
	base := m.userPrefix(userID) + snapshot + "/"

	files := 0
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := m.store.Put(ctx, base+filepath.ToSlash(rel), f); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return "", files, apperr.E(apperr.KindInternal, op, "backup failed", err)
	}

	m.log.Info().
		Str("user_id", userID).
		Str("snapshot", snapshot).
		Int("files", files).
		Msg("Backup completed")
	return snapshot, files, nil
}

// Snapshots lists a user's snapshot names, oldest first.
func (m *Manager) Snapshots(ctx context.Context, userID string) ([]string, error) {
	if err := domain.CheckUserID("backup.Snapshots", userID); err != nil {
		return nil, err
	}
	prefix := m.userPrefix(userID)
	names, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, name := range names {
		snap, _, ok := strings.Cut(strings.TrimPrefix(name, prefix), "/")
		if !ok {
			continue
		}
		if len(snapshots) == 0 || snapshots[len(snapshots)-1] != snap {
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots, nil
}

// Restore replaces the user's files with those of snapshot. An empty
// snapshot means the most recent one.
func (m *Manager) Restore(ctx context.Context, userID, snapshot string) (int, error) {
	const op = "backup.Restore"
	if err := domain.CheckUserID(op, userID); err != nil {
		return 0, err
	}
	if strings.ContainsAny(snapshot, `/\`) || strings.Contains(snapshot, "..") {
		return 0, apperr.E(apperr.KindValidation, op, "invalid snapshot name", nil)
	}
	if snapshot == "" {
		snapshots, err := m.Snapshots(ctx, userID)
		if err != nil {
			return 0, err
		}
		if len(snapshots) == 0 {
			return 0, apperr.E(apperr.KindNotFound, op, "no backups for user", nil)
		}
		snapshot = snapshots[len(snapshots)-1]
	}

	base := m.userPrefix(userID) + snapshot + "/"
	names, err := m.store.List(ctx, base)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, apperr.E(apperr.KindNotFound, op, "snapshot not found", nil)
	}

	unlock, err := m.locker.Lock(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	dir := filepath.Join(m.root, userID)
	for i, name := range names {
		rel, err := relativePath(strings.TrimPrefix(name, base))
		if err != nil {
			return i, apperr.E(apperr.KindValidation, op, "snapshot contains an unsafe path", err)
		}
		if err := m.restoreFile(ctx, name, filepath.Join(dir, rel)); err != nil {
			return i, apperr.E(apperr.KindInternal, op, "restore failed", err)
		}
	}

	m.log.Info().
		Str("user_id", userID).
		Str("snapshot", snapshot).
		Int("files", len(names)).
		Msg("Restore completed")
	return len(names), nil
}

func (m *Manager) restoreFile(ctx context.Context, name, dest string) error {
	rc, err := m.store.Get(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// relativePath turns an object key suffix into a local relative path,
// rejecting anything that would escape the user directory.
func relativePath(key string) (string, error) {
	clean := path.Clean(key)
	if key == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("unsafe object path %q", key)
	}
	return filepath.FromSlash(clean), nil
}
