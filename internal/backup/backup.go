// Package backup writes point-in-time copies of the chorely database to a
// local directory, optionally encrypted, and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukerupert/chorely/internal/clock"
)

const (
	namePrefix  = "chorely-"
	stampLayout = "20060102T150405Z"
	plainExt    = ".db"
	sealedExt   = ".db.enc"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// ErrExists is returned when a restore target or snapshot name is taken.
var ErrExists = errors.New("backup: file already exists")

type Config struct {
	Dir        string
	Keep       int
	Passphrase string
}

// Snapshot describes one backup file on disk.
type Snapshot struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Encrypted bool      `json:"encrypted"`
}

type Manager struct {
	db     *sql.DB
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Manager that snapshots db according to cfg.
func New(db *sql.DB, cfg Config, c clock.Clock, logger *slog.Logger) *Manager {
	return &Manager{db: db, cfg: cfg, clock: c, logger: logger}
}

// Create snapshots the open database with VACUUM INTO, seals it when a
// passphrase is configured and prunes old snapshots beyond Keep.
func (m *Manager) Create(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(m.cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	stamp := m.clock.Now().UTC().Format(stampLayout)
	name := namePrefix + stamp + plainExt
	if m.cfg.Passphrase != "" {
		name = namePrefix + stamp + sealedExt
	}
	final := filepath.Join(m.cfg.Dir, name)
	if _, err := os.Stat(final); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, final)
	}

	tmp := filepath.Join(m.cfg.Dir, "."+namePrefix+stamp+".tmp")
	// VACUUM INTO refuses an existing target
	os.Remove(tmp)
	defer os.Remove(tmp)

	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}

	if m.cfg.Passphrase == "" {
		if err := os.Rename(tmp, final); err != nil {
			return nil, fmt.Errorf("move snapshot: %w", err)
		}
	} else {
		plain, err := os.ReadFile(tmp)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		sealed, err := Seal(plain, m.cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("encrypt snapshot: %w", err)
		}
		if err := writeAtomic(final, sealed); err != nil {
			return nil, err
		}
	}

	snap, err := statSnapshot(final)
	if err != nil {
		return nil, err
	}
	m.logger.Info("backup created", "path", snap.Path, "size", snap.Size, "encrypted", snap.Encrypted)

	if m.cfg.Keep > 0 {
		removed, err := Prune(m.cfg.Dir, m.cfg.Keep)
		if err != nil {
			m.logger.Error("prune backups", "error", err)
		} else if len(removed) > 0 {
			m.logger.Info("pruned backups", "count", len(removed))
		}
	}
	return snap, nil
}

// List returns the snapshots in dir, newest first. A missing dir is empty.
func List(dir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var snaps []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, _, ok := parseName(e.Name()); !ok {
			continue
		}
		s, err := statSnapshot(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *s)
	}
	slices.SortFunc(snaps, func(a, b Snapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return snaps, nil
}

// Prune deletes all but the newest keep snapshots and returns the removed
// paths.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	snaps, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(snaps) <= keep {
		return nil, nil
	}

	var removed []string
	for _, s := range snaps[keep:] {
		if err := os.Remove(s.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", s.Name, err)
		}
		removed = append(removed, s.Path)
	}
	return removed, nil
}

// Restore writes the snapshot at src to dst after checking that it opens
// as a healthy SQLite database. The server must not be running against dst.
func Restore(ctx context.Context, src, dst, passphrase string, force bool) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if IsEncrypted(data) {
		if passphrase == "" {
			return errors.New("backup: snapshot is encrypted, passphrase required")
		}
		if data, err = Open(data, passphrase); err != nil {
			return err
		}
	}
	if !bytes.HasPrefix(data, sqliteHeader) {
		return fmt.Errorf("backup: %s is not a SQLite database", src)
	}

	if _, err := os.Stat(dst); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrExists, dst)
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write restore file: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(ctx, tmp); err != nil {
		return err
	}

	// a stale WAL from the replaced database would be replayed over the restore
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", dst+suffix, err)
		}
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup: integrity check failed: %s", result)
	}
	return nil
}

func parseName(name string) (time.Time, bool, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return time.Time{}, false, false
	}
	rest := strings.TrimPrefix(name, namePrefix)

	encrypted := false
	switch {
	case strings.HasSuffix(rest, sealedExt):
		rest = strings.TrimSuffix(rest, sealedExt)
		encrypted = true
	case strings.HasSuffix(rest, plainExt):
		rest = strings.TrimSuffix(rest, plainExt)
	default:
		return time.Time{}, false, false
	}

	t, err := time.Parse(stampLayout, rest)
	if err != nil {
		return time.Time{}, false, false
	}
	return t, encrypted, true
}

func statSnapshot(path string) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	created, encrypted, ok := parseName(info.Name())
	if !ok {
		return nil, fmt.Errorf("backup: unrecognized snapshot name %q", info.Name())
	}
	return &Snapshot{
		Name:      info.Name(),
		Path:      path,
		Size:      info.Size(),
		CreatedAt: created,
		Encrypted: encrypted,
	}, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
