// Package gallery keeps the local view of the device's capture store.
// Its refresh triggers are injected; it never looks up other components.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/charmbracelet/log"
	"github.com/tetherview/tetherview/internal/client"
)

// Store is the remote capture store.
type Store interface {
	ListCaptures(ctx context.Context) ([]client.FileInfo, error)
	DeleteCapture(ctx context.Context, name string) (*client.Result, error)
	ClearCaptures(ctx context.Context) (*client.ClearResult, error)
	DownloadCapture(ctx context.Context, name string, w io.Writer) (int64, error)
	DownloadAll(ctx context.Context, w io.Writer) (int64, error)
}

// Gallery caches the capture listing.
type Gallery struct {
	store    Store
	logger   *log.Logger
	fresh    *ttlworker.Cache[string, bool]
	onChange func()

	mu      sync.RWMutex
	files   []client.FileInfo
	updated time.Time
}

// New returns a gallery. Names passed to MarkNew stay new for newTTL.
func New(store Store, newTTL time.Duration, logger *log.Logger) *Gallery {
	return &Gallery{
		store:  store,
		logger: logger,
		fresh:  ttlworker.NewCache[string, bool](newTTL),
	}
}

// OnChange registers fn to be called after a successful Delete or Clear.
func (g *Gallery) OnChange(fn func()) {
	g.onChange = fn
}

// Refresh reloads the listing, newest first. The previous listing is kept
// on failure.
func (g *Gallery) Refresh(ctx context.Context) error {
	files, err := g.store.ListCaptures(ctx)
	if err != nil {
		g.logger.Warn("list captures failed", "err", err)
		return fmt.Errorf("list captures: %w", err)
	}
	sortNewestFirst(files)

	g.mu.Lock()
	g.files = files
	g.updated = time.Now()
	g.mu.Unlock()
	return nil
}

// Files returns a copy of the current listing.
func (g *Gallery) Files() []client.FileInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]client.FileInfo, len(g.files))
	copy(out, g.files)
	return out
}

// Updated returns when the listing was last loaded.
func (g *Gallery) Updated() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.updated
}

// Reset drops the listing, e.g. when the device goes away.
func (g *Gallery) Reset() {
	g.mu.Lock()
	g.files = nil
	g.updated = time.Time{}
	g.mu.Unlock()
}

// MarkNew flags name as freshly captured.
func (g *Gallery) MarkNew(name string) {
	if name != "" {
		g.fresh.Set(name, true)
	}
}

// IsNew reports whether name was marked recently.
func (g *Gallery) IsNew(name string) bool {
	return g.fresh.Get(name)
}

// Delete removes one capture from the device.
func (g *Gallery) Delete(ctx context.Context, name string) error {
	res, err := g.store.DeleteCapture(ctx, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if !res.Success {
		return fmt.Errorf("delete %s: %s", name, orDefault(res.Message, "refused"))
	}
	g.fresh.Delete(name)
	g.logger.Info("deleted capture", "file", name)
	g.changed()
	return nil
}

// Clear removes every capture and returns how many were deleted.
func (g *Gallery) Clear(ctx context.Context) (int, error) {
	res, err := g.store.ClearCaptures(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear captures: %w", err)
	}
	if !res.Success {
		return 0, fmt.Errorf("clear captures: %s", orDefault(res.Message, "refused"))
	}
	g.logger.Info("cleared captures", "count", res.Data.Count)
	g.changed()
	return res.Data.Count, nil
}

// Download saves a capture into dir and returns the written path. The file
// only appears under its final name once fully written.
func (g *Gallery) Download(ctx context.Context, name, dir string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", errors.New("download: empty file name")
	}
	dst, n, err := saveAtomic(dir, base, func(w io.Writer) (int64, error) {
		return g.store.DownloadCapture(ctx, name, w)
	})
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	g.logger.Info("downloaded capture", "file", name, "bytes", n, "path", dst)
	return dst, nil
}

// DownloadAll saves a zip of every capture into dir as
// captures_<timestamp>.zip and returns its path.
func (g *Gallery) DownloadAll(ctx context.Context, dir string) (string, error) {
	base := "captures_" + time.Now().Format("20060102_150405") + ".zip"
	dst, n, err := saveAtomic(dir, base, func(w io.Writer) (int64, error) {
		return g.store.DownloadAll(ctx, w)
	})
	if err != nil {
		return "", fmt.Errorf("download all: %w", err)
	}
	g.logger.Info("downloaded archive", "bytes", n, "path", dst)
	return dst, nil
}

// saveAtomic writes fetch's output to a temp file in dir and renames it to
// base only when the whole body arrived.
func saveAtomic(dir, base string, fetch func(io.Writer) (int64, error)) (string, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(dir, ".tetherview-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := fetch(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", n, err
	}

	dst := filepath.Join(dir, base)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", n, err
	}
	return dst, n, nil
}

func (g *Gallery) changed() {
	if g.onChange != nil {
		g.onChange()
	}
}

func sortNewestFirst(files []client.FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		ti, _ := files[i].Time()
		tj, _ := files[j].Time()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return files[i].Filename > files[j].Filename
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FormatSize renders a byte count with binary units, e.g. "1.5 MB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}
	s := fmt.Sprintf("%.2f", v)
	// trim trailing zeros: 1.50 -> 1.5, 2.00 -> 2
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s + " " + units[i]
}
