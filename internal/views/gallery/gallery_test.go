package gallery

import (
	"strings"
	"testing"

	"github.com/tetherview/tetherview/internal/client"
)

func files(names ...string) []client.FileInfo {
	out := make([]client.FileInfo, len(names))
	for i, n := range names {
		out[i] = client.FileInfo{Filename: n, Size: 2048, Date: "2024-05-01T10:00:00"}
	}
	return out
}

func TestSetFilesKeepsSelection(t *testing.T) {
	m := New()
	m.SetFiles(files("c.jpg", "b.jpg", "a.jpg"))
	m.Down()
	if cur, _ := m.Current(); cur.Filename != "b.jpg" {
		t.Fatalf("selected = %s", cur.Filename)
	}

	m.SetFiles(files("d.jpg", "c.jpg", "b.jpg", "a.jpg"))
	if cur, _ := m.Current(); cur.Filename != "b.jpg" {
		t.Errorf("selection moved to %s", cur.Filename)
	}

	m.SetFiles(files("z.jpg"))
	if m.Selected != 0 {
		t.Errorf("selected = %d, want clamp to 0", m.Selected)
	}

	m.SetFiles(nil)
	if _, ok := m.Current(); ok {
		t.Error("empty list should have no selection")
	}
}

func TestUpDownWrap(t *testing.T) {
	m := New()
	m.SetFiles(files("a", "b", "c"))
	m.Up()
	if m.Selected != 2 {
		t.Errorf("Up from 0 = %d, want 2", m.Selected)
	}
	m.Down()
	if m.Selected != 0 {
		t.Errorf("Down from 2 = %d, want 0", m.Selected)
	}
}

func TestViewMarksNew(t *testing.T) {
	m := New()
	m.Width = 80
	m.Height = 10
	m.IsNew = func(name string) bool { return name == "fresh.jpg" }
	m.SetFiles(files("fresh.jpg", "old.jpg"))

	v := m.View()
	if !strings.Contains(v, "CAPTURES (2)") {
		t.Error("missing header")
	}
	if !strings.Contains(v, "*fresh.jpg") {
		t.Errorf("new marker missing:\n%s", v)
	}
	if !strings.Contains(v, "2 KB") {
		t.Error("missing size")
	}
}

func TestViewEmpty(t *testing.T) {
	if v := New().View(); !strings.Contains(v, "No captures") {
		t.Errorf("view = %q", v)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 5); got != "abcd…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
