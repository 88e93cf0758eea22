// Package preview renders the live view panel: a coarse text rendering of
// the latest frame plus its stats.
package preview

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetherview/tetherview/internal/theme"
	"golang.org/x/image/draw"
)

// ramp maps luminance to characters, dark to bright.
const ramp = " .:-=+*#%@"

// FrameInfo describes a displayed frame without holding its buffer.
type FrameInfo struct {
	Seq         uint64
	Size        int
	ContentType string
	FetchedAt   time.Time
}

// Model is the preview panel state.
type Model struct {
	Active bool
	Info   FrameInfo
	Art    string
	Width  int
	Height int

	spring  harmonica.Spring
	fps     float64
	fpsVel  float64
	lastAt  time.Time
	lastSeq uint64
}

func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(10), 4.0, 1.0)}
}

// Observe records a newly displayed frame.
func (m *Model) Observe(info FrameInfo, art string) {
	if m.Active && !m.lastAt.IsZero() && info.Seq > m.lastSeq {
		dt := info.FetchedAt.Sub(m.lastAt).Seconds()
		if dt > 0 {
			m.fps, m.fpsVel = m.spring.Update(m.fps, m.fpsVel, 1/dt)
		}
	}
	m.Active = true
	m.Info = info
	m.Art = art
	m.lastAt = info.FetchedAt
	m.lastSeq = info.Seq
}

// Clear resets the panel after the stream stops.
func (m *Model) Clear() {
	m.Active = false
	m.Info = FrameInfo{}
	m.Art = ""
	m.fps, m.fpsVel = 0, 0
	m.lastAt = time.Time{}
}

// FPS returns the smoothed frame rate.
func (m Model) FPS() float64 {
	return m.fps
}

// View renders the panel as of now.
func (m Model) View(now time.Time) string {
	title := theme.StyleHeader.Render("LIVE VIEW")
	if !m.Active {
		return lipgloss.JoinVertical(lipgloss.Left, title, theme.StyleDimmed.Render("  no preview (press c to connect)"))
	}
	age := now.Sub(m.Info.FetchedAt).Round(10 * time.Millisecond)
	stats := theme.StyleDimmed.Render(fmt.Sprintf("#%d  %s  %.1f fps  age %s",
		m.Info.Seq, sizeLabel(m.Info.Size), m.fps, age))
	return lipgloss.JoinVertical(lipgloss.Left, title, m.Art, stats)
}

func sizeLabel(n int) string {
	if n >= 1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}

// Render decodes an image and draws it as text cols wide and rows high.
// Undecodable payloads render as "".
func Render(data []byte, cols, rows int) string {
	if cols <= 0 || rows <= 0 || len(data) == 0 {
		return ""
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	dst := image.NewGray(image.Rect(0, 0, cols, rows))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var b strings.Builder
	b.Grow((cols + 1) * rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			g := dst.GrayAt(x, y).Y
			b.WriteByte(ramp[int(g)*(len(ramp)-1)/255])
		}
		if y < rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
