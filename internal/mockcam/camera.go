// Package mockcam is a development stand-in for the camera control
// service. It speaks the same HTTP contract and renders synthetic frames.
package mockcam

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	frameWidth  = 640
	frameHeight = 426
)

var (
	ErrNotConnected = errors.New("camera not connected")
	ErrBusy         = errors.New("camera busy")
	ErrInvalidPath  = errors.New("invalid file path")
)

// Options configures a mock camera.
type Options struct {
	Model      string
	CaptureDir string
	// FailRate is the probability in [0,1] that a preview frame fails.
	FailRate float64
	// DrainEvery is how long one percent of battery lasts while connected.
	DrainEvery time.Duration
	Seed       int64
}

// Camera is the simulated device.
type Camera struct {
	opts Options
	now  func() time.Time

	mu          sync.Mutex
	rng         *rand.Rand
	connected   bool
	connectedAt time.Time
	battery     int
	frames      uint64
	settings    Settings
}

// Settings is the mock's adjustable state.
type Settings struct {
	ISO          int    `json:"iso"`
	Aperture     string `json:"aperture"`
	ShutterSpeed string `json:"shutter_speed"`
	WhiteBalance string `json:"white_balance"`
	ExposureMode string `json:"exposure_mode"`
	FocusMode    string `json:"focus_mode"`
}

var available = map[string][]string{
	"iso":              {"100", "200", "400", "800", "1600", "3200"},
	"aperture":         {"2.8", "4", "5.6", "8", "11"},
	"shutterspeed":     {"1/1000", "1/250", "1/60", "1/15"},
	"whitebalance":     {"Auto", "Daylight", "Cloudy", "Tungsten"},
	"autoexposuremode": {"Manual", "AV", "TV", "P"},
	"autofocusmode":    {"One Shot", "AI Servo"},
}

func NewCamera(opts Options) (*Camera, error) {
	if opts.Model == "" {
		opts.Model = "Mock EOS"
	}
	if opts.DrainEvery <= 0 {
		opts.DrainEvery = time.Minute
	}
	if err := os.MkdirAll(opts.CaptureDir, 0o755); err != nil {
		return nil, fmt.Errorf("capture dir: %w", err)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Camera{
		opts:    opts,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(seed)),
		battery: 100,
		settings: Settings{
			ISO: 400, Aperture: "5.6", ShutterSpeed: "1/250",
			WhiteBalance: "Auto", ExposureMode: "Manual", FocusMode: "One Shot",
		},
	}, nil
}

// Status is the GET /status body.
type Status struct {
	Connected        bool   `json:"connected"`
	Model            string `json:"model,omitempty"`
	Battery          *int   `json:"battery,omitempty"`
	StorageAvailable *int   `json:"storage_available,omitempty"`
}

func (c *Camera) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return Status{}
	}
	b := c.batteryLocked()
	shots := c.storageLocked()
	return Status{Connected: true, Model: c.opts.Model, Battery: &b, StorageAvailable: &shots}
}

// batteryLocked drains one percent per DrainEvery of connected time.
func (c *Camera) batteryLocked() int {
	drained := int(c.now().Sub(c.connectedAt) / c.opts.DrainEvery)
	b := c.battery - drained
	if b < 0 {
		b = 0
	}
	return b
}

func (c *Camera) storageLocked() int {
	entries, _ := filepath.Glob(filepath.Join(c.opts.CaptureDir, "*.jpg"))
	left := 999 - len(entries)
	if left < 0 {
		left = 0
	}
	return left
}

func (c *Camera) Connect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		c.connected = true
		c.connectedAt = c.now()
	}
	return true
}

func (c *Camera) Disconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		c.battery = c.batteryLocked()
		c.connected = false
	}
	return true
}

// Drop simulates the device going away without a disconnect request.
func (c *Camera) Drop() {
	c.Disconnect()
}

func (c *Camera) Settings() (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return Settings{}, ErrNotConnected
	}
	return c.settings, nil
}

func (c *Camera) Available() (map[string][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	return available, nil
}

func (c *Camera) AutoFocus() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return false, ErrNotConnected
	}
	return true, nil
}

// Frame renders the next preview frame. It fails with ErrBusy at FailRate.
func (c *Camera) Frame() ([]byte, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if c.opts.FailRate > 0 && c.rng.Float64() < c.opts.FailRate {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.frames++
	n := c.frames
	at := c.now()
	c.mu.Unlock()

	return render(n, at)
}

// Capture renders a frame and stores it under filename, or a generated
// name when filename is empty.
func (c *Camera) Capture(filename string) (string, error) {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return "", ErrNotConnected
	}

	if filename == "" {
		filename = fmt.Sprintf("capture_%d.jpg", c.now().Unix())
	}
	path, err := c.capturePath(filename)
	if err != nil {
		return "", err
	}
	data, err := render(0, c.now())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	return filepath.Base(path), nil
}

// capturePath resolves name inside the capture directory.
func (c *Camera) capturePath(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." {
		return "", ErrInvalidPath
	}
	return filepath.Join(c.opts.CaptureDir, base), nil
}

// render draws a moving gradient with the frame number and time on it.
func render(n uint64, at time.Time) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	shift := int(n % frameWidth)
	for y := 0; y < frameHeight; y++ {
		for x := 0; x < frameWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + shift) * 255 / frameWidth),
				G: uint8(y * 255 / frameHeight),
				B: 96,
				A: 255,
			})
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 20),
	}
	d.DrawString(at.Format("2006-01-02 15:04:05.000"))
	if n > 0 {
		d.Dot = fixed.P(10, 36)
		d.DrawString(fmt.Sprintf("frame %d", n))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
