package mockcam

import (
	"archive/zip"
	"bytes"
	"context"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts Options, token string) (*Camera, *client.HTTPClient) {
	t.Helper()
	if opts.CaptureDir == "" {
		opts.CaptureDir = t.TempDir()
	}
	opts.Seed = 1
	cam, err := NewCamera(opts)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewServer(cam, token, logging.Discard()).Router())
	t.Cleanup(srv.Close)
	return cam, client.NewHTTPClient(srv.URL, token, 5*time.Second)
}

func TestSessionLifecycle(t *testing.T) {
	_, c := newTestServer(t, Options{}, "")
	ctx := context.Background()

	st, err := c.Status(ctx)
	if err != nil || st.Connected {
		t.Fatalf("initial status = %+v, %v", st, err)
	}

	if _, err := c.LiveFrame(ctx, &bytes.Buffer{}); client.ErrorDetail(err) != "Camera not connected" {
		t.Errorf("frame while disconnected: err = %v", err)
	}

	res, err := c.Connect(ctx)
	if err != nil || !res.Success {
		t.Fatalf("Connect = %+v, %v", res, err)
	}
	st, err = c.Status(ctx)
	if err != nil || !st.Connected || st.Battery == nil || *st.Battery != 100 {
		t.Fatalf("status after connect = %+v, %v", st, err)
	}

	res, err = c.Disconnect(ctx)
	if err != nil || !res.Success {
		t.Fatalf("Disconnect = %+v, %v", res, err)
	}
	if st, _ := c.Status(ctx); st.Connected {
		t.Error("still connected after disconnect")
	}
}

func TestLiveFrameIsJPEG(t *testing.T) {
	cam, c := newTestServer(t, Options{}, "")
	cam.Connect()

	var buf bytes.Buffer
	ct, err := c.LiveFrame(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != frameWidth || b.Dy() != frameHeight {
		t.Errorf("bounds = %v", b)
	}
}

func TestFailRateInjectsErrors(t *testing.T) {
	cam, c := newTestServer(t, Options{FailRate: 1}, "")
	cam.Connect()

	_, err := c.LiveFrame(context.Background(), &bytes.Buffer{})
	if err == nil || client.ErrorDetail(err) != "Camera busy" {
		t.Fatalf("err = %v, want busy", err)
	}
}

func TestCaptureAndFiles(t *testing.T) {
	dir := t.TempDir()
	cam, c := newTestServer(t, Options{CaptureDir: dir}, "")
	ctx := context.Background()

	if _, err := c.Capture(ctx, "x.jpg"); client.ErrorDetail(err) != "Camera not connected" {
		t.Errorf("capture while disconnected: err = %v", err)
	}

	cam.Connect()
	res, err := c.Capture(ctx, "first.jpg")
	if err != nil || !res.Success || res.Filename != "first.jpg" {
		t.Fatalf("Capture = %+v, %v", res, err)
	}
	if _, err := c.Capture(ctx, "../escape.jpg"); client.ErrorDetail(err) != "Invalid file path" {
		t.Errorf("path escape: err = %v", err)
	}
	if _, err := c.Capture(ctx, "second.jpg"); err != nil {
		t.Fatal(err)
	}

	files, err := c.ListCaptures(ctx)
	if err != nil || len(files) != 2 {
		t.Fatalf("ListCaptures = %+v, %v", files, err)
	}
	if _, ok := files[0].Time(); !ok {
		t.Errorf("date %q does not parse", files[0].Date)
	}

	var buf bytes.Buffer
	n, err := c.DownloadCapture(ctx, "first.jpg", &buf)
	if err != nil || n == 0 {
		t.Fatalf("DownloadCapture = %d, %v", n, err)
	}

	del, err := c.DeleteCapture(ctx, "first.jpg")
	if err != nil || !del.Success {
		t.Fatalf("DeleteCapture = %+v, %v", del, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "first.jpg")); !os.IsNotExist(err) {
		t.Error("file still on disk")
	}
	if _, err := c.DeleteCapture(ctx, "first.jpg"); client.ErrorDetail(err) != "File not found" {
		t.Errorf("second delete: err = %v", err)
	}

	cr, err := c.ClearCaptures(ctx)
	if err != nil || cr.Data.Count != 1 {
		t.Fatalf("ClearCaptures = %+v, %v", cr, err)
	}
}

func TestDownloadAllZipsCaptures(t *testing.T) {
	cam, c := newTestServer(t, Options{}, "")
	ctx := context.Background()

	var buf bytes.Buffer
	if _, err := c.DownloadAll(ctx, &buf); client.ErrorDetail(err) != "No images found" {
		t.Fatalf("empty store: err = %v", err)
	}

	cam.Connect()
	for _, name := range []string{"a.jpg", "b.jpg"} {
		if _, err := c.Capture(ctx, name); err != nil {
			t.Fatal(err)
		}
	}

	buf.Reset()
	n, err := c.DownloadAll(ctx, &buf)
	if err != nil || n == 0 {
		t.Fatalf("DownloadAll = %d, %v", n, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("%s stored with method %d", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := jpeg.Decode(rc); err != nil {
			t.Errorf("%s: %v", f.Name, err)
		}
		rc.Close()
	}
}

func TestSettingsAndFocus(t *testing.T) {
	cam, c := newTestServer(t, Options{}, "")
	ctx := context.Background()

	if _, err := c.Settings(ctx); err == nil {
		t.Error("settings while disconnected should fail")
	}
	cam.Connect()

	st, err := c.Settings(ctx)
	if err != nil || st.ISO == nil || *st.ISO != 400 {
		t.Fatalf("Settings = %+v, %v", st, err)
	}
	av, err := c.AvailableSettings(ctx)
	if err != nil || len(av["iso"]) == 0 {
		t.Fatalf("AvailableSettings = %v, %v", av, err)
	}
	if res, err := c.AutoFocus(ctx); err != nil || !res.Success {
		t.Errorf("AutoFocus = %+v, %v", res, err)
	}
	if res, err := c.Snapshot(ctx); err != nil || !res.Success || res.URL == "" {
		t.Errorf("Snapshot = %+v, %v", res, err)
	}
}

func TestBatteryDrains(t *testing.T) {
	cam, err := NewCamera(Options{CaptureDir: t.TempDir(), DrainEvery: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cam.now = func() time.Time { return start }
	cam.Connect()

	cam.now = func() time.Time { return start.Add(10 * time.Minute) }
	if b := *cam.Status().Battery; b != 90 {
		t.Errorf("battery = %d, want 90", b)
	}
	cam.Drop()
	cam.now = func() time.Time { return start.Add(time.Hour) }
	cam.Connect()
	if b := *cam.Status().Battery; b != 90 {
		t.Errorf("battery after reconnect = %d, want 90", b)
	}
}

func TestTokenRequired(t *testing.T) {
	cam, err := NewCamera(Options{CaptureDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	router := NewServer(cam, "s3cret", logging.Discard()).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/camera/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/camera/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSystemInfo(t *testing.T) {
	_, c := newTestServer(t, Options{}, "")
	info, err := c.SystemInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.CameraServiceStatus != "running" {
		t.Errorf("service status = %q", info.CameraServiceStatus)
	}
}
