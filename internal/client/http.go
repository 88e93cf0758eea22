package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const (
	cameraPrefix = "/api/camera"
	filesPrefix  = "/api/files"
	systemPrefix = "/api/system"

	maxErrorBody = 4 << 10
	maxFrameSize = 8 << 20
)

// ErrFrameTooLarge is returned when a live frame exceeds maxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// StatusError is returned when the service answers with a non-2xx status.
// Detail holds the service's own error message when the body carried one.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// ErrorDetail returns the service-provided message carried by err, if any.
func ErrorDetail(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}

// HTTPClient makes REST calls to the camera control service.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	now     func() time.Time
}

// NewHTTPClient creates a client targeting the service root
// (e.g. "http://127.0.0.1:8000").
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// BaseURL returns the service root the client was built with.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Status fetches GET /status.
func (c *HTTPClient) Status(ctx context.Context) (*DeviceState, error) {
	var s DeviceState
	if err := c.do(ctx, http.MethodGet, cameraPrefix+"/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Connect sends POST /connect.
func (c *HTTPClient) Connect(ctx context.Context) (*Result, error) {
	var r Result
	if err := c.do(ctx, http.MethodPost, cameraPrefix+"/connect", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Disconnect sends POST /disconnect.
func (c *HTTPClient) Disconnect(ctx context.Context) (*Result, error) {
	var r Result
	if err := c.do(ctx, http.MethodPost, cameraPrefix+"/disconnect", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Capture sends POST /capture, passing filename as a hint when non-empty.
func (c *HTTPClient) Capture(ctx context.Context, filename string) (*CaptureResult, error) {
	path := cameraPrefix + "/capture"
	if filename != "" {
		path += "?filename=" + url.QueryEscape(filename)
	}
	var r CaptureResult
	if err := c.do(ctx, http.MethodPost, path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LiveFrame fetches GET /preview/live with a cache-busting timestamp and
// copies the image into w. It returns the response content type.
func (c *HTTPClient) LiveFrame(ctx context.Context, w io.Writer) (string, error) {
	path := cameraPrefix + "/preview/live?t=" + strconv.FormatInt(c.now().UnixMilli(), 10)
	resp, err := c.send(ctx, http.MethodGet, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, io.LimitReader(resp.Body, maxFrameSize+1))
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	if n > maxFrameSize {
		return "", fmt.Errorf("read frame: %w", ErrFrameTooLarge)
	}
	return resp.Header.Get("Content-Type"), nil
}

// Snapshot sends POST /preview/snapshot.
func (c *HTTPClient) Snapshot(ctx context.Context) (*SnapshotResult, error) {
	var r SnapshotResult
	if err := c.do(ctx, http.MethodPost, cameraPrefix+"/preview/snapshot", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// AutoFocus sends POST /focus/auto.
func (c *HTTPClient) AutoFocus(ctx context.Context) (*Result, error) {
	var r Result
	if err := c.do(ctx, http.MethodPost, cameraPrefix+"/focus/auto", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Settings fetches GET /settings.
func (c *HTTPClient) Settings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodGet, cameraPrefix+"/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// AvailableSettings fetches GET /settings/available.
func (c *HTTPClient) AvailableSettings(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string)
	if err := c.do(ctx, http.MethodGet, cameraPrefix+"/settings/available", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCaptures fetches GET /api/files/captures.
func (c *HTTPClient) ListCaptures(ctx context.Context) ([]FileInfo, error) {
	var out []FileInfo
	if err := c.do(ctx, http.MethodGet, filesPrefix+"/captures", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCapture sends DELETE /api/files/captures/{name}.
func (c *HTTPClient) DeleteCapture(ctx context.Context, name string) (*Result, error) {
	var r Result
	if err := c.do(ctx, http.MethodDelete, filesPrefix+"/captures/"+url.PathEscape(name), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ClearCaptures sends DELETE /api/files/captures/clear.
func (c *HTTPClient) ClearCaptures(ctx context.Context) (*ClearResult, error) {
	var r ClearResult
	if err := c.do(ctx, http.MethodDelete, filesPrefix+"/captures/clear", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DownloadCapture streams GET /api/files/captures/{name} into w.
func (c *HTTPClient) DownloadCapture(ctx context.Context, name string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, filesPrefix+"/captures/"+url.PathEscape(name))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", name, err)
	}
	return n, nil
}

// DownloadAll streams POST /captures/download-all, a zip of every capture,
// into w.
func (c *HTTPClient) DownloadAll(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodPost, filesPrefix+"/captures/download-all")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download all: %w", err)
	}
	return n, nil
}

// SystemInfo fetches GET /api/system/info.
func (c *HTTPClient) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var s SystemInfo
	if err := c.do(ctx, http.MethodGet, systemPrefix+"/info", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// do sends a bodiless request and decodes the JSON response into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, out interface{}) error {
	resp, err := c.send(ctx, method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// send performs the request and turns non-2xx answers into *StatusError.
// On success the caller owns resp.Body.
func (c *HTTPClient) send(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method: method,
			Path:   stripQuery(path),
			Code:   resp.StatusCode,
			Body:   string(bytes.TrimSpace(body)),
			Detail: parseDetail(body),
		}
	}
	return resp, nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// parseDetail extracts {"detail": "..."} or {"message": "..."} from an
// error body.
func parseDetail(body []byte) string {
	var e struct {
		Detail  interface{} `json:"detail"`
		Message string      `json:"message"`
	}
	if err := sonic.Unmarshal(body, &e); err != nil {
		return ""
	}
	if s, ok := e.Detail.(string); ok && s != "" {
		return s
	}
	return e.Message
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
