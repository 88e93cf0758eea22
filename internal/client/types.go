// Package client talks to the camera control service over HTTP.
// Types mirror the service's JSON without sharing code with it.
package client

import (
	"strings"
	"time"
)

// DeviceState is the connection/session state reported by GET /status.
type DeviceState struct {
	Connected        bool   `json:"connected"`
	Model            string `json:"model,omitempty"`
	Battery          *int   `json:"battery,omitempty"` // percent, 0-100
	StorageAvailable *int   `json:"storage_available,omitempty"`
}

// Clone returns a deep copy.
func (s DeviceState) Clone() DeviceState {
	out := s
	if s.Battery != nil {
		b := *s.Battery
		out.Battery = &b
	}
	if s.StorageAvailable != nil {
		v := *s.StorageAvailable
		out.StorageAvailable = &v
	}
	return out
}

// Result is the generic {success, message} command response.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CaptureResult is returned by POST /capture.
type CaptureResult struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename,omitempty"`
	URL       string `json:"url,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SnapshotResult is returned by POST /preview/snapshot.
type SnapshotResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Settings mirrors GET /settings. Unset fields are unknown to the camera.
type Settings struct {
	ISO          *int   `json:"iso,omitempty"`
	Aperture     string `json:"aperture,omitempty"`
	ShutterSpeed string `json:"shutter_speed,omitempty"`
	WhiteBalance string `json:"white_balance,omitempty"`
	ExposureMode string `json:"exposure_mode,omitempty"`
	FocusMode    string `json:"focus_mode,omitempty"`
}

// FileInfo describes one capture in the remote store.
type FileInfo struct {
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	Date         string `json:"date"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// dateLayouts covers the service's timestamps, which may lack a zone.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Time parses Date. Zoneless timestamps are read as local time.
func (f FileInfo) Time() (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, f.Date, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsJPEG reports whether the capture looks like a JPEG by name.
func (f FileInfo) IsJPEG() bool {
	name := strings.ToLower(f.Filename)
	return strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg")
}

// ClearResult is returned by DELETE /captures/clear.
type ClearResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Count int `json:"count"`
	} `json:"data"`
}

// SystemInfo mirrors GET /api/system/info.
type SystemInfo struct {
	CPUUsage            float64 `json:"cpu_usage"`
	MemoryUsage         float64 `json:"memory_usage"`
	DiskUsage           float64 `json:"disk_usage"`
	Uptime              string  `json:"uptime"`
	CameraServiceStatus string  `json:"camera_service_status"`
}
