package mockcam

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Server exposes a Camera over the device HTTP contract.
type Server struct {
	cam    *Camera
	token  string
	logger *log.Logger
}

func NewServer(cam *Camera, token string, logger *log.Logger) *Server {
	return &Server{cam: cam, token: token, logger: logger}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog(), s.auth())

	cam := r.Group("/api/camera")
	cam.GET("/status", s.handleStatus)
	cam.POST("/connect", s.handleConnect)
	cam.POST("/disconnect", s.handleDisconnect)
	cam.GET("/settings", s.handleSettings)
	cam.GET("/settings/available", s.handleAvailable)
	cam.POST("/capture", s.handleCapture)
	cam.GET("/preview/live", s.handleLive)
	cam.POST("/preview/snapshot", s.handleSnapshot)
	cam.POST("/focus/auto", s.handleFocus)

	files := r.Group("/api/files")
	files.GET("/captures", s.handleList)
	files.DELETE("/captures/clear", s.handleClear)
	files.POST("/captures/download-all", s.handleDownloadAll)
	files.GET("/captures/:filename", s.handleGetCapture)
	files.DELETE("/captures/:filename", s.handleDelete)

	r.GET("/api/system/info", s.handleSystemInfo)
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
			"id", c.GetHeader("X-Request-ID"),
		)
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
		}
	}
}

// fail writes the service's error shape for err.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotConnected):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Camera not connected"})
	case errors.Is(err, ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Camera busy"})
	case errors.Is(err, ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid file path"})
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.cam.Status())
}

func (s *Server) handleConnect(c *gin.Context) {
	if s.cam.Connect() {
		s.logger.Info("camera connected")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Camera connected successfully"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": false, "message": "Failed to connect to camera"})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	ok := s.cam.Disconnect()
	msg := "Camera disconnected"
	if !ok {
		msg = "Failed to disconnect"
	}
	s.logger.Info("camera disconnected")
	c.JSON(http.StatusOK, gin.H{"success": ok, "message": msg})
}

func (s *Server) handleSettings(c *gin.Context) {
	st, err := s.cam.Settings()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleAvailable(c *gin.Context) {
	av, err := s.cam.Available()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, av)
}

func (s *Server) handleCapture(c *gin.Context) {
	name, err := s.cam.Capture(c.Query("filename"))
	if err != nil {
		fail(c, err)
		return
	}
	s.logger.Info("captured", "file", name)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"filename":  name,
		"url":       "/api/files/captures/" + name,
		"timestamp": s.cam.now().Format(time.RFC3339),
	})
}

func (s *Server) handleLive(c *gin.Context) {
	data, err := s.cam.Frame()
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	data, err := s.cam.Frame()
	if err != nil {
		fail(c, err)
		return
	}
	name := "preview_" + s.cam.now().Format("20060102_150405") + ".jpg"
	path := filepath.Join(s.cam.opts.CaptureDir, "previews", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fail(c, err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": "/static/previews/" + name, "message": "Preview snapshot taken"})
}

func (s *Server) handleFocus(c *gin.Context) {
	ok, err := s.cam.AutoFocus()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ok, "message": "Autofocus completed"})
}

type fileInfo struct {
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	Date         string `json:"date"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (s *Server) handleList(c *gin.Context) {
	paths, err := filepath.Glob(filepath.Join(s.cam.opts.CaptureDir, "*.jpg"))
	if err != nil {
		fail(c, err)
		return
	}
	files := make([]fileInfo, 0, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		name := filepath.Base(p)
		files = append(files, fileInfo{
			Filename:     name,
			Size:         st.Size(),
			Date:         st.ModTime().Format("2006-01-02T15:04:05.000000"),
			URL:          "/api/files/captures/" + name,
			ThumbnailURL: "/api/files/captures/" + name + "?thumbnail=true",
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Date > files[j].Date })
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleGetCapture(c *gin.Context) {
	path, err := s.cam.capturePath(c.Param("filename"))
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		fail(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// handleDownloadAll streams every capture as a deflated zip.
func (s *Server) handleDownloadAll(c *gin.Context) {
	paths, err := filepath.Glob(filepath.Join(s.cam.opts.CaptureDir, "*.jpg"))
	if err != nil {
		fail(c, err)
		return
	}
	if len(paths) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No images found"})
		return
	}

	name := "captures_" + s.cam.now().Format("20060102_150405") + ".zip"
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Status(http.StatusOK)

	zw := zip.NewWriter(c.Writer)
	for _, p := range paths {
		if err := addToZip(zw, p); err != nil {
			// Headers are gone; cut the stream short so the client sees a
			// truncated archive.
			s.logger.Error("zip captures", "file", p, "err", err)
			c.Abort()
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.logger.Error("zip captures", "err", err)
		return
	}
	s.logger.Info("zipped captures", "count", len(paths))
}

func addToZip(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: filepath.Base(path), Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func (s *Server) handleDelete(c *gin.Context) {
	name := c.Param("filename")
	path, err := s.cam.capturePath(name)
	if err != nil {
		fail(c, err)
		return
	}
	if err := os.Remove(path); err != nil {
		fail(c, err)
		return
	}
	s.logger.Info("deleted", "file", name)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "File " + name + " deleted successfully"})
}

func (s *Server) handleClear(c *gin.Context) {
	paths, _ := filepath.Glob(filepath.Join(s.cam.opts.CaptureDir, "*.jpg"))
	n := 0
	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			n++
		}
	}
	s.logger.Info("cleared captures", "count", n)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Cleared %d files", n),
		"data":    gin.H{"count": n},
	})
}

func (s *Server) handleSystemInfo(c *gin.Context) {
	info := gin.H{"camera_service_status": "running"}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		info["cpu_usage"] = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory_usage"] = vm.UsedPercent
	}
	if du, err := disk.Usage(diskRoot(s.cam.opts.CaptureDir)); err == nil {
		info["disk_usage"] = du.UsedPercent
	}
	if up, err := host.Uptime(); err == nil {
		info["uptime"] = (time.Duration(up) * time.Second).String()
	}
	c.JSON(http.StatusOK, info)
}

func diskRoot(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "/"
	}
	return abs
}
