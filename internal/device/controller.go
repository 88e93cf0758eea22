package device

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/hub"
)

// Messages emitted with hub.Error.
const (
	MsgConnectFailed    = "Failed to connect to camera"
	MsgDisconnectFailed = "Failed to disconnect camera"
	MsgNotConnected     = "Camera not connected"
	MsgCaptureFailed    = "Capture failed"
	MsgCaptureTransport = "Failed to capture image"
)

// Commander issues session commands to the device.
type Commander interface {
	Connect(ctx context.Context) (*client.Result, error)
	Disconnect(ctx context.Context) (*client.Result, error)
	Capture(ctx context.Context, filename string) (*client.CaptureResult, error)
}

// Controller runs connect, disconnect and capture against the device and
// reports outcomes on the hub. It never returns errors to callers.
type Controller struct {
	cmd    Commander
	mirror *Mirror
	hub    *hub.Hub
	logger *log.Logger
}

// NewController returns a Controller that keeps mirror in step with cmd.
func NewController(cmd Commander, mirror *Mirror, h *hub.Hub, logger *log.Logger) *Controller {
	return &Controller{cmd: cmd, mirror: mirror, hub: h, logger: logger}
}

// Connect opens a session. On success the mirror is refreshed before
// hub.Connected is emitted.
func (c *Controller) Connect(ctx context.Context) bool {
	res, err := c.cmd.Connect(ctx)
	if err != nil {
		c.logger.Error("connect", "err", err)
		c.hub.Emit(hub.Error, MsgConnectFailed)
		return false
	}
	if !res.Success {
		c.hub.Emit(hub.Error, orDefault(res.Message, MsgConnectFailed))
		return false
	}

	// The device accepted the session; the mirror reports connected until
	// the next poll says otherwise.
	if _, err := c.mirror.Refresh(ctx); err != nil || !c.mirror.Read().Connected {
		if err == nil {
			c.logger.Warn("device reports disconnected after connect")
		}
		c.mirror.SetConnected(true)
	}
	c.logger.Info("connected", "model", c.mirror.Read().Model)
	c.hub.Emit(hub.Connected, nil)
	return true
}

// Disconnect closes the session and trusts the local state afterwards.
// A refused disconnect is silent.
func (c *Controller) Disconnect(ctx context.Context) bool {
	res, err := c.cmd.Disconnect(ctx)
	if err != nil {
		c.logger.Error("disconnect", "err", err)
		c.hub.Emit(hub.Error, MsgDisconnectFailed)
		return false
	}
	if !res.Success {
		c.logger.Warn("disconnect refused", "message", res.Message)
		return false
	}

	c.mirror.SetConnected(false)
	c.logger.Info("disconnected")
	c.hub.Emit(hub.Disconnected, nil)
	return true
}

// Capture takes a picture. hint is an optional filename for the device.
func (c *Controller) Capture(ctx context.Context, hint string) bool {
	if !c.mirror.Read().Connected {
		c.hub.Emit(hub.Error, MsgNotConnected)
		return false
	}

	res, err := c.cmd.Capture(ctx, hint)
	if err != nil {
		c.logger.Error("capture", "err", err)
		c.hub.Emit(hub.Error, orDefault(client.ErrorDetail(err), MsgCaptureTransport))
		return false
	}
	if !res.Success {
		c.hub.Emit(hub.Error, orDefault(res.Message, MsgCaptureFailed))
		return false
	}

	c.logger.Info("captured", "file", res.Filename)
	c.hub.Emit(hub.Captured, res.Filename)
	return true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
