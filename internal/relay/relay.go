// Package relay re-publishes preview frames to browsers on the local
// network over a websocket.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"github.com/tetherview/tetherview/internal/preview"
	"golang.org/x/time/rate"
)

const (
	sendQueue    = 4
	writeTimeout = 5 * time.Second
	// A viewer that misses this many frames in a row is dropped.
	maxMissed = 100
)

var clearMsg = []byte(`{"type":"clear"}`)

type message struct {
	kind int
	data []byte
}

type viewer struct {
	conn    *websocket.Conn
	r       *Relay
	send    chan message
	limiter *rate.Limiter
	missed  int
}

func (v *viewer) writePump() {
	defer v.conn.Close()
	for msg := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(msg.kind, msg.data); err != nil {
			v.r.remove(v)
			return
		}
	}
}

// Relay is a preview.Display that fans frames out to websocket viewers.
type Relay struct {
	maxFPS float64
	logger *log.Logger

	mu      sync.RWMutex
	viewers map[*viewer]bool

	srv *http.Server
}

var _ preview.Display = (*Relay)(nil)

// New returns a Relay that sends each viewer at most maxFPS frames a second.
func New(maxFPS float64, logger *log.Logger) *Relay {
	return &Relay{
		maxFPS:  maxFPS,
		logger:  logger,
		viewers: make(map[*viewer]bool),
	}
}

// Show copies f and queues it for every viewer whose rate allows it.
// It never blocks on a viewer.
func (r *Relay) Show(f *preview.Frame) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.viewers) == 0 {
		return
	}

	data := make([]byte, f.Len())
	copy(data, f.Bytes())
	msg := message{kind: websocket.BinaryMessage, data: data}

	for v := range r.viewers {
		if !v.limiter.Allow() {
			continue
		}
		select {
		case v.send <- msg:
			v.missed = 0
		default:
			v.missed++
			if v.missed == maxMissed {
				r.logger.Warn("viewer too slow, closing", "addr", v.conn.RemoteAddr())
				// Closing the conn makes writePump and the read loop exit,
				// which removes the viewer.
				v.conn.Close()
			}
		}
	}
}

// Clear tells viewers the preview stopped.
func (r *Relay) Clear() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg := message{kind: websocket.TextMessage, data: clearMsg}
	for v := range r.viewers {
		select {
		case v.send <- msg:
			continue
		default:
		}
		// Queue full of frames: drop the oldest so the notice gets through.
		select {
		case <-v.send:
		default:
		}
		select {
		case v.send <- msg:
		default:
		}
	}
}

// Viewers returns the number of connected viewers.
func (r *Relay) Viewers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

func (r *Relay) add(conn *websocket.Conn) *viewer {
	v := &viewer{
		conn:    conn,
		r:       r,
		send:    make(chan message, sendQueue),
		limiter: rate.NewLimiter(rate.Limit(r.maxFPS), 1),
	}
	r.mu.Lock()
	r.viewers[v] = true
	r.mu.Unlock()
	go v.writePump()
	return v
}

func (r *Relay) remove(v *viewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.viewers[v] {
		delete(r.viewers, v)
		close(v.send)
	}
}

// Handler serves the viewer page at / and the frame stream at /ws/preview.
func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/preview", r.handleWS)
	mux.HandleFunc("/", r.handleIndex)
	return mux
}

func (r *Relay) handleWS(w http.ResponseWriter, req *http.Request) {
	upgrader := websocket.Upgrader{
		// Viewers are browsers on the LAN opening the page we serve.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("ws upgrade", "err", err)
		return
	}

	r.logger.Info("viewer connected", "addr", req.RemoteAddr)
	v := r.add(conn)

	go func() {
		defer func() {
			r.remove(v)
			r.logger.Info("viewer disconnected", "addr", req.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (r *Relay) handleIndex(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

// Start listens on addr and serves until ctx is cancelled or Close is
// called. It returns the URL viewers should open.
func (r *Relay) Start(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("relay listen: %w", err)
	}
	r.srv = &http.Server{Handler: r.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := r.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("relay serve", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		r.Close()
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://%s:%d/", lanHost(), port)
	r.logger.Info("relay listening", "addr", ln.Addr().String(), "url", url)
	return url, nil
}

// Close stops the server and disconnects every viewer.
func (r *Relay) Close() error {
	r.mu.Lock()
	for v := range r.viewers {
		v.conn.Close()
	}
	r.mu.Unlock()
	if r.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.srv.Shutdown(ctx)
}

// lanHost picks the first non-loopback IPv4 address, falling back to
// localhost.
func lanHost() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}

// QR renders url as a terminal QR code.
func QR(url string) (string, error) {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("qr: %w", err)
	}
	return q.ToSmallString(false), nil
}

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>tetherview</title>
<style>
body { margin: 0; background: #111; color: #aaa; font-family: sans-serif; }
#frame { display: block; max-width: 100vw; max-height: 100vh; margin: auto; }
#idle { position: fixed; top: 45%; width: 100%; text-align: center; }
</style>
</head>
<body>
<div id="idle">waiting for preview</div>
<img id="frame" alt="">
<script>
const img = document.getElementById("frame");
const idle = document.getElementById("idle");
let url = null;
function connect() {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/preview");
  ws.binaryType = "blob";
  ws.onmessage = (ev) => {
    if (typeof ev.data === "string") {
      if (url) { URL.revokeObjectURL(url); url = null; }
      img.removeAttribute("src");
      idle.style.display = "block";
      return;
    }
    const next = URL.createObjectURL(ev.data);
    img.src = next;
    if (url) URL.revokeObjectURL(url);
    url = next;
    idle.style.display = "none";
  };
  ws.onclose = () => setTimeout(connect, 1000);
}
connect();
</script>
</body>
</html>
`
