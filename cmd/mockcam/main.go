package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/tetherview/tetherview/internal/logging"
	"github.com/tetherview/tetherview/internal/mockcam"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "Listen address")
	dir := flag.String("dir", "captures", "Capture directory")
	failRate := flag.Float64("fail-rate", 0, "Probability in [0,1] that a preview frame fails")
	token := flag.String("token", "", "Require this bearer token")
	model := flag.String("model", "", "Reported camera model")
	drain := flag.Duration("drain", 30*time.Second, "Battery drain per percent while connected")
	debug := flag.Bool("debug", false, "Verbose logging")
	flag.Parse()

	level := log.InfoLevel
	if *debug {
		level = log.DebugLevel
	}
	logger := logging.NewWriter(os.Stderr, level)

	cam, err := mockcam.NewCamera(mockcam.Options{
		Model:      *model,
		CaptureDir: *dir,
		FailRate:   *failRate,
		DrainEvery: *drain,
	})
	if err != nil {
		logger.Fatal("create camera", "err", err)
	}

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mockcam.NewServer(cam, *token, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	logger.Info("mock camera listening", "addr", *addr, "dir", *dir, "fail_rate", *failRate)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", "err", err)
	}
}
