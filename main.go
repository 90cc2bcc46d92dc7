package main

import (
	"bitwise74/fileshare-api/app"
	"bitwise74/fileshare-api/config"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	err := config.Setup()
	if err != nil {
		panic(err)
	}

	router, d, err := app.NewRouter()
	if err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	if config.ReconcileOnce() {
		rep, err := d.Reconciler.Run(context.Background())
		if err != nil {
			zap.L().Fatal("Reconciliation failed", zap.Error(err))
		}

		zap.L().Info("Reconciliation finished",
			zap.Int("expired_slots", rep.ExpiredSlots),
			zap.Int("orphans_deleted", rep.OrphansDeleted),
			zap.Int("scanned", rep.Scanned),
		)
		return
	}

	if viper.GetBool("reconcile.enabled") {
		c, err := d.Reconciler.Schedule(viper.GetString("reconcile.schedule"))
		if err != nil {
			zap.L().Fatal("Failed to schedule reconciliation", zap.Error(err))
		}
		defer c.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("host.port")),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv)
	}()

	select {
	case err := <-errCh:
		zap.L().Fatal("Server stopped", zap.Error(err))
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Graceful shutdown failed", zap.Error(err))
	}
}

// listen starts the server, retrying a few times if the port can't be
// bound yet
func listen(srv *http.Server) error {
	retries := viper.GetInt("server.start_retries")
	delay := time.Duration(viper.GetInt("server.retry_delay_seconds")) * time.Second
	ssl := viper.GetBool("host.ssl.enabled")

	var err error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			zap.L().Warn("Failed to start server, retrying", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
			time.Sleep(delay)
		}

		zap.L().Info("Server starting", zap.String("addr", srv.Addr), zap.Bool("ssl", ssl))

		if ssl {
			err = srv.ListenAndServeTLS(
				viper.GetString("host.ssl.certificate_path"),
				viper.GetString("host.ssl.certificate_key_path"),
			)
		} else {
			err = srv.ListenAndServe()
		}

		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
	}

	return err
}
