// Package server wires the VisionLock server together: storage, the user
// service, the inference client, alert sinks and the HTTP and gRPC
// listeners, and runs them until a signal or context cancellation.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/logging"
	"github.com/dmitrijs2005/visionlock/internal/server/alerts"
	"github.com/dmitrijs2005/visionlock/internal/server/api"
	"github.com/dmitrijs2005/visionlock/internal/server/config"
	"github.com/dmitrijs2005/visionlock/internal/server/inference"
	"github.com/dmitrijs2005/visionlock/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/visionlock/internal/server/services"
	"github.com/dmitrijs2005/visionlock/internal/server/voice"

	gs "github.com/dmitrijs2005/visionlock/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler *api.Handler
	closers []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(db, rm, c, logger)

	// one client for every connection; it bounds its own concurrency
	inf := inference.NewLimited(inference.NewClient(inference.Config{
		BaseURL: c.InferenceURL,
		Timeout: c.InferenceTimeout,
	}), c.InferenceConcurrency)

	dispatcher, closers, err := buildAlerts(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var tr api.Transcriber
	if c.OpenAIKey != "" {
		tr = voice.NewTranscriber(voice.Config{APIKey: c.OpenAIKey, BaseURL: c.OpenAIBaseURL, Model: c.OpenAIModel})
	}

	h := api.NewHandler(us, inf, dispatcher, tr, api.Options{
		Session:   c.Session(),
		QueueSize: c.FrameQueueSize,
	}, logger)

	return &App{config: c, logger: logger, db: db, handler: h, closers: closers}, nil
}

// buildAlerts enables each alert transport that has an address configured.
// With none configured the dispatcher only logs.
func buildAlerts(ctx context.Context, c *config.Config, logger logging.Logger) (*alerts.Dispatcher, []io.Closer, error) {
	var (
		snapshots alerts.SnapshotStore
		notifiers []alerts.Notifier
		closers   []io.Closer
	)

	if c.S3Bucket != "" {
		s3, err := alerts.NewS3Snapshots(ctx, alerts.S3Config{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			PresignTTL:   c.S3PresignTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("alert snapshots: %w", err)
		}
		snapshots = s3
	} else if c.SnapshotDir != "" {
		disk, err := alerts.NewDiskSnapshots(c.SnapshotDir)
		if err != nil {
			return nil, nil, fmt.Errorf("alert snapshots: %w", err)
		}
		snapshots = disk
	}

	if len(c.KafkaBrokers) > 0 {
		p := alerts.NewKafkaPublisher(c.KafkaBrokers, c.KafkaAlertTopic)
		notifiers = append(notifiers, p)
		closers = append(closers, p)
	}

	if c.SMTPAddr != "" {
		notifiers = append(notifiers, alerts.NewMailer(alerts.MailConfig{
			Addr:     c.SMTPAddr,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
			To:       c.SMTPTo,
		}))
	}

	return alerts.NewDispatcher(snapshots, notifiers, c.AlertTimeout, logger), closers, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server error", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a listener fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(ctx)
}

func (app *App) close(ctx context.Context) {
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Error(ctx, "close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
