// Package bot wires the poll watcher together: storage, the WhatsApp
// session, the poll pipeline, media saving, the event router and the
// health and metrics endpoints.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mau.fi/whatsmeow/types"

	"github.com/dmitrijs2005/pollwatch/internal/bot/config"
	"github.com/dmitrijs2005/pollwatch/internal/bot/health"
	"github.com/dmitrijs2005/pollwatch/internal/bot/media"
	"github.com/dmitrijs2005/pollwatch/internal/bot/metrics"
	"github.com/dmitrijs2005/pollwatch/internal/bot/pollvote"
	"github.com/dmitrijs2005/pollwatch/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/pollwatch/internal/bot/router"
	"github.com/dmitrijs2005/pollwatch/internal/bot/services"
	"github.com/dmitrijs2005/pollwatch/internal/bot/wa"
	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

// seams for tests
var (
	openRepos   = repomanager.Open
	openSession = wa.OpenSession
)

// ErrLoggedOut is returned by Run when the account was unlinked.
var ErrLoggedOut = errors.New("logged out of WhatsApp; remove the session file and pair again")

type App struct {
	config  *config.Config
	logger  logging.Logger
	groups  []types.JID
	repos   repomanager.RepositoryManager
	session *wa.Session
	health  *health.Server
	metrics *metrics.Server
	router  *router.Router
	out     io.Writer

	loggedOut     chan struct{}
	loggedOutOnce sync.Once
}

// NewApp opens storage (running migrations) and the WhatsApp session and
// builds every collaborator. Nothing is connected until Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	groups, err := c.Groups()
	if err != nil {
		return nil, err
	}
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}

	repos, err := openRepos(ctx, c.DatabaseDSN, c.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	sink, err := newSink(ctx, c)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("media sink error: %w", err)
	}

	session, err := openSession(ctx, c.SessionPath, logger)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("whatsapp session error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	app := &App{
		config:    c,
		logger:    logger,
		groups:    groups,
		repos:     repos,
		session:   session,
		health:    health.NewServer(c.HealthAddr, logger),
		metrics:   metrics.NewServer(c.MetricsAddr, reg, logger),
		out:       os.Stdout,
		loggedOut: make(chan struct{}),
	}

	client := session.Client
	decryptor := pollvote.NewDecryptor(client, repos.Creations(), session.Self())
	polls := services.NewPollService(repos, decryptor, policy,
		services.RetryPolicy{Retries: c.StorageRetries, Base: c.StorageRetryBase}, logger, m)
	saver := media.NewSaver(client, sink, logger, m)

	app.router = router.New(groups, router.Deps{
		Polls:     polls,
		Media:     saver,
		History:   client,
		Health:    app.health,
		Reconnect: func(ctx context.Context) error { return wa.Connect(ctx, client, app.backoff(), logger) },
		LoggedOut: app.onLoggedOut,
		Self:      session.Self(),
		Logger:    logger,
		Metrics:   m,
	})

	return app, nil
}

func newSink(ctx context.Context, c *config.Config) (media.Sink, error) {
	switch c.MediaSink {
	case config.SinkS3:
		return media.NewS3Sink(ctx, media.S3Config{
			Bucket:    c.S3Bucket,
			Prefix:    c.S3Prefix,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
	case config.SinkFS, "":
		return media.NewFileSink(c.MediaDir)
	default:
		return nil, fmt.Errorf("unknown media sink %q", c.MediaSink)
	}
}

func (app *App) backoff() wa.Backoff {
	return wa.Backoff{Base: app.config.ReconnectBase, Max: app.config.ReconnectMax}
}

func (app *App) onLoggedOut() {
	app.loggedOutOnce.Do(func() { close(app.loggedOut) })
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

// serve runs one endpoint; a failing endpoint stops the whole app.
func (app *App) serve(ctx context.Context, cancelFunc context.CancelFunc, name, addr string, run func(context.Context) error) {
	if addr == "" {
		app.logger.Info(ctx, name+" endpoint disabled")
		return
	}
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, name+" endpoint failed", "error", err)
		cancelFunc()
	}
}

// checkStorage pings the store and publishes the result as storage health.
func (app *App) checkStorage(ctx context.Context) {
	if err := app.repos.Ping(ctx); err != nil {
		app.logger.Error(ctx, "storage ping failed", "error", err)
		app.health.SetStorage(false)
		return
	}
	app.health.SetStorage(true)
}

// connect pairs a fresh device through a QR code or dials a paired one.
func (app *App) connect(ctx context.Context) error {
	client := app.session.Client
	if client.Store.ID == nil {
		app.logger.Info(ctx, "no paired device, starting QR pairing")
		return wa.Pair(ctx, client, app.out, app.logger)
	}
	return wa.Connect(ctx, client, app.backoff(), app.logger)
}

// Run connects to WhatsApp and serves events until a signal arrives, ctx
// ends or the account is logged out. Storage and the session are closed
// before it returns.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "groups", len(app.groups))

	app.initSignalHandler(cancelFunc)
	app.checkStorage(ctx)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "health", app.config.HealthAddr, app.health.Run)
	}()
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "metrics", app.config.MetricsAddr, app.metrics.Run)
	}()

	app.session.Client.AddEventHandler(app.router.Handler(ctx))

	var runErr error
	if err := app.connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "whatsapp connect failed", "error", err)
		runErr = err
		cancelFunc()
	}

	select {
	case <-ctx.Done():
	case <-app.loggedOut:
		cancelFunc()
	}
	if app.router.Halted() {
		runErr = ErrLoggedOut
	}

	wg.Wait()
	app.logger.Info(ctx, "Stopping app...")

	if err := app.close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (app *App) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionErr := app.session.Close()
	reposErr := app.repos.Close(ctx)
	return errors.Join(sessionErr, reposErr)
}
