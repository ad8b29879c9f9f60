package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	api "github.com/oshokin/alarm-coordinator/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-coordinator/internal/api/http/webhook"
	"github.com/oshokin/alarm-coordinator/internal/client/security"
	"github.com/oshokin/alarm-coordinator/internal/config"
	"github.com/oshokin/alarm-coordinator/internal/logger"
	"github.com/oshokin/alarm-coordinator/internal/repository/journal"
	repository "github.com/oshokin/alarm-coordinator/internal/repository/state"
	"github.com/oshokin/alarm-coordinator/internal/service/lifecycle"
	"github.com/oshokin/alarm-coordinator/internal/service/panel"
	"github.com/oshokin/alarm-coordinator/internal/service/poller"
)

// Options controls the alarm-coordinator process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// WebhookAddress provides an optional listen address override for the webhook listener.
	WebhookAddress string
	// StateFile specifies the path to persist the alarm session JSON.
	StateFile string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Ready, when set, receives the bound addresses once both listeners are up.
	Ready func(grpcAddress, webhookAddress string)
}

// shutdownTimeout bounds the graceful shutdown of the webhook listener.
const shutdownTimeout = 5 * time.Second

// Run starts the coordinator and blocks until context is canceled or a
// listener fails.
//
//nolint:cyclop,funlen // Wiring is linear; splitting it would scatter the startup order.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-coordinator")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	configureLogging(ctx, settings, opts.LogLevel)
	applyOverrides(settings, opts)

	// Keep a single coordinator per state file.
	guard := newInstanceGuard(settings.StateFile)
	if err = guard.acquire(); err != nil {
		return err
	}

	defer func() {
		if err := guard.release(); err != nil {
			logger.ErrorKV(ctx, "Failed to release instance guard", "error", err)
		}
	}()

	// Open the transition journal.
	store, err := journal.Open(ctx, settings.JournalFile)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close journal", "error", err)
		}
	}()

	// Create the lifecycle service with the persisted session.
	svc, err := lifecycle.New(ctx,
		security.New(ctx, &settings.Remote),
		repository.NewFileRepository(settings.StateFile),
		lifecycle.WithJournal(store),
		lifecycle.WithSensorDirectory(lifecycle.NewStaticDirectory(settings.Sensors)),
	)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	alarmPanel := panel.New(ctx, svc)

	// Setup TCP listeners.
	lc := net.ListenConfig{}

	grpcListener, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	var (
		webhookListener net.Listener
		webhookServer   *http.Server
	)

	if settings.Webhook.ListenAddress != "" {
		webhookListener, err = lc.Listen(ctx, "tcp", settings.Webhook.ListenAddress)
		if err != nil {
			_ = grpcListener.Close()

			return fmt.Errorf("listen on %s: %w", settings.Webhook.ListenAddress, err)
		}

		handler := webhook.New(svc, &settings.Webhook)
		webhookServer = &http.Server{
			Handler:           handler.Routes(),
			ReadHeaderTimeout: settings.Timeout,
			BaseContext: func(net.Listener) context.Context {
				return logger.WithName(ctx, "webhook")
			},
		}

		logger.InfoKV(ctx, "Webhook listening",
			"listen_address", webhookListener.Addr().String(), "path", handler.Path())
	} else {
		logger.Warn(ctx, "Webhook listen address is not set, remote events are not received")
	}

	// Create and configure gRPC server with the lifecycle service.
	grpcServer := grpc.NewServer()
	api.RegisterAlarmLifecycleServer(grpcServer, api.NewServer(svc, alarmPanel, store))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	logger.InfoKV(ctx, "Alarm coordinator listening",
		"listen_address", grpcListener.Addr().String(),
		"state_file", settings.StateFile,
		"journal_file", settings.JournalFile,
		"remote", settings.Remote.BaseURL,
		"session_status", svc.Session(ctx).Status,
	)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	errs := make(chan error, 2)

	wg.Go(func() {
		poller.Run(serveCtx, svc, settings.PollInterval)
	})

	wg.Go(func() {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errs <- fmt.Errorf("serve gRPC: %w", err)
		}
	})

	if webhookServer != nil {
		wg.Go(func() {
			if err := webhookServer.Serve(webhookListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("serve webhook: %w", err)
			}
		})
	}

	if opts.Ready != nil {
		webhookAddress := ""
		if webhookListener != nil {
			webhookAddress = webhookListener.Addr().String()
		}

		opts.Ready(grpcListener.Addr().String(), webhookAddress)
	}

	// Block until shutdown is requested or a listener fails.
	select {
	case <-ctx.Done():
		err = nil
	case err = <-errs:
		logger.ErrorKV(ctx, "Listener failed, shutting down", "error", err)
	}

	logger.Info(ctx, "Shutting down alarm coordinator")
	cancel()
	healthServer.Shutdown()

	if webhookServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if shutdownErr := webhookServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.ErrorKV(ctx, "Webhook shutdown failed", "error", shutdownErr)
		}

		cancelShutdown()
	}

	grpcServer.GracefulStop()
	wg.Wait()

	logger.Info(ctx, "Alarm coordinator stopped")

	return err
}

// configureLogging applies the configured format and level. An explicit
// override wins over the settings file.
func configureLogging(ctx context.Context, settings *config.Config, override string) {
	if settings.LogFormat != "" {
		logger.SetLogger(logger.New(nil, settings.LogFormat))
	}

	levelName := settings.LogLevel
	if override != "" {
		levelName = override
	}

	if levelName == "" {
		return
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping the default", "log_level", levelName)

		return
	}

	logger.SetLevel(level)
}

// applyOverrides replaces settings with command line values.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.WebhookAddress != "" {
		settings.Webhook.ListenAddress = opts.WebhookAddress
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}
}
