package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"alertflow/internal/channel"
	"alertflow/internal/clock"
	"alertflow/internal/config"
	"alertflow/internal/engine"
	"alertflow/internal/ingest"
	"alertflow/internal/logging"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable alert distribution service.
type Service struct {
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	dispatcher *channel.Dispatcher
	engine     *engine.Engine
	httpSrv    *http.Server
	natsIngest interface{ Close() }
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds service instance from validated config.
// Params: config snapshot and clock implementation.
// Returns: initialized service or setup error.
func NewService(cfg config.Config, clk clock.Clock) (*Service, error) {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		clock:    clk,
	}

	if err := service.buildEngine(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildNATSIngest(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Engine exposes the lifecycle engine for embedding callers.
// Params: none.
// Returns: engine instance backing this service.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.API.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.natsIngest != nil {
		s.natsIngest.Close()
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	s.engine.Close()
	if err := s.dispatcher.Close(); err != nil {
		s.logger.Error("dispatcher close failed", "error", err.Error())
		markErr(fmt.Errorf("dispatcher close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsIngest != nil {
		s.natsIngest.Close()
		s.natsIngest = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Close()
		s.dispatcher = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildEngine wires channel sinks and the lifecycle engine.
// Params: none.
// Returns: sink construction error.
func (s *Service) buildEngine() error {
	var sinks []channel.Sink
	var updater channel.Updater

	if !isSingleMode(s.cfg) && s.cfg.Channels.Persistent.Enabled {
		persistent, err := channel.NewPersistentSink(s.cfg.Channels.Persistent)
		if err != nil {
			return fmt.Errorf("init persistent channel: %w", err)
		}
		sinks = append(sinks, persistent)
		updater = persistent
	}
	if !isSingleMode(s.cfg) && s.cfg.Channels.Realtime.Enabled {
		realtime, err := channel.NewRealtimeSink(s.cfg.Channels.Realtime)
		if err != nil {
			return fmt.Errorf("init realtime channel: %w", err)
		}
		sinks = append(sinks, realtime)
	}
	if s.cfg.Channels.Voice.Enabled {
		sinks = append(sinks, channel.NewVoiceSink(s.cfg.Channels.Voice))
	}
	if s.cfg.Channels.Webhook.Enabled {
		sinks = append(sinks, channel.NewWebhookSink(s.cfg.Channels.Webhook))
	}
	if s.cfg.Channels.Telegram.Enabled {
		sinks = append(sinks, channel.NewTelegramSink(s.cfg.Channels.Telegram))
	}

	s.dispatcher = channel.NewDispatcher(s.logger, sinks...)
	s.logger.Info("distribution channels wired", "channels", s.dispatcher.Channels())

	opts := engine.OptionsFromConfig(s.cfg.Engine)
	opts.Logger = s.logger
	opts.Clock = s.clock
	opts.Dispatcher = s.dispatcher
	opts.Updater = updater
	s.engine = engine.New(opts)
	return nil
}

// buildHTTPServer wires router with lifecycle and health endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.API.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.API.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})

	if s.cfg.API.Enabled {
		handler := ingest.NewHTTPHandler(s.engine, s.cfg.API.MaxBodyBytes)
		base := s.cfg.API.BasePath
		mux.HandleFunc(base+"/alerts", func(writer http.ResponseWriter, request *http.Request) {
			if request.Method == http.MethodGet {
				handler.HandleList(writer, request)
				return
			}
			handler.HandleCreate(writer, request)
		})
		mux.HandleFunc(base+"/alerts/ack", handler.HandleAcknowledge)
		mux.HandleFunc(base+"/alerts/resolve", handler.HandleResolve)
		mux.HandleFunc(base+"/alerts/stats", handler.HandleStatistics)
		mux.HandleFunc(base+"/reports", handler.HandleReport)
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.API.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// buildNATSIngest starts NATS alert-input ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSIngest() error {
	if isSingleMode(s.cfg) {
		return nil
	}
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSIngest(s.cfg.Ingest.NATS, s.engine, s.logger)
	if err != nil {
		return err
	}
	s.natsIngest = subscriber
	return nil
}

func isSingleMode(cfg config.Config) bool {
	return config.NormalizeServiceMode(cfg.Service.Mode) == config.ServiceModeSingle
}
