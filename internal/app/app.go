package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"qrscanner/internal/camera"
	"qrscanner/internal/camera/cv"
	"qrscanner/internal/config"
	"qrscanner/internal/handler"
	"qrscanner/internal/logger"
	"qrscanner/internal/middleware"
	"qrscanner/internal/permission"
	"qrscanner/internal/repository"
	"qrscanner/internal/repository/sqlite"
	"qrscanner/internal/route"
	"qrscanner/internal/service/detector"
	"qrscanner/internal/service/detector/cvqr"
	"qrscanner/internal/service/display"
	"qrscanner/internal/service/scanner"
	"qrscanner/internal/service/sink"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	surface  *display.Surface
	provider *camera.Provider
	screen   *scanner.Screen
	remote   *sink.RemoteNotifier
	closers  []io.Closer
	server   *http.Server
}

// NewApp wires every service from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}

	var scanRepo repository.ScanRepository
	var recorder sink.Recorder
	if cfg.DBPath != "" {
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open scan history: %w", err)
		}
		a.db = db
		repo := sqlite.NewScanRepository(db)
		scanRepo, recorder = repo, repo
	}

	a.surface = display.NewSurface(log)

	decoder, err := a.newDecoder()
	if err != nil {
		a.Close()
		return nil, err
	}
	det := detector.New(decoder, log)

	var out sink.Sink
	switch cfg.Sink {
	case config.SinkRemote:
		a.remote = sink.NewRemoteNotifier(cfg.ServerURL, cfg.RequestTimeout, a.surface, cfg.Placeholder, recorder, log)
		out = a.remote
	case config.SinkLocal:
		out = sink.NewLocalDisplay(a.surface, cfg.Placeholder, recorder, log)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	facing := camera.Facing(cfg.Facing())
	device := cfg.DeviceFor(cfg.Facing())

	var open camera.OpenFunc
	var perm *permission.Gate
	switch cfg.Source {
	case config.SourceDevice:
		open = cv.Open
		perm = permission.NewGate(permission.DevicePath(device), cfg.CameraConsent, permission.NewTerminalPrompter(), log)
	case config.SourceUDP:
		addr := fmt.Sprintf(":%d", cfg.CamerasPort)
		open = func(sel camera.Selection) (camera.Capturer, error) {
			return camera.ListenUDP(addr, cfg.CameraNames, cv.DecodeJPEG, log)
		}
		perm = permission.NewGate("", cfg.CameraConsent, permission.NewTerminalPrompter(), log)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
	}

	a.provider = camera.NewProvider(open, cfg.MaxInFlight, log)
	a.screen = scanner.NewScreen(det, out, perm, a.provider, a.surface, scanner.Options{
		Selection: camera.Selection{
			Facing:       facing,
			Device:       device,
			Preview:      a.surface,
			PreviewEvery: cfg.PreviewInterval,
		},
		SingleScan:   cfg.Sink == config.SinkRemote,
		Cooldown:     cfg.ScanCooldown,
		ExitOnDenied: cfg.Sink == config.SinkLocal,
	}, log)

	hash, err := handler.HashPassword(cfg.Password)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.server = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: route.SetupRoutes(route.Services{
			Surface:      a.surface,
			Stats:        a.screen,
			ScanRepo:     scanRepo,
			Sessions:     middleware.NewSessions(),
			PasswordHash: hash,
			StartedAt:    time.Now(),
			Logger:       log,
		}),
	}

	return a, nil
}

func (a *App) newDecoder() (detector.Decoder, error) {
	switch a.config.Decoder {
	case "zxing":
		return detector.NewZXingDecoder(), nil
	case "gocv":
		d := cvqr.New()
		a.closers = append(a.closers, d)
		return d, nil
	}
	return nil, fmt.Errorf("unknown decoder %q", a.config.Decoder)
}

// Run starts the display surface, the scanner screen and the HTTP server, and
// blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	go a.surface.Run()
	defer a.surface.Stop()

	if err := a.screen.Enter(ctx); err != nil {
		return err
	}
	defer a.leave()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("QR scanner listening on %s (%s sink, %s)", a.server.Addr, a.config.Sink, a.config.Source)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}
	return nil
}

func (a *App) leave() {
	a.screen.Leave()
	if a.remote != nil {
		a.remote.Wait()
	}
}

// Close releases the decoder, the database and the log files.
func (a *App) Close() {
	for _, c := range a.closers {
		c.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database: %v", err)
		}
	}
	a.logger.Close()
}
