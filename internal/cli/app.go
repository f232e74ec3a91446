package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vipguy/Bing4/internal/config"
	"github.com/vipguy/Bing4/internal/generate"
	"github.com/vipguy/Bing4/internal/localstore"
	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/pixel"
	"github.com/vipguy/Bing4/internal/poller"
	"github.com/vipguy/Bing4/internal/session"
	"github.com/vipguy/Bing4/internal/storage"
)

// App holds the wired client stack shared by the TUI and the subcommands
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Client       *pixel.Client
	Store        *session.Store
	Pollers      *poller.Manager
	Orchestrator *generate.Orchestrator
	Prefs        *localstore.DB

	logFile *os.File

	sinkOnce  sync.Once
	minioSink *storage.MinioSink
	minioErr  error
}

// logTarget selects where the app logs
type logTarget int

const (
	logToStderr logTarget = iota
	logToFile
)

func newApp(opts *rootOptions, target logTarget, stderr io.Writer) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}

	app := &App{Config: cfg}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" || opts.debug {
		level = slog.LevelDebug
	}
	switch target {
	case logToFile:
		// The TUI owns the terminal
		path := cfg.LogPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		app.logFile = f
		app.Logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	default:
		if !opts.debug {
			level = slog.LevelWarn
		}
		app.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	}

	db, err := localstore.Open(cfg.LocalDBPath())
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Prefs = db

	app.Client = pixel.NewClient(cfg.BaseURL, pixel.WithTimeout(cfg.RequestTimeout))
	app.Store = session.NewStore()
	app.Pollers = poller.NewManager(app.Client, app.Store, poller.Options{
		Interval:   cfg.Poll.Interval,
		MaxRetries: cfg.Poll.MaxRetries,
		Logger:     app.Logger,
	})
	app.Orchestrator = generate.NewOrchestrator(app.Client, app.Store, app.Pollers, app.Logger)

	app.Logger.Debug("app ready", "base_url", cfg.BaseURL, "data_dir", cfg.DataDir)
	return app, nil
}

// Close stops every poller and releases local resources
func (a *App) Close() {
	if a.Pollers != nil {
		a.Pollers.StopAll()
	}
	if a.Prefs != nil {
		a.Prefs.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// Downloader builds a downloader for the configured storage backend. dir is
// used by the directory backend and ignored for MinIO.
func (a *App) Downloader(dir string) (*storage.Downloader, error) {
	var sink storage.Sink
	switch a.Config.Storage.Backend {
	case config.StorageMinio:
		a.sinkOnce.Do(func() {
			m := a.Config.Storage.Minio
			a.minioSink, a.minioErr = storage.NewMinioSink(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
		})
		if a.minioErr != nil {
			return nil, a.minioErr
		}
		sink = a.minioSink
	default:
		sink = storage.NewDirSink(dir)
	}
	return storage.NewDownloader(a.Client, sink, a.Prefs, a.Logger), nil
}

// Cookie returns the override when set, else the stored auth token
func (a *App) Cookie(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	s, err := a.Prefs.LoadSettings()
	if err != nil {
		return "", err
	}
	return s.AuthCookie, nil
}

// Track seeds the store with a server record so a poller can follow it
func (a *App) Track(ctx context.Context, id string) (*model.Session, error) {
	sess, err := a.Client.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.ID = id
	a.Store.InsertFront(*sess)
	return sess, nil
}

func splitStyles(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, s := range strings.Split(r, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
