package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/multiverse/internal/cache"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/repositories"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/desertthunder/multiverse/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and response store are opened on first use so commands that never touch
// them (api, image, sandbox) work without a writable working directory.
type Runner struct {
	config     *shared.Config
	configPath string
	client     *services.Client
	logger     *log.Logger
	output     io.Writer

	db      *sql.DB
	store   tasks.ResponseStore
	closers []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     *services.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB             // preopened database; tests use ":memory:"
	Store      tasks.ResponseStore // overrides [store] backend selection
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Client == nil {
		opts.Client = services.NewClientFromConfig(opts.Config.API, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		store:      opts.Store,
	}
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database and any store connections opened by commands.
func (r *Runner) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, discoverCommand, rerollCommand, slotsCommand, jobCommand, creditsCommand,
		albumCommand, apiCommand, imageCommand, sandboxCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens and migrates the sqlite database once.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	r.closers = append(r.closers, db)
	return db, nil
}

func (r *Runner) settings(ctx context.Context) (*repositories.SettingsRepository, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	return repositories.NewSettingsRepository(db), nil
}

// responseStore selects the backend named by [store] backend, or memory when ephemeral.
func (r *Runner) responseStore(ctx context.Context, ephemeral bool) (tasks.ResponseStore, error) {
	if r.store != nil {
		return r.store, nil
	}

	backend := r.config.Store.Backend
	if ephemeral {
		backend = "memory"
	}

	switch backend {
	case "memory":
		r.store = repositories.NewMemoryResponseStore(r.config.Store.HistoryLimit)
	case "redis":
		store, err := repositories.OpenRedisResponseStore(ctx, r.config.Store)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, store)
		r.store = store
	case "sqlite", "":
		db, err := r.database(ctx)
		if err != nil {
			return nil, err
		}
		r.store = repositories.NewResponseRepository(db, r.config.Store.HistoryLimit)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, backend)
	}

	r.logger.Debug("response store ready", "backend", backend)
	return r.store, nil
}

// userID resolves the identity: config or env first, then the persisted one, created and
// registered with the backend on first use. Ephemeral runs get a throwaway identity.
func (r *Runner) userID(ctx context.Context, ephemeral bool) (string, error) {
	if id := r.config.User.ID; id != "" {
		if !shared.IsUUID(id) {
			return "", fmt.Errorf("%w: user.id %q is not a UUID", shared.ErrInvalidConfig, id)
		}
		return id, nil
	}

	var (
		id      string
		created bool
	)
	if ephemeral {
		id, created = shared.GenerateID(), true
	} else {
		settings, err := r.settings(ctx)
		if err != nil {
			return "", err
		}
		if id, created, err = settings.UserID(ctx); err != nil {
			return "", err
		}
	}

	if created {
		r.logger.Info("created user identity", "user_id", id)
		if err := r.client.InitUser(ctx, id); err != nil {
			r.logger.Warn("failed to register user with backend", "error", err)
		}
		r.client.LogDevice(id, fmt.Sprintf("multiverse cli %s/%s", runtime.GOOS, runtime.GOARCH))
	}
	return id, nil
}

// albumMode resolves the album mode: flag, then the stored toggle, then config.
func (r *Runner) albumMode(ctx context.Context, flag string, ephemeral bool) (models.AlbumMode, error) {
	if flag != "" {
		mode, err := models.ParseAlbumMode(flag)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		return mode, nil
	}
	if !ephemeral {
		settings, err := r.settings(ctx)
		if err != nil {
			return "", err
		}
		mode, err := settings.AlbumMode(ctx)
		if err != nil {
			return "", err
		}
		if mode != models.AlbumModeDefault {
			return mode, nil
		}
	}
	return models.ParseAlbumMode(r.config.Generation.AlbumMode)
}

// deps assembles the slot, grid and engine dependencies for one command.
func (r *Runner) deps(ctx context.Context, cmd *cli.Command) (tasks.Deps, error) {
	ephemeral := cmd.Bool("ephemeral")

	store, err := r.responseStore(ctx, ephemeral)
	if err != nil {
		return tasks.Deps{}, err
	}
	userID, err := r.userID(ctx, ephemeral)
	if err != nil {
		return tasks.Deps{}, err
	}

	return tasks.Deps{
		Store:   store,
		Cache:   cache.New(),
		Poller:  tasks.NewPoller(r.client, tasks.PollConfigFrom(r.config.Polling), r.logger),
		Jobs:    tasks.NewJobSignal(),
		UserID:  userID,
		JobWait: r.config.Polling.JobWait.Duration,
		Logger:  r.logger,
	}, nil
}

func (r *Runner) engine(deps tasks.Deps) *tasks.GenerationEngine {
	return tasks.NewGenerationEngine(r.client, deps, r.config.Generation.RerollCost)
}

// progress prints engine updates until the returned stop function is called.
func (r *Runner) progress() (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
