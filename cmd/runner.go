package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackx/internal/repositories"
	"github.com/desertthunder/trackx/internal/shared"
	"github.com/desertthunder/trackx/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	status     io.Writer
	transport  http.RoundTripper
	sessions   tasks.Sessions
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer         // command results
	Status     io.Writer         // progress lines, defaults to stderr
	Transport  http.RoundTripper // optional, shared by provider clients
	Sessions   tasks.Sessions    // overrides the configured providers
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
	if opts.Status == nil {
		opts.Status = os.Stderr
	}

	r := &Runner{
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		status:     opts.Status,
		transport:  opts.Transport,
		sessions:   opts.Sessions,
	}
	r.configure(opts.Config)
	return r
}

// configure swaps in cfg and rebuilds the engine around it.
func (r *Runner) configure(cfg *shared.Config) {
	r.config = cfg
	sessions := r.sessions
	if sessions == nil {
		sessions = &tasks.ProviderSessions{Config: cfg, Logger: r.logger, Transport: r.transport}
	}
	r.engine = tasks.NewEngine(cfg.Aggregate, sessions, r.logger)
}

// SetLogger replaces the logger used by the runner and its engine.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.configure(r.config)
}

// Load reads the configuration named by --config, overlays the environment and validates it.
//
// A missing file is not an error: the embedded defaults are used.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	cfg := shared.DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
			}
			cfg = loaded
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return ctx, err
	}

	level := shared.ParseLogLevel(cfg.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	r.configPath = path
	r.configure(cfg)
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, searchCommand, suggestCommand, resolveCommand, lookupCommand,
		exportCommand, historyCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openHistory opens the configured database, applies migrations and returns a recorder.
// Callers must close the returned database.
func (r *Runner) openHistory() (*repositories.Recorder, *sql.DB, error) {
	if r.config.Database.Path == "" {
		return nil, nil, fmt.Errorf("%w: database.path is not set", shared.ErrInvalidConfig)
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, nil, err
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repositories.NewRecorder(db), db, nil
}

// progressPrinter drains progress updates onto the status writer until the channel closes.
func (r *Runner) progressPrinter(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.Suggest:
				fmt.Fprintf(r.status, "💡 %s\n", update.Message)
			case tasks.Search:
				fmt.Fprintf(r.status, "   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			case tasks.Lookup:
				fmt.Fprintf(r.status, "🔍 %s\n", update.Message)
			case tasks.Complete:
				fmt.Fprintf(r.status, "✓ %s\n", update.Message)
			case tasks.Export:
				fmt.Fprintf(r.status, "📝 %s\n", update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
