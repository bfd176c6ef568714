package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	store      services.ConfigStore
	library    services.LibraryService
	streaming  *services.YouTubeMusicService
	streams    services.StreamingFactory
	notifier   services.Notifier
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Store      services.ConfigStore
	Library    services.LibraryService
	Streaming  *services.YouTubeMusicService
	Streams    services.StreamingFactory
	Notifier   services.Notifier
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration. The engine
// is only built when every collaborator it needs is present; actions that
// need it check first.
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	runner := &Runner{
		config:     opts.Config,
		store:      opts.Store,
		library:    opts.Library,
		streaming:  opts.Streaming,
		streams:    opts.Streams,
		notifier:   opts.Notifier,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if opts.Streaming == nil {
		return runner
	}

	engine, err := tasks.NewEngine(tasks.EngineConfig{
		Store:           opts.Store,
		Library:         opts.Library,
		Streaming:       opts.Streaming,
		Streams:         opts.Streams,
		Notifier:        opts.Notifier,
		InfoChannel:     opts.Config.Slack.Channel(),
		MismatchChannel: opts.Config.Slack.MismatchTarget(),
		AuditChannel:    opts.Config.Slack.AuditTarget(),
		LoginURL:        fmt.Sprintf("http://%s:%d/", opts.Config.Server.Host, opts.Config.Server.Port),
		Logger:          opts.Logger,
	})
	if err == nil {
		runner.engine = engine
	}

	return runner
}

// SetLogger replaces the runner's logger, propagating it to the engine.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, daemonCommand, syncCommand, automationsCommand, resolveCommand, providerCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireEngine guards actions that drive the reconciliation engine.
func (r *Runner) requireEngine() error {
	if r.engine == nil {
		return fmt.Errorf("%w: store, library, streaming, and slack must be configured", shared.ErrMissingConfig)
	}
	return nil
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
