package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/basel-ax/tripo/internal/config"
	"github.com/basel-ax/tripo/internal/domain"
	"github.com/basel-ax/tripo/internal/infrastructure/logging"
	"github.com/basel-ax/tripo/internal/infrastructure/tripo"
	"github.com/basel-ax/tripo/internal/progress"
	"github.com/basel-ax/tripo/internal/prompt"
	"github.com/basel-ax/tripo/internal/repository"
	"github.com/basel-ax/tripo/internal/service"
)

type flags struct {
	input        string
	output       string
	pollInterval time.Duration
	maxAttempts  int
	verbose      bool
	noProgress   bool
	animated     bool
}

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	prompter *prompt.Prompter
	client   *tripo.Client
	journal  domain.TaskJournal
	closeDB  func()
	runID    string
	out      io.Writer
	flags    *flags
}

// newRootCommand builds the command tree. Questions are asked through prompter.
func newRootCommand(prompter *prompt.Prompter, out, errOut io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "tripo",
		Short: "Turn an image into a 3D model with the Tripo API",
		Long: `Pick an image from the input folder, choose generation options, wait for the
model to be generated (and optionally animated) and download the results into
a timestamped folder below the output folder.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, f, prompter, out, errOut)
			if err != nil {
				return err
			}
			defer a.closeDB()
			return a.generate(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.input, "input", "", "folder with source images (default from TRIPO_INPUT_DIR or \"input\")")
	pf.StringVar(&f.output, "output", "", "root folder for downloaded artifacts (default from TRIPO_OUTPUT_DIR or \"output\")")
	pf.DurationVar(&f.pollInterval, "poll-interval", 0, "delay between task status checks")
	pf.IntVar(&f.maxAttempts, "max-attempts", 0, "maximum number of task status checks")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&f.noProgress, "no-progress", false, "log progress instead of drawing progress bars")

	status := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the status and output of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f, prompter, out, errOut)
			if err != nil {
				return err
			}
			defer a.closeDB()
			return a.status(cmd.Context(), args[0])
		},
	}

	download := &cobra.Command{
		Use:   "download <task-id>",
		Short: "Download the artifacts of a finished task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f, prompter, out, errOut)
			if err != nil {
				return err
			}
			defer a.closeDB()
			return a.download(cmd.Context(), args[0])
		},
	}
	download.Flags().BoolVar(&f.animated, "animated", false, "fetch the animated model and video even when the task does not report itself as an animation")

	root.AddCommand(status, download)
	return root
}

func newApp(cmd *cobra.Command, f *flags, prompter *prompt.Prompter, out, errOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	fs := cmd.Flags()
	if fs.Changed("input") {
		cfg.InputDir = f.input
	}
	if fs.Changed("output") {
		cfg.OutputDir = f.output
	}
	if fs.Changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	if fs.Changed("max-attempts") {
		cfg.MaxAttempts = f.maxAttempts
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if f.verbose {
		level = "debug"
	}
	runID := uuid.NewString()
	logger := logging.New(errOut, level, true).With().Str("run_id", runID).Logger()

	a := &app{
		cfg:      cfg,
		logger:   logger,
		prompter: prompter,
		runID:    runID,
		out:      out,
		flags:    f,
	}

	if err := a.ensureAPIKey(cmd.Context()); err != nil {
		return nil, err
	}

	a.client = tripo.NewClient(tripo.Options{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		Timeout:         cfg.RequestTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	})
	a.journal, a.closeDB = openJournal(cmd.Context(), cfg.Journal, logger)

	return a, nil
}

// ensureAPIKey prompts for a missing key and optionally stores it in the env file
func (a *app) ensureAPIKey(ctx context.Context) error {
	if a.cfg.RequireAPIKey() == nil {
		return nil
	}

	key, save, err := a.prompter.AskAPIKey(ctx)
	if err != nil {
		return err
	}
	a.cfg.APIKey = key

	if save {
		if err := config.SaveAPIKey(config.EnvFile, key); err != nil {
			a.logger.Warn().Err(err).Msg("could not save API key")
		} else {
			a.logger.Info().Str("file", config.EnvFile).Msg("API key saved")
		}
	}
	return nil
}

// openJournal connects the task journal. Without a DSN, or when the database
// is unreachable, tasks are not journaled.
func openJournal(ctx context.Context, cfg config.JournalConfig, logger zerolog.Logger) (domain.TaskJournal, func()) {
	nop := func() {}
	if cfg.DSN == "" {
		return repository.NopTaskJournal{}, nop
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		logger.Warn().Err(err).Msg("task journal disabled")
		return repository.NopTaskJournal{}, nop
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	journal := repository.NewPostgresTaskJournal(db)
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("task journal disabled")
		db.Close()
		return repository.NopTaskJournal{}, nop
	}
	if err := journal.EnsureSchema(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("task journal disabled")
		db.Close()
		return repository.NopTaskJournal{}, nop
	}

	logger.Debug().Msg("task journal connected")
	return journal, func() { db.Close() }
}

// reporters returns the progress reporter for polling (nil means plain
// logging) and the one for downloads.
func (a *app) reporters() (progress.Reporter, progress.Reporter) {
	if a.flags.noProgress {
		return nil, progress.NewLog(a.logger)
	}
	return progress.NewConsole(a.out, false), progress.NewConsole(a.out, true)
}

func (a *app) downloader(reporter progress.Reporter) *service.Downloader {
	return service.NewDownloader(a.client, a.cfg.OutputDir, reporter, a.logger)
}

func (a *app) generate(ctx context.Context) error {
	imagePath, err := a.prompter.SelectImage(ctx, a.cfg.InputDir)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(a.out, "Selected image: %s\n", imagePath)

	opts, err := a.prompter.CollectOptions(ctx)
	if err != nil {
		return err
	}

	pollReporter, downloadReporter := a.reporters()
	pipeline := service.NewPipeline(service.PipelineConfig{
		Models:     service.NewModelService(a.client, a.logger),
		Poller:     service.NewPoller(a.client, a.cfg.PollInterval, a.cfg.MaxAttempts, a.logger),
		Downloader: a.downloader(downloadReporter),
		Journal:    a.journal,
		Reporter:   pollReporter,
		RunID:      a.runID,
		Logger:     a.logger,
	})

	res, err := pipeline.Run(ctx, imagePath, opts)
	if err != nil {
		return err
	}
	a.printResult(res)
	return nil
}

func (a *app) status(ctx context.Context, taskID string) error {
	task, err := a.client.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Task:     %s\nKind:     %s\nStatus:   %s\nProgress: %d%%\n",
		task.ID, task.Kind, task.Status, task.Progress)
	if task.Output == nil {
		fmt.Fprintln(a.out, "Output:   none")
		return nil
	}
	for _, field := range []struct{ name, url string }{
		{"model", task.Output.Model},
		{"pbr_model", task.Output.PBRModel},
		{"rendered_video", task.Output.RenderedVideo},
		{"rendered_image", task.Output.RenderedImage},
	} {
		if field.url != "" {
			fmt.Fprintf(a.out, "  %-15s %s\n", field.name, field.url)
		}
	}
	return nil
}

func (a *app) download(ctx context.Context, taskID string) error {
	_, reporter := a.reporters()
	res, err := a.downloader(reporter).Download(ctx, taskID, a.flags.animated)
	if err != nil {
		return err
	}
	if res.Dir != "" {
		if err := a.journal.UpdateOutputDir(ctx, taskID, res.Dir); err != nil {
			a.logger.Warn().Err(err).Str("task_id", taskID).Msg("journal output update failed")
		}
	}
	a.printResult(res)
	return nil
}

func (a *app) printResult(res *domain.DownloadResult) {
	if len(res.Files) == 0 {
		color.New(color.FgYellow).Fprintln(a.out, "No artifacts were downloaded.")
		return
	}
	color.New(color.FgGreen).Fprintf(a.out, "Downloaded %d file(s) to %s\n", len(res.Files), res.Dir)
	for _, f := range res.Files {
		fmt.Fprintf(a.out, "  %s\n", f)
	}
	if len(res.Skipped) > 0 {
		color.New(color.FgYellow).Fprintf(a.out, "Not downloaded: %v\n", res.Skipped)
	}
}
