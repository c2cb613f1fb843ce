package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/amalgan/trackman/config"
	"github.com/amalgan/trackman/constant"
	"github.com/amalgan/trackman/dedupe"
	"github.com/amalgan/trackman/downloader"
	"github.com/amalgan/trackman/history"
	"github.com/amalgan/trackman/library"
	"github.com/amalgan/trackman/log"
	"github.com/amalgan/trackman/quality"
	"github.com/amalgan/trackman/ratelimit"
	"github.com/amalgan/trackman/review"
	"github.com/amalgan/trackman/tags"
)

func main() {
	logger := log.NewDefault()

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "trackman",
		Version: constant.Version,
		Metadata: map[string]any{
			"compiled_at": constant.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "Music library downloader and curator",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		AllowExtFlags:              false,
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Config file path",
				Required: false,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:      "download",
				Usage:     "Download a track or playlist from a URL",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:  "format",
						Usage: "Audio format: auto, m4a, or mp3",
					},
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output directory (defaults to the library dir)",
					},
				},
				Action: download,
			},
			//nolint:exhaustruct
			{
				Name:   "check-duplicates",
				Usage:  "Find tracks that share artist and title",
				Action: checkDuplicates,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:  "file",
						Usage: "Check a single file against the library instead of a full scan",
					},
				},
			},
			//nolint:exhaustruct
			{
				Name:   "verify-metadata",
				Usage:  "Report tracks with missing or junk-polluted metadata",
				Action: verifyMetadata,
			},
			//nolint:exhaustruct
			{
				Name:   "check-quality",
				Usage:  "Analyze audio quality across the library",
				Action: checkQuality,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "detailed",
						Usage: "Show per-track quality details",
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Also list quality outliers",
					},
				},
			},
			//nolint:exhaustruct
			{
				Name:   "apply-metadata",
				Usage:  "Apply reviewed metadata corrections from the review CSV",
				Action: applyMetadata,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "show",
						Usage: "Show pending review entries without applying",
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would change without touching any file",
					},
				},
			},
			//nolint:exhaustruct
			{
				Name:   "rate-stats",
				Usage:  "Show API rate limiter configuration",
				Action: rateStats,
			},
			//nolint:exhaustruct
			{
				Name:   "history",
				Usage:  "List recorded downloads, most recent first",
				Action: showHistory,
			},
			//nolint:exhaustruct
			{
				Name:   "init",
				Usage:  "Write a starter config.yaml in the current directory",
				Action: initConfig,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func setup(cmd *cli.Command) (zerolog.Logger, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Debug().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.String("config"))
	if nil != err {
		return logger, nil, fmt.Errorf("load config: %v", err)
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	return logger, conf, nil
}

func download(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := cmd.Args().First()
	if url == "" {
		return errors.New("a URL argument is required")
	}

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	d, err := downloader.New(logger, conf, ratelimit.NewSet(), cmd.String("output"), downloader.SurveyConfirm)
	if nil != err {
		return fmt.Errorf("create downloader: %v", err)
	}
	defer func() {
		if err := d.Close(); nil != err {
			logger.Error().Err(err).Msg("close downloader")
		}
	}()

	if err := d.Download(ctx, url, cmd.String("format")); nil != err {
		return fmt.Errorf("download %s: %w", url, err)
	}

	return nil
}

func checkDuplicates(ctx context.Context, cmd *cli.Command) error {
	_, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	reader := tags.NewReader()

	if file := cmd.String("file"); file != "" {
		return checkFileDuplicates(logger, conf, reader, file)
	}

	groups, err := library.FindDuplicates(reader, conf.Library.Dir)
	if nil != err {
		return fmt.Errorf("scan library for duplicates: %w", err)
	}

	library.RenderDuplicates(os.Stdout, groups)
	if len(groups) > 0 {
		return exitCodeError(1)
	}

	return nil
}

func checkFileDuplicates(
	logger zerolog.Logger,
	conf *config.Config,
	reader tags.Reader,
	file string,
) error {
	policy, err := dedupe.ParsePolicy(conf.Duplicates.Handling)
	if nil != err {
		return err
	}

	resolver := dedupe.NewResolver(
		logger,
		reader,
		dedupe.OSRemover{},
		conf.Library.Dir,
		policy,
		&dedupe.ConsoleDecider{In: os.Stdin, Out: os.Stdout},
	)

	skip, err := resolver.Resolve(file)
	if nil != err {
		return fmt.Errorf("resolve duplicates of %s: %w", file, err)
	}
	if skip {
		logger.Info().Str("file", file).Msg("File is a duplicate of an existing track")
		return exitCodeError(1)
	}

	logger.Info().Str("file", file).Msg("No duplicates found")

	return nil
}

func verifyMetadata(ctx context.Context, cmd *cli.Command) error {
	_, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	report, err := library.Verify(tags.NewReader(), conf.Library.Dir)
	if nil != err {
		return fmt.Errorf("verify library metadata: %w", err)
	}

	library.RenderReport(os.Stdout, report)
	if !report.Clean() {
		return exitCodeError(1)
	}

	return nil
}

func checkQuality(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	analyzer := quality.NewAnalyzer(quality.FFProbe{}, tags.NewReader())
	infos, err := analyzer.AnalyzeLibrary(ctx, conf.Library.Dir)
	if nil != err {
		return fmt.Errorf("analyze library quality: %w", err)
	}

	if cmd.Bool("detailed") {
		quality.RenderDetailed(os.Stdout, infos)
	} else {
		quality.RenderSummary(os.Stdout, quality.Summarize(infos))
	}

	if upsampled := quality.Upsampled(infos); len(upsampled) > 0 {
		fmt.Fprintln(os.Stdout)
		quality.RenderUpsampled(os.Stdout, upsampled)
	}

	if cmd.Bool("verbose") {
		lowest, highest := quality.Outliers(infos, 5)
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, "Lowest quality:")
		quality.RenderDetailed(os.Stdout, lowest)
		fmt.Fprintln(os.Stdout, "Highest quality:")
		quality.RenderDetailed(os.Stdout, highest)
	}

	return nil
}

func applyMetadata(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	queue := review.NewQueue(logger, tags.NewReader(), conf.Library.ReviewCSV)

	if cmd.Bool("show") {
		entries, err := queue.Pending()
		if nil != err {
			return fmt.Errorf("load review queue: %w", err)
		}

		review.RenderPending(os.Stdout, entries)

		return nil
	}

	result, err := queue.Apply(ctx, cmd.Bool("dry-run"))
	if nil != err {
		return fmt.Errorf("apply review corrections: %w", err)
	}

	logger.
		Info().
		Int("processed", result.Processed).
		Int("remaining", result.Remaining).
		Int("errors", result.Errors).
		Msg("Review queue processed")

	if result.Errors > 0 {
		return exitCodeError(1)
	}

	return nil
}

func rateStats(ctx context.Context, cmd *cli.Command) error {
	_, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, _, err := setup(cmd); nil != err {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Service", "Rate (req/s)", "Burst", "Tokens Available", "Calls (last minute)"})
	for _, svc := range ratelimit.NewSet().All() {
		stats := svc.Limiter.Stats()
		t.AppendRow(table.Row{
			svc.Name,
			fmt.Sprintf("%.2f", stats.Rate),
			stats.Burst,
			stats.TokensAvailable,
			stats.CallsLastMinute,
		})
	}
	t.Render()

	return nil
}

func showHistory(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	hist, err := history.NewStore(conf.Library.HistoryPath)
	if nil != err {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() {
		if err := hist.Close(); nil != err {
			logger.Error().Err(err).Msg("close history store")
		}
	}()

	entries, err := hist.All(ctx)
	if nil != err {
		return fmt.Errorf("list download history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "No downloads recorded yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Downloaded At", "Source", "URL", "Path"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.DownloadedAt.Local().Format("2006-01-02 15:04"),
			entry.Source,
			entry.URL,
			entry.Path,
		})
	}
	t.Render()

	return nil
}

const starterConfig = `library:
  dir: ./library
  failed_log: failed-downloads.txt
  review_csv: tracks-metadata-review.csv
  history_path: history.db

log:
  level: info
  format: auto

duplicates:
  # interactive, skip, or keep
  handling: interactive

downloads:
  # auto, m4a, or mp3
  default_format: auto
  playlist_confirmation_threshold: 50

dab:
  endpoint: https://dabmusic.xyz
  # Credentials come from the DAB_EMAIL and DAB_PASSWORD environment
  # variables, or a .env file next to this config.

network:
  # socks5_proxy: 127.0.0.1:1080
`

func initConfig(ctx context.Context, cmd *cli.Command) error {
	_, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.NewDefault()

	path := cmd.String("config")
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); nil == err {
		logger.Error().Str("path", path).Msg("Config file already exists, refusing to overwrite")
		return exitCodeError(1)
	}

	if err := os.WriteFile(path, []byte(starterConfig), 0o644); nil != err {
		return fmt.Errorf("write starter config: %v", err)
	}

	logger.Info().Str("path", path).Msg("Starter config written")

	return nil
}
