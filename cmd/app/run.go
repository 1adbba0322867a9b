package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/local/djvutailor/internal/assembler"
	"github.com/local/djvutailor/internal/classify"
	"github.com/local/djvutailor/internal/command"
	cfgpkg "github.com/local/djvutailor/internal/config"
	"github.com/local/djvutailor/internal/encoder"
	logpkg "github.com/local/djvutailor/internal/logger"
	"github.com/local/djvutailor/internal/metrics"
	"github.com/local/djvutailor/internal/page"
	"github.com/local/djvutailor/internal/scheduler"
)

func run(ctx context.Context, cfg cfgpkg.Config, inputDir string) error {
	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		return err
	}
	defer logpkg.Close()

	if err := cfg.Convert.Validate(); err != nil {
		return err
	}

	info, err := os.Stat(inputDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("input directory %s does not exist", inputDir)
	}

	outputFile := flagOutput
	if outputFile == "" {
		outputFile = filepath.Join(inputDir, "output.djvu")
		log.Info().Str("output", outputFile).Msg("using default output file")
	}

	if _, err := os.Stat(outputFile); err == nil && !flagForce {
		if !confirm(fmt.Sprintf("Output file %s already exists. Do you want to continue?", outputFile)) {
			return errors.New("aborted")
		}
	}

	metrics.Init()
	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tempDir, cleanupTemp, err := prepareTempDir(cfg.Convert)
	if err != nil {
		return err
	}

	candidates, err := page.Discover(inputDir)
	if err != nil {
		return fmt.Errorf("scan input directory: %w", err)
	}
	log.Info().Int("candidates", len(candidates)).Int("workers", cfg.Convert.Workers).Msg("starting conversion")

	runner := metrics.InstrumentedRunner{Inner: command.NewExec()}
	encoders := encoder.NewSet(runner, encoder.Params{
		Resolution: cfg.Convert.Resolution,
		LossLevel:  cfg.Convert.LossLevel,
		Quality:    cfg.Convert.Quality,
	}, tempDir)

	opts := scheduler.Options{Workers: cfg.Convert.Workers, TempDir: tempDir}
	var bar *progressbar.ProgressBar
	if !logpkg.DebugEnabled() {
		// debug output would tear the bar apart
		bar = newProgressBar(len(candidates))
		opts.OnProgress = func() { _ = bar.Add(1) }
	}

	sched := scheduler.New(classify.New(inputDir), encoders, opts)
	outcome := sched.Run(ctx, candidates)
	if bar != nil {
		_ = bar.Finish()
	}

	if failures := outcome.Failures(); len(failures) > 0 {
		for _, f := range failures {
			color.Red("page %s failed: %v", f.Candidate.Name, f.Err)
		}
		if !cfg.Convert.AllowPartial {
			return fmt.Errorf("%d of %d pages failed; rerun with --allow-partial to assemble the rest", len(failures), len(outcome.Results))
		}
		color.Yellow("continuing with %d of %d pages", len(outcome.Successes()), len(outcome.Results))
	}

	asm := assembler.New(runner)
	if err := asm.Assemble(ctx, outputFile, outcome.Successes()); err != nil {
		if errors.Is(err, assembler.ErrNoPages) {
			color.Yellow("No pages found to assemble DjVu file.")
			return err
		}
		return err
	}

	cleanupTemp()
	color.Green("DjVu file '%s' created successfully!", outputFile)
	return nil
}

// prepareTempDir returns the directory page artifacts are written to and a
// cleanup func. A user-supplied directory is created if missing and never
// deleted; an auto-created one is removed after assembly unless --keep-temp.
func prepareTempDir(cfg cfgpkg.ConvertConfig) (string, func(), error) {
	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create temp dir: %w", err)
		}
		return cfg.TempDir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "djvu_temp_")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	log.Info().Str("temp_dir", dir).Msg("using temporary folder")
	if cfg.KeepTemp {
		return dir, func() {}, nil
	}
	return dir, func() {
		log.Debug().Str("temp_dir", dir).Msg("cleaning up temporary folder")
		_ = os.RemoveAll(dir)
	}, nil
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Processing pages"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
	)
}
