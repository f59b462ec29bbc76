// Package main - точка входа симулятора линий наставничества.
//
// Сценарий описывает практиков, представителей и последовательность шагов;
// программа проигрывает его и печатает стенограмму. Удалённые хранилища
// (Redis, PostgreSQL) подключаются флагами функций и не обязательны.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alem-hub/lineage/config"
	"github.com/alem-hub/lineage/internal/application/scenario"
	"github.com/alem-hub/lineage/internal/domain/ladder"
	"github.com/alem-hub/lineage/internal/interface/console"
)

// Переопределяется при сборке: -ldflags "-X main.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags - значения глобальных флагов; переопределяют окружение.
type flags struct {
	logLevel   string
	logFormat  string
	plain      bool
	strict     bool
	seed       int64
	seedPhrase string
}

func rootCmd() *cobra.Command {
	var (
		f   flags
		cfg *config.Config
	)

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Mentorship lineage and assembly simulator",
		Long: `Lineage plays scenario files: practitioners climb a rank ladder
by passing trials and graduating under mentors, and representatives
of an assembly speak and exchange attributes.

Transcripts go to stdout. Logs go to stderr.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlags(cmd, loaded, f)
			cfg = loaded
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format (json, text)")
	pf.BoolVar(&f.plain, "plain", false, "Disable terminal styling")
	pf.BoolVar(&f.strict, "strict-mentors", false, "Only Senior and above may take apprentices")

	// run / demo
	seedFlags := func(c *cobra.Command) {
		c.Flags().Int64Var(&f.seed, "seed", 0, "Fix the dice seed")
		c.Flags().StringVar(&f.seedPhrase, "seed-phrase", "", "Derive the dice seed from a phrase")
	}

	runCmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Play a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			return play(cmd, cfg, f, file)
		},
	}
	seedFlags(runCmd)

	var dump bool
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Play the built-in demonstration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dump {
				_, err := cmd.OutOrStdout().Write(scenario.DemoSource())
				return err
			}
			file, err := scenario.Demo()
			if err != nil {
				return err
			}
			return play(cmd, cfg, f, file)
		},
	}
	seedFlags(demoCmd)
	demoCmd.Flags().BoolVar(&dump, "dump", false, "Print the demonstration scenario instead of playing it")

	ladderCmd := &cobra.Command{
		Use:   "ladder [scenario.yaml]",
		Short: "Print the rank ladder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := ladder.Default()
			if len(args) == 1 {
				file, err := scenario.Load(args[0])
				if err != nil {
					return err
				}
				if l, err = file.RankLadder(); err != nil {
					return err
				}
			}
			out := console.New(cmd.OutOrStdout(), console.WithPlain(!cfg.Features.StyledOutput()))
			return out.RenderLadder(l)
		},
	}

	var from string
	replayCmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Print a stored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replay(cmd, cfg, from, args[0])
		},
	}
	replayCmd.Flags().StringVar(&from, "from", "redis", "Transcript store (redis, postgres)")

	cmd.AddCommand(runCmd, demoCmd, ladderCmd, replayCmd)

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lineage version %s (build: %s)\n", Version, BuildTime)
		},
	})

	return cmd
}

// applyFlags накладывает явно заданные флаги поверх конфигурации.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	if f.logLevel != "" {
		cfg.Observability.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Observability.LogFormat = f.logFormat
	}
	if f.plain || cfg.Simulation.Plain {
		_ = cfg.Features.DisableFeature(config.FeatureStyledOutput)
	}
	if f.strict {
		_ = cfg.Features.EnableFeature(config.FeatureStrictMentorRanks)
	}
	if flag := cmd.Flags().Lookup("seed"); flag != nil && flag.Changed {
		seed := f.seed
		cfg.Simulation.Seed = &seed
		cfg.Simulation.SeedPhrase = ""
	}
	if f.seedPhrase != "" {
		cfg.Simulation.Seed = nil
		cfg.Simulation.SeedPhrase = f.seedPhrase
	}
}

// applySeed: флаги и окружение сильнее файла; заданная в командной строке
// затравка отменяет и заготовленные броски.
func applySeed(cfg *config.Config, file *scenario.File, fromCommandLine bool) {
	switch {
	case cfg.Simulation.Seed != nil:
		seed := *cfg.Simulation.Seed
		file.Seed, file.SeedPhrase = &seed, ""
	case cfg.Simulation.SeedPhrase != "":
		file.Seed, file.SeedPhrase = nil, cfg.Simulation.SeedPhrase
	default:
		return
	}
	if fromCommandLine {
		file.Dice = nil
	}
}

func play(cmd *cobra.Command, cfg *config.Config, f flags, file *scenario.File) error {
	seedFlag := cmd.Flags().Lookup("seed")
	applySeed(cfg, file, (seedFlag != nil && seedFlag.Changed) || f.seedPhrase != "")
	if file.Chamber == "" {
		file.Chamber = cfg.Simulation.Chamber
	}

	a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()

	rep, err := a.play(cmd.Context(), file)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if rep != nil && rep.Declined() > 0 {
		a.log.Info(fmt.Sprintf("%d operation(s) declined", rep.Declined()))
	}
	return err
}
