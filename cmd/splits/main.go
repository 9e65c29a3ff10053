// Package main provides the CLI entrypoint for splits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/verte-zerg/splits/internal/clock"
	"github.com/verte-zerg/splits/internal/config"
	"github.com/verte-zerg/splits/internal/logging"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/splits"
	"github.com/verte-zerg/splits/internal/stats"
	"github.com/verte-zerg/splits/internal/statsui"
	"github.com/verte-zerg/splits/internal/store"
	"github.com/verte-zerg/splits/internal/tui"
)

const (
	defaultPlayers     = 1
	defaultTrendWindow = 5
	statsWidthBackup   = 80
)

var (
	configPath string
	historyArg string
	logLevel   string

	overlayRealTime   bool
	overlayPlayers    int
	overlayAscent     int
	overlayVersion    string
	overlayLevel      string
	overlayRandomized bool
	overlaySeed       int

	statsSince  string
	statsLast   int
	statsWindow int
	statsColor  bool
	statsBrowse bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "splits",
		Short:         "Speedrun split timer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runOverlayCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&historyArg, "history", "", "history file (.json, .yaml, .db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level")

	rootCmd.Flags().BoolVar(&overlayRealTime, "real-time", false, "time with the wall clock")
	rootCmd.Flags().IntVar(&overlayPlayers, "players", defaultPlayers, "player count of the run")
	rootCmd.Flags().IntVar(&overlayAscent, "ascent", 0, "ascent difficulty of the run")
	rootCmd.Flags().StringVar(&overlayVersion, "game-version", "", "game version of the run")
	rootCmd.Flags().StringVar(&overlayLevel, "level", "", "level name of the run")
	rootCmd.Flags().BoolVar(&overlayRandomized, "randomized", false, "the level was randomized")
	rootCmd.Flags().IntVar(&overlaySeed, "seed", 0, "level seed")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// loadSettings resolves the config file and applies flags the user set.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringFlag(cmd, "history", &s.HistoryPath, historyArg)
	applyStringFlag(cmd, "log-level", &s.Log.Level, logLevel)
	applyBoolFlag(cmd, "real-time", &s.Splits.RealTime, overlayRealTime)
	if err := config.Validate(s); err != nil {
		return config.Settings{}, err
	}
	return s, nil
}

func runOverlayCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := logging.New(s.Log)

	backend, err := store.OpenBackend(s.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close history")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	recs := records.New(backend, records.WithLogger(log))
	if err := recs.Load(ctx); err != nil {
		return fmt.Errorf("refusing to overwrite unreadable history %s: %w", s.HistoryPath, err)
	}

	game := clock.NewManual(0)
	sinks := tui.NewSinks()
	orch, err := splits.New(splits.Options{
		Settings: s.Splits,
		Clock:    clock.Source{WallFunc: clock.SystemWall(), GameFunc: game.Func()},
		Records:  recs,
		Sinks:    sinks.Factory,
		Log:      log,
	})
	if err != nil {
		return err
	}

	overlay := tui.NewModel(tui.Options{
		Orchestrator: orch,
		Sinks:        sinks,
		Game:         game,
		Category:     overlayCategory(),
		Log:          log,
	})
	program := tea.NewProgram(overlay, tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && gctx.Err() == nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
	if w, err := config.NewWatcher(configPath, log); err != nil {
		log.WithError(err).Info("config live reload disabled")
	} else {
		g.Go(func() error {
			return w.Run(gctx, func(reloaded config.Settings) {
				program.Send(tui.SettingsMsg{Settings: reloaded.Splits})
			})
		})
	}
	runErr := g.Wait()

	if orch.Running() {
		// Keep the splits of a run left open when quitting.
		if err := orch.Finish(context.Background(), false, 0); err != nil {
			log.WithError(err).Error("failed to save the open run")
		}
	}
	if text, state, ok := overlay.PaceLine(); ok {
		logErrf("Final pace %s (%s)\n", text, state)
	}
	return runErr
}

func overlayCategory() model.Category {
	return model.Category{
		GameVersion:      overlayVersion,
		LevelName:        overlayLevel,
		AscentDifficulty: overlayAscent,
		PlayerCount:      overlayPlayers,
		WasRandomized:    overlayRandomized,
		Seed:             overlaySeed,
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show records per category",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&statsWindow, "window", defaultTrendWindow, "moving average window for the trend line")
	cmd.Flags().BoolVar(&statsColor, "color", false, "force colour output")
	cmd.Flags().BoolVarP(&statsBrowse, "browse", "b", false, "browse history interactively")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}

	backend, err := store.OpenBackend(s.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()

	report, err := stats.BuildReport(cmd.Context(), backend, stats.Query{
		Rules: s.Splits.Categorize,
		Since: sinceTime,
		Last:  statsLast,
	})
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	width, useColor := terminalInfo()
	opts := stats.RenderOptions{
		Stages:    splits.StageNames(splits.DefaultStages()),
		Precision: s.Splits.Precision,
		Window:    statsWindow,
		Width:     width,
		Color:     useColor || statsColor,
	}
	if !statsBrowse {
		return stats.Render(cmd.OutOrStdout(), report, opts)
	}
	browser := statsui.NewModel(report, s.Splits.Categorize, opts)
	program := tea.NewProgram(browser, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func terminalInfo() (int, bool) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return statsWidthBackup, false
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return statsWidthBackup, true
	}
	return width, true
}

func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyBoolFlag(cmd *cobra.Command, name string, target *bool, value bool) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
