// Package main provides the CLI entrypoint for rollmetrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/config"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/framelog"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/generator"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/kpi"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/logging"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/report"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/session"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/statsui"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/store"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/tui"
)

const (
	defaultUser            = "local"
	defaultModelComplexity = 1
	defaultFPS             = 30.0
	defaultDuration        = 2 * time.Minute
	defaultLogLevel        = "info"
	defaultShowWidth       = 100
)

var (
	liveUser            string
	liveModelComplexity int
	liveMirror          bool
	liveFPS             float64
	liveDuration        time.Duration
	liveFrames          string
	liveSeed            int64

	dbPath   string
	logLevel string

	reportFrames string
	reportSave   bool

	eventsFile  string
	eventsStart int64
	eventsEnd   int64

	showJSON bool

	statsUser    string
	statsSince   string
	statsLast    int
	statsHideLow bool

	generateOut      string
	generateDuration time.Duration
	generateFPS      float64
	generateSeed     int64
	generateMode     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rollmetrics",
		Short:         "Pose-based training session metrics",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runLiveCmd,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (trace, debug, info, warn, error)")

	rootCmd.Flags().StringVar(&liveUser, "user", defaultUser, "user id recorded on sessions")
	rootCmd.Flags().IntVar(&liveModelComplexity, "model-complexity", defaultModelComplexity, "pose model complexity (0-2)")
	rootCmd.Flags().BoolVar(&liveMirror, "mirror", false, "camera feed is mirrored")
	rootCmd.Flags().Float64Var(&liveFPS, "fps", defaultFPS, "frame rate of the synthetic stream")
	rootCmd.Flags().DurationVar(&liveDuration, "duration", defaultDuration, "length of the synthetic stream")
	rootCmd.Flags().StringVar(&liveFrames, "frames", "", "replay a recorded frame log instead of the synthetic stream")
	rootCmd.Flags().Int64Var(&liveSeed, "seed", 0, "seed for the synthetic stream (0 = random)")

	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newGenerateCmd())

	return rootCmd
}

func runLiveCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "user", &liveUser, fileCfg.Session.User)
	applyIntConfig(cmd, "model-complexity", &liveModelComplexity, fileCfg.Session.ModelComplexity)
	applyBoolConfig(cmd, "mirror", &liveMirror, fileCfg.Session.Mirror)
	applyFloatConfig(cmd, "fps", &liveFPS, fileCfg.Live.FPS)
	applyInt64Config(cmd, "seed", &liveSeed, fileCfg.Live.Seed)
	if err := applyDurationConfig(cmd, "duration", &liveDuration, fileCfg.Live.Duration); err != nil {
		return err
	}

	cfg := model.Config{
		UserID:          liveUser,
		ModelComplexity: liveModelComplexity,
		MirrorUsed:      liveMirror,
		FPS:             liveFPS,
		Duration:        liveDuration,
		FramesPath:      liveFrames,
		Seed:            liveSeed,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	// The alt screen owns the terminal, so logs only go to the file.
	logFile := config.DefaultLogPath()
	if fileCfg.Log.File != nil {
		logFile = *fileCfg.Log.File
	}
	closer := logging.Setup(logging.SetupParams{
		FileName: logFile,
		Level:    logLevel,
		JSON:     fileCfg.Log.JSON != nil && *fileCfg.Log.JSON,
		Console:  io.Discard,
	})
	defer closeLog(closer)

	frames, err := loadLiveFrames(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	ctx := context.Background()
	history, err := st.RecentRecords(ctx, cfg.UserID, session.TrendWindow)
	if err != nil {
		logrus.WithError(err).Warn("failed to load recent sessions")
		history = nil
	}
	var lastScore *float64
	if len(history) > 0 && history[0].Report != nil {
		lastScore = history[0].Report.Summary.OverallSessionScorecard
	}

	log := logrus.WithField("component", "session")
	mgr := session.NewManager(session.ManagerOptions{
		Persister: st,
		Logger:    log,
		History:   history,
	})
	view := tui.NewModel(tui.Options{
		Config:    cfg,
		Manager:   mgr,
		Frames:    frames,
		LastScore: lastScore,
		Logger:    log,
	})
	program := tea.NewProgram(view, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	if err := view.Err(); err != nil {
		return err
	}
	if rec := view.Final(); rec != nil {
		score := "-"
		if rec.Report != nil && rec.Report.Summary.OverallSessionScorecard != nil {
			score = fmt.Sprintf("%.1f", *rec.Report.Summary.OverallSessionScorecard)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved session %s (scorecard %s)\n", rec.SessionID, score); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func loadLiveFrames(cfg model.Config) ([]framelog.Frame, error) {
	if cfg.FramesPath != "" {
		frames, err := framelog.LoadFrames(cfg.FramesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load frames: %w", err)
		}
		return frames, nil
	}
	gen := generator.New(generator.DefaultProfile)
	if cfg.Seed != 0 {
		gen = generator.NewSeeded(generator.DefaultProfile, cfg.Seed)
	}
	return gen.Generate(cfg.Duration.Milliseconds(), cfg.FPS), nil
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Replay a frame log headlessly and print the session report",
		Args:  cobra.NoArgs,
		RunE:  runReportCmd,
	}
	cmd.Flags().StringVar(&reportFrames, "frames", "", "frame log (JSON Lines)")
	cmd.Flags().BoolVar(&reportSave, "save", false, "store the finalized session")
	cmd.Flags().StringVar(&liveUser, "user", defaultUser, "user id recorded on the session")
	cmd.Flags().IntVar(&liveModelComplexity, "model-complexity", defaultModelComplexity, "pose model complexity (0-2)")
	cmd.Flags().BoolVar(&liveMirror, "mirror", false, "camera feed is mirrored")
	_ = cmd.MarkFlagRequired("frames")
	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "user", &liveUser, fileCfg.Session.User)
	applyIntConfig(cmd, "model-complexity", &liveModelComplexity, fileCfg.Session.ModelComplexity)
	applyBoolConfig(cmd, "mirror", &liveMirror, fileCfg.Session.Mirror)
	closer := setupConsoleLogging(fileCfg)
	defer closeLog(closer)

	frames, err := framelog.LoadFrames(reportFrames)
	if err != nil {
		return fmt.Errorf("failed to load frames: %w", err)
	}

	opts := session.ManagerOptions{Logger: logrus.WithField("component", "session")}
	if reportSave {
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer closeStore(st)
		history, err := st.RecentRecords(cmd.Context(), liveUser, session.TrendWindow)
		if err != nil {
			return fmt.Errorf("failed to load recent sessions: %w", err)
		}
		opts.Persister = st
		opts.History = history
	}

	rec, err := replay(cmd.Context(), opts, model.Config{
		UserID:          liveUser,
		ModelComplexity: liveModelComplexity,
		MirrorUsed:      liveMirror,
	}, frames, time.Now())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), rec.Report)
}

// replay feeds frames through a fresh manager whose clock follows the frame
// offsets from start.
func replay(ctx context.Context, opts session.ManagerOptions, cfg model.Config, frames []framelog.Frame, start time.Time) (*model.SessionRecord, error) {
	now := start
	opts.Clock = func() time.Time { return now }
	mgr := session.NewManager(opts)
	if _, err := mgr.Start(cfg.UserID, cfg.ModelComplexity, cfg.MirrorUsed); err != nil {
		return nil, err
	}
	for _, f := range frames {
		now = start.Add(time.Duration(f.T) * time.Millisecond)
		if f.Interrupt {
			mgr.Interrupt()
			continue
		}
		if err := mgr.UpdateFrame(f.FrameUpdatePayload); err != nil {
			return nil, fmt.Errorf("frame at %dms: %w", f.T, err)
		}
	}
	rec, err := mgr.End(ctx)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Build a session report from a classifier event log",
		Args:  cobra.NoArgs,
		RunE:  runEventsCmd,
	}
	cmd.Flags().StringVar(&eventsFile, "file", "", "event log (JSON Lines)")
	cmd.Flags().Int64Var(&eventsStart, "start", 0, "session start in epoch ms (default: first event)")
	cmd.Flags().Int64Var(&eventsEnd, "end", 0, "session end in epoch ms (default: last event)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {
	events, err := framelog.LoadEvents(eventsFile)
	if err != nil {
		if framelog.IsInvalidEvent(err) {
			return fmt.Errorf("rejected event log: %w", err)
		}
		return fmt.Errorf("failed to load events: %w", err)
	}
	start, end := eventWindow(events, eventsStart, eventsEnd)
	if end < start {
		return fmt.Errorf("--end must not be before --start")
	}
	logrus.WithFields(logrus.Fields{
		"events":  len(events),
		"variety": kpi.TechnicalVariety(events),
		"start":   start,
		"end":     end,
	}).Info("building report from events")
	return writeJSON(cmd.OutOrStdout(), report.BuildReportFromEvents(events, start, end))
}

// eventWindow fills unset bounds from the first and last event timestamps.
func eventWindow(events []model.RawEvent, start, end int64) (int64, int64) {
	if len(events) == 0 {
		return start, end
	}
	if start == 0 {
		start = events[0].Ts
		for _, ev := range events {
			if ev.Ts < start {
				start = ev.Ts
			}
		}
	}
	if end == 0 {
		for _, ev := range events {
			if ev.Ts > end {
				end = ev.Ts
			}
		}
	}
	return start, end
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a stored session",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().BoolVar(&showJSON, "json", false, "print the stored record as JSON")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	rec, err := st.GetSession(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no stored session with id %q", args[0])
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if showJSON {
		return writeJSON(cmd.OutOrStdout(), rec)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), statsui.RenderSessionDetail(rec, terminalWidth())); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultShowWidth
	}
	return width
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse stored sessions",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsUser, "user", "", "user filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().BoolVar(&statsHideLow, "hide-low", false, "hide short and low quality sessions")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	sinceTime, err := parseSince(statsSince)
	if err != nil {
		return err
	}
	cfg := model.StatsConfig{
		UserID:         statsUser,
		Since:          sinceTime,
		Last:           statsLast,
		HideLowQuality: statsHideLow,
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	view := statsui.NewModel(st, cfg)
	program := tea.NewProgram(view, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
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
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
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

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic frame log",
		Args:  cobra.NoArgs,
		RunE:  runGenerateCmd,
	}
	cmd.Flags().StringVar(&generateOut, "out", "-", "output path (- for stdout)")
	cmd.Flags().DurationVar(&generateDuration, "duration", defaultDuration, "length of the stream")
	cmd.Flags().Float64Var(&generateFPS, "fps", defaultFPS, "frame rate")
	cmd.Flags().Int64Var(&generateSeed, "seed", 0, "seed (0 = random)")
	cmd.Flags().StringVar(&generateMode, "mode", generator.DefaultProfile.RepMode, "rep mode label")
	return cmd
}

func runGenerateCmd(cmd *cobra.Command, _ []string) error {
	if generateDuration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if generateFPS <= 0 {
		return fmt.Errorf("--fps must be > 0")
	}
	profile := generator.DefaultProfile
	profile.RepMode = generateMode
	gen := generator.New(profile)
	if generateSeed != 0 {
		gen = generator.NewSeeded(profile, generateSeed)
	}
	frames := gen.Generate(generateDuration.Milliseconds(), generateFPS)

	if generateOut == "-" {
		return framelog.WriteFrames(cmd.OutOrStdout(), frames)
	}
	if err := os.MkdirAll(filepath.Dir(generateOut), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(generateOut)
	if err != nil {
		return fmt.Errorf("failed to create frame log: %w", err)
	}
	if err := framelog.WriteFrames(file, frames); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write frame log: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close frame log: %w", err)
	}
	logErrf("Wrote %d frames to %s\n", len(frames), generateOut)
	return nil
}

func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Store.Path)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	return fileCfg, nil
}

func setupConsoleLogging(fileCfg config.FileConfig) io.Closer {
	params := logging.SetupParams{
		Level:   logLevel,
		JSON:    fileCfg.Log.JSON != nil && *fileCfg.Log.JSON,
		Console: os.Stderr,
	}
	if fileCfg.Log.File != nil {
		params.FileName = *fileCfg.Log.File
	}
	return logging.Setup(params)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	parsed, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("invalid %s in config: %w", name, err)
	}
	*target = parsed
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# rollmetrics configuration
# Uncomment a value to enable it. CLI flags override config values.

[session]
# user = %q               # User id recorded on sessions
# model-complexity = %d    # Pose model complexity (0-2)
# mirror = false           # Camera feed is mirrored

[live]
# fps = %.0f                # Frame rate of the synthetic stream
# duration = %q          # Length of the synthetic stream
# seed = 0                 # Seed for the synthetic stream (0 = random)

[store]
# path = %q

[log]
# level = %q
# file = %q
# json = false
`,
		defaultUser,
		defaultModelComplexity,
		defaultFPS,
		defaultDuration.String(),
		config.DefaultDBPath(),
		defaultLogLevel,
		config.DefaultLogPath(),
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.ModelComplexity < 0 || cfg.ModelComplexity > 2 {
		return fmt.Errorf("--model-complexity must be 0, 1 or 2")
	}
	if cfg.FramesPath != "" {
		return nil
	}
	if cfg.FPS <= 0 {
		return fmt.Errorf("--fps must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	return nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func closeLog(closer io.Closer) {
	if cerr := closer.Close(); cerr != nil {
		// Best-effort log file close.
		_ = cerr
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
