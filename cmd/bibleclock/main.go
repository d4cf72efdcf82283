// Package main provides the CLI entrypoint for bibleclock.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/bibleclock/internal/bible"
	"github.com/verte-zerg/bibleclock/internal/clock"
	"github.com/verte-zerg/bibleclock/internal/config"
	"github.com/verte-zerg/bibleclock/internal/display"
	"github.com/verte-zerg/bibleclock/internal/mode"
	"github.com/verte-zerg/bibleclock/internal/model"
	"github.com/verte-zerg/bibleclock/internal/render"
	"github.com/verte-zerg/bibleclock/internal/settings"
	"github.com/verte-zerg/bibleclock/internal/stats"
	"github.com/verte-zerg/bibleclock/internal/statsui"
	"github.com/verte-zerg/bibleclock/internal/store"
	"github.com/verte-zerg/bibleclock/internal/telemetry"
	"github.com/verte-zerg/bibleclock/internal/verse"
	"github.com/verte-zerg/bibleclock/internal/voice"
	"github.com/verte-zerg/bibleclock/internal/web"
)

const (
	defaultAddr         = ":5000"
	defaultDriver       = driverFile
	defaultAPITimeout   = 10
	defaultShutdownWait = 5 * time.Second
	defaultStatsDays    = 30
	defaultTopBooks     = 10
	defaultCurveWindow  = 7
	defaultPlotHeight   = 10

	driverFile      = "file"
	driverWaveshare = "waveshare"

	restartExitCode = 3
)

var errRestart = errors.New("restart requested")

var (
	serveAddr       string
	displayDriver   string
	displayOutput   string
	displayWidth    int
	displayHeight   int
	dataDir         string
	bibleAPIURL     string
	bibleAPITimeout int
	voiceCommand    string
	contentPath     string

	statsSince string
	statsDays  int
	statsTop   int
	statsPlain bool

	previewMode   string
	previewAt     string
	previewOutput string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errRestart) {
			os.Exit(restartExitCode)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bibleclock",
		Short:         "E-ink Bible verse clock",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "directory for the database and translations")
	rootCmd.PersistentFlags().StringVar(&contentPath, "content", config.DefaultContentPath(), "YAML content file (calendar, devotionals, summaries)")
	rootCmd.PersistentFlags().StringVar(&bibleAPIURL, "api-url", bible.DefaultAPIURL, "verse lookup API base URL")
	rootCmd.PersistentFlags().IntVar(&bibleAPITimeout, "api-timeout", defaultAPITimeout, "verse lookup timeout in seconds")

	rootCmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "web API listen address")
	rootCmd.Flags().StringVar(&displayDriver, "display", defaultDriver, "display driver (file or waveshare)")
	rootCmd.Flags().StringVar(&displayOutput, "output", "", "PNG path for the file display (default: <data-dir>/display.png)")
	rootCmd.Flags().IntVar(&displayWidth, "width", render.DefaultWidth, "file display width in pixels")
	rootCmd.Flags().IntVar(&displayHeight, "height", render.DefaultHeight, "file display height in pixels")
	rootCmd.Flags().StringVar(&voiceCommand, "voice-cmd", "", "voice sidecar command (empty disables voice)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newTranslationsCmd())

	return rootCmd
}

// loadFileConfig overlays the TOML config onto flags the user did not set.
func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "data-dir", &dataDir, fileCfg.Data.Dir)
	applyStringConfig(cmd, "content", &contentPath, fileCfg.Content.Path)
	applyStringConfig(cmd, "api-url", &bibleAPIURL, fileCfg.Bible.APIURL)
	applyIntConfig(cmd, "api-timeout", &bibleAPITimeout, fileCfg.Bible.TimeoutSeconds)
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	applyStringConfig(cmd, "display", &displayDriver, fileCfg.Display.Driver)
	applyStringConfig(cmd, "output", &displayOutput, fileCfg.Display.Output)
	applyIntConfig(cmd, "width", &displayWidth, fileCfg.Display.Width)
	applyIntConfig(cmd, "height", &displayHeight, fileCfg.Display.Height)
	applyStringConfig(cmd, "voice-cmd", &voiceCommand, fileCfg.Voice.Command)
	return fileCfg, nil
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateServeFlags(); err != nil {
		return err
	}
	defaults, err := defaultSettings(fileCfg.Defaults)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	settingsStore, err := settings.Load(ctx, st, defaults)
	if err != nil {
		return err
	}
	runtime := stats.NewRuntime(time.Now())
	runtime.Track("System started", fmt.Sprintf("Display mode %s, translation %s", settingsStore.Get().DisplayMode, settingsStore.Get().Translation))

	selector, library, err := newSelector(st)
	if err != nil {
		return err
	}
	logErrf("translations: %s\n", library.Dir())

	panel, err := openPanel()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := panel.Close(); cerr != nil {
			logErrf("failed to close display: %v\n", cerr)
		}
	}()
	bounds := panel.Bounds()
	renderer, err := render.New(bounds.Dx(), bounds.Dy())
	if err != nil {
		return err
	}

	refresh := clock.NewSignal()
	var (
		sidecar     *voice.Sidecar
		voiceSource stats.VoiceSource
		webVoice    web.Voice
	)
	opts := []mode.Option{mode.WithActivity(runtime)}
	if strings.TrimSpace(voiceCommand) != "" {
		sidecar = voice.New(voiceCommand)
		sidecar.OnEvent = func(ev voice.Event) {
			runtime.Track("Voice "+ev.Event, ev.Text)
		}
		if err := sidecar.SetWakeWord(ctx, settingsStore.Get().WakeWordEnabled); err != nil {
			logErrf("voice: %v\n", err)
		}
		voiceSource, webVoice = sidecar, sidecar
		opts = append(opts, mode.WithVoice(sidecar))
	}
	controller := mode.New(settingsStore, refresh, opts...)

	loop := clock.New(clock.Config{
		Settings: controller,
		Selector: selector,
		Renderer: renderer,
		Panel:    panel,
		Recorder: runtime,
		History:  st,
		Signal:   refresh,
	})

	aggregator := &stats.Aggregator{
		Settings:  settingsStore,
		Runtime:   runtime,
		Telemetry: telemetry.New(),
		Voice:     voiceSource,
		History:   st,
	}

	restartCtx, requestRestart := context.WithCancel(ctx)
	defer requestRestart()
	server, err := web.NewServer(serveAddr, web.Config{
		Controller: controller,
		Status:     aggregator,
		Activity:   runtime,
		Display:    loop,
		Voice:      webVoice,
		Cache:      st,
		Restart:    requestRestart,
	})
	if err != nil {
		return err
	}
	logErrf("listening on %s\n", server.Addr())

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(restartCtx)
	}()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve()
	}()

	var serveErr error
	select {
	case <-restartCtx.Done():
	case serveErr = <-serveDone:
		requestRestart()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownWait)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logErrf("failed to shut down web server: %v\n", err)
	}
	if sidecar != nil {
		if err := sidecar.Stop(shutdownCtx); err != nil {
			logErrf("failed to stop voice: %v\n", err)
		}
	}
	if err := <-loopDone; err != nil {
		logErrf("clock loop: %v\n", err)
	}
	if serveErr != nil {
		return fmt.Errorf("web server: %w", serveErr)
	}
	if ctx.Err() == nil {
		logErrln("restart requested; exiting")
		return errRestart
	}
	return nil
}

func validateServeFlags() error {
	if displayDriver != driverFile && displayDriver != driverWaveshare {
		return fmt.Errorf("--display must be %q or %q", driverFile, driverWaveshare)
	}
	if displayWidth <= 0 || displayHeight <= 0 {
		return fmt.Errorf("--width and --height must be > 0")
	}
	if bibleAPITimeout <= 0 {
		return fmt.Errorf("--api-timeout must be > 0")
	}
	return nil
}

// defaultSettings seeds the first run from the [defaults] config section.
func defaultSettings(cfg config.DefaultsConfig) (model.Settings, error) {
	s := model.DefaultSettings()
	if cfg.DisplayMode != nil {
		s.DisplayMode = model.DisplayMode(*cfg.DisplayMode)
	}
	if cfg.Translation != nil {
		s.Translation = model.Translation(strings.ToLower(*cfg.Translation))
	}
	if cfg.SecondaryTranslation != nil {
		s.SecondaryTranslation = model.Translation(strings.ToLower(*cfg.SecondaryTranslation))
	}
	if cfg.TimeFormat != nil {
		s.TimeFormat = model.TimeFormat(*cfg.TimeFormat)
	}
	if cfg.DevotionalInterval != nil {
		s.DevotionalInterval = *cfg.DevotionalInterval
	}
	if err := settings.Validate(s); err != nil {
		return s, fmt.Errorf("invalid [defaults] in config: %w", err)
	}
	return s, nil
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(config.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func newSelector(st *store.Store) (*verse.Selector, *bible.Library, error) {
	content, err := verse.LoadContent(contentPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load content: %w", err)
	}
	library := bible.NewLibrary(config.TranslationsDir(dataDir))
	client := bible.NewClient(bibleAPIURL, time.Duration(bibleAPITimeout)*time.Second)
	chain := bible.NewChain(library, st, client)
	return verse.NewSelector(content, chain, verse.WithStructure(library)), library, nil
}

func openPanel() (display.Panel, error) {
	if displayDriver == driverWaveshare {
		panel, err := display.OpenWaveshare()
		if err != nil {
			return nil, fmt.Errorf("failed to open waveshare display: %w", err)
		}
		return panel, nil
	}
	output := displayOutput
	if output == "" {
		output = config.PreviewPath(dataDir)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return display.NewFilePanel(output, displayWidth, displayHeight), nil
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
		Short: "Show display history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsDays, "days", defaultStatsDays, "days in the daily activity curve")
	cmd.Flags().IntVar(&statsTop, "top", defaultTopBooks, "number of books to list")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the dashboard")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
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
	cfg := model.StatsConfig{Since: sinceTime, Days: statsDays, TopBooks: statsTop}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	out := cmd.OutOrStdout()
	if statsPlain || !isTerminal(out) {
		report, err := stats.BuildReport(context.Background(), st, cfg, time.Now())
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		return renderPlainStats(out, report)
	}

	m := statsui.NewModel(st, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func renderPlainStats(w io.Writer, report stats.Report) error {
	if err := stats.RenderSummary(w, report); err != nil {
		return err
	}
	if report.Total == 0 {
		return nil
	}
	if err := stats.RenderModeTable(w, report); err != nil {
		return err
	}
	if err := stats.RenderBookTable(w, report); err != nil {
		return err
	}
	return stats.RenderDailyCurve(w, report.Days, defaultCurveWindow, terminalWidth(w), defaultPlotHeight, false)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the current verse to a PNG file",
		Args:  cobra.NoArgs,
		RunE:  runPreviewCmd,
	}
	cmd.Flags().StringVar(&previewMode, "mode", "", "display mode override (time, devotional, date, random)")
	cmd.Flags().StringVar(&previewAt, "at", "", "render for this local time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&previewOutput, "output", "preview.png", "output PNG path")
	cmd.Flags().IntVar(&displayWidth, "width", render.DefaultWidth, "image width in pixels")
	cmd.Flags().IntVar(&displayHeight, "height", render.DefaultHeight, "image height in pixels")
	return cmd
}

func runPreviewCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	now := time.Now()
	if previewAt != "" {
		now, err = time.ParseInLocation("2006-01-02 15:04", previewAt, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	current, ok, err := st.LoadSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if !ok {
		if current, err = defaultSettings(fileCfg.Defaults); err != nil {
			return err
		}
	}
	if previewMode != "" {
		m := model.DisplayMode(previewMode)
		if !m.Valid() {
			return fmt.Errorf("--mode must be one of time, devotional, date, random")
		}
		current.DisplayMode = m
		current.ParallelMode = false
	}

	selector, _, err := newSelector(st)
	if err != nil {
		return err
	}
	renderer, err := render.New(displayWidth, displayHeight)
	if err != nil {
		return err
	}
	v := selector.Select(cmd.Context(), current, now)
	frame, err := renderer.Render(v)
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	if err := display.WritePNG(previewOutput, frame); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", v.Reference, previewOutput)
	return err
}

func newTranslationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translations",
		Short: "List local translation coverage",
		Args:  cobra.NoArgs,
		RunE:  runTranslationsCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "install <code> <file-or-url>",
		Short: "Install a translation JSON file",
		Args:  cobra.ExactArgs(2),
		RunE:  runTranslationsInstallCmd,
	})
	return cmd
}

func runTranslationsCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	library := bible.NewLibrary(config.TranslationsDir(dataDir))
	coverage, err := library.Coverage()
	if err != nil {
		return fmt.Errorf("failed to read translations: %w", err)
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "%-6s  %-9s  %7s  %7s\n", "Code", "Installed", "Verses", "Cover"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, c := range coverage {
		installed := "no"
		if c.Installed {
			installed = "yes"
		}
		if _, err := fmt.Fprintf(out, "%-6s  %-9s  %7d  %6.1f%%\n", c.Translation, installed, c.Verses, c.Percent); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runTranslationsInstallCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	t := model.Translation(strings.ToLower(args[0]))
	if !t.Valid() {
		return fmt.Errorf("unknown translation %q", args[0])
	}
	library := bible.NewLibrary(config.TranslationsDir(dataDir))
	src := args[1]
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		logErrf("Downloading %s...\n", src)
		if err := library.Download(cmd.Context(), t, src); err != nil {
			return err
		}
	} else {
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", src, err)
		}
		defer f.Close()
		if err := library.Install(t, f); err != nil {
			return err
		}
	}
	logErrf("Installed %s as %s\n", t, filepath.Join(library.Dir(), bible.FileName(t)))
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# bibleclock configuration
# Uncomment a value to enable it. CLI flags override config values.

[server]
# addr = %q

[display]
# driver = %q            # "file" writes PNG frames, "waveshare" drives the e-paper HAT
# output = ""              # PNG path for the file driver
# width = %d
# height = %d

[data]
# dir = %q

[bible]
# api-url = %q
# timeout-seconds = %d

[voice]
# command = ""             # voice sidecar command; empty disables voice

[content]
# path = %q

[defaults]                 # used until settings are saved from the dashboard
# display-mode = "time"     # time, devotional, date, random
# translation = "kjv"
# secondary-translation = "amp"
# time-format = "12"        # "12" or "24"
# devotional-interval = 15  # 5, 10, 15, 30 or 60
`,
		defaultAddr,
		defaultDriver,
		render.DefaultWidth,
		render.DefaultHeight,
		config.DefaultDataDir(),
		bible.DefaultAPIURL,
		defaultAPITimeout,
		config.DefaultContentPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
