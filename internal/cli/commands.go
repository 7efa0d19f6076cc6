package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/internal/export"
	"github.com/dyike/CortexDash/internal/report"
	"github.com/dyike/CortexDash/internal/tui"
	"github.com/dyike/CortexDash/models"
)

const defaultConnectTimeout = 15 * time.Second

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "cortexdash",
		Short: "CortexDash - live dashboard for the trading analysis service",
		Long: `CortexDash connects to the multi-agent trading analysis service, starts analyses
and shows team progress, the resolved decision and the report sections as they arrive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags, "", defaultConnectTimeout)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.serverURL, "server", "", "Analysis service WebSocket URL")

	rootCmd.AddCommand(newWatchCmd(flags))
	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newHistoryCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var connectTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch [TICKER]",
		Short: "Start an analysis and follow it in the dashboard",
		Long: `Start an analysis and follow it in the terminal dashboard.
Missing settings are asked for interactively.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := ""
			if len(args) == 1 {
				ticker = args[0]
			}
			return runWatch(cmd, flags, ticker, connectTimeout)
		},
	}
	cmd.Flags().DurationVar(&connectTimeout, "connect-timeout", defaultConnectTimeout, "How long to wait for the service")
	return cmd
}

func runWatch(cmd *cobra.Command, flags *globalFlags, ticker string, connectTimeout time.Duration) error {
	rt, err := loadRuntime(flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintln(cmd.OutOrStdout(), renderBanner())
	req, err := promptRequest(rt.cfg, ticker)
	if err != nil {
		return err
	}

	if err := rt.logToFile(); err != nil {
		return err
	}
	sess, err := rt.newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if err := rt.startSession(ctx, sess, connectTimeout); err != nil {
		return err
	}
	if _, err := sess.StartRun(req); err != nil {
		return err
	}

	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()
	model := tui.NewAppModel(sess, changes, tui.Options{})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("dashboard: %w", err)
	}

	snap := sess.Snapshot()
	if snap.Run.IsRunning {
		fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("Run "+snap.Run.ID+" is still running on the service."))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(snap.Run.Outcome, snap.Decision))
	return nil
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		date           string
		outDir         string
		timeout        time.Duration
		connectTimeout time.Duration
		mode           string
		lang           string
		full           bool
	)
	cmd := &cobra.Command{
		Use:   "run TICKER",
		Short: "Run an analysis without the dashboard",
		Long: `Run an analysis headless: progress is logged line by line and the final
report is printed and exported as Markdown and HTML.
Example: cortexdash run AAPL --date=2024-03-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := headlessOptions{OutDir: outDir, Timeout: timeout}
			if opts.OutDir == "" {
				opts.OutDir = rt.cfg.ResultsDir
			}
			if opts.Mode, opts.Language, err = parseView(mode, lang); err != nil {
				return err
			}

			req := rt.cfg.DefaultRequest(args[0], date)
			if full {
				req.ReportLength = consts.ReportLengthFull
			}
			if req, err = req.Normalize(time.Now()); err != nil {
				return err
			}

			sess, err := rt.newSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := rt.startSession(cmd.Context(), sess, connectTimeout); err != nil {
				return err
			}
			_, err = runHeadless(cmd.Context(), sess, req, opts, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Analysis date in YYYY-MM-DD format (today if not provided)")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for the exported report (results dir by default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop the run after this long (0 waits forever)")
	cmd.Flags().DurationVar(&connectTimeout, "connect-timeout", defaultConnectTimeout, "How long to wait for the service")
	cmd.Flags().StringVar(&mode, "mode", "", "Report view: summary or full")
	cmd.Flags().StringVar(&lang, "lang", "", "Report language: en or th")
	cmd.Flags().BoolVar(&full, "full", false, "Request the full report")
	return cmd
}

// parseView validates optional --mode and --lang values.
func parseView(mode, lang string) (models.DisplayMode, models.Language, error) {
	var (
		m  models.DisplayMode
		l  models.Language
		ok bool
	)
	if mode != "" {
		if m, ok = models.ParseDisplayMode(mode); !ok {
			return "", "", fmt.Errorf("invalid --mode %q, use summary or full", mode)
		}
	}
	if lang != "" {
		if l, ok = models.ParseLanguage(lang); !ok {
			return "", "", fmt.Errorf("invalid --lang %q, use en or th", lang)
		}
	}
	return m, l, nil
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past runs",
	}

	var (
		ticker string
		limit  int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()
			store, err := rt.openHistory()
			if err != nil {
				return err
			}
			items, err := store.ListRuns(cmd.Context(), models.HistoryParams{Ticker: ticker, Limit: limit})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderHistory(items))
			return nil
		},
	}
	listCmd.Flags().StringVar(&ticker, "ticker", "", "Only runs for this ticker")
	listCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs (default 50)")

	var mode, lang, outDir string
	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			m, l, err := parseView(mode, lang)
			if err != nil {
				return err
			}
			if m == "" {
				m = rt.cfg.Mode()
			}
			if l == "" {
				l = rt.cfg.Lang()
			}

			store, err := rt.openHistory()
			if err != nil {
				return err
			}
			rec, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("run %s not found", args[0])
			}

			entries := report.View(l, m, rec.FinalState, rec.Thai)
			meta := export.MetaOfRecord(*rec, m, l)
			fmt.Fprintln(cmd.OutOrStdout(), export.Markdown(meta, entries))
			if outDir != "" {
				md, html, err := export.WriteFiles(outDir, meta, entries)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "📄 %s\n📄 %s\n", md, html)
			}
			return nil
		},
	}
	showCmd.Flags().StringVar(&mode, "mode", "", "Report view: summary or full")
	showCmd.Flags().StringVar(&lang, "lang", "", "Report language: en or th")
	showCmd.Flags().StringVar(&outDir, "out", "", "Also export the report to this directory")

	historyCmd.AddCommand(listCmd, showCmd)
	return historyCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CortexDash %s\n", Version)
			fmt.Fprintln(cmd.OutOrStdout(), "Live client for the multi-agent trading analysis service")
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(flags *globalFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("📋 Current CortexDash Configuration"))
			fmt.Fprint(out, renderRows([][2]string{
				{"Config File:", rt.manager.Path()},
				{"Server URL:", rt.cfg.ServerURL},
				{"Reconnect Delay:", rt.cfg.ReconnectDelay().String()},
				{"Handshake Timeout:", rt.cfg.HandshakeTimeout().String()},
				{"Display Mode:", string(rt.cfg.Mode())},
				{"Language:", string(rt.cfg.Lang())},
				{"History:", fmt.Sprintf("%t (%s)", rt.cfg.HistoryEnabled, rt.cfg.HistoryPath())},
				{"Results Directory:", rt.cfg.ResultsDir},
				{"Log Level:", rt.cfg.LogLevel},
				{"Debug Mode:", fmt.Sprintf("%t", rt.cfg.Debug)},
			}))
			fmt.Fprintln(out)
			fmt.Fprintln(out, titleStyle.Render("🤖 Run defaults"))
			defaults, _ := json.MarshalIndent(rt.cfg.DefaultRequest("", ""), "", "  ")
			fmt.Fprintln(out, string(defaults))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and local storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "🔍 Validating CortexDash Configuration...")

			fmt.Fprint(out, "⚙️  Checking configuration values... ")
			rt, err := loadRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintln(out, renderCheck(false))
				return err
			}
			defer rt.Close()
			fmt.Fprintln(out, renderCheck(true))

			var warnings []string
			fmt.Fprint(out, "🤖 Checking run defaults... ")
			probe := rt.cfg.DefaultRequest("AAPL", "")
			if _, err := probe.Normalize(time.Now()); err != nil {
				fmt.Fprintln(out, renderCheck(false))
				return err
			}
			if strings.TrimSpace(rt.cfg.LLMProvider) == "" {
				warnings = append(warnings, "llm_provider is empty; the service default is used")
			}
			fmt.Fprintln(out, renderCheck(true))

			if rt.cfg.HistoryEnabled {
				fmt.Fprint(out, "🗄️  Opening history database... ")
				if _, err := rt.openHistory(); err != nil {
					fmt.Fprintln(out, renderCheck(false))
					return err
				}
				fmt.Fprintln(out, renderCheck(true))
			}

			for _, w := range warnings {
				fmt.Fprintln(out, warnStyle.Render("⚠️  "+w))
			}
			fmt.Fprintln(out, successStyle.Render("✅ Configuration validation completed successfully!"))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one value in the config file",
		Example: `  cortexdash config set language th
  cortexdash config set analysts '["market","news"]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.manager.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✅ %s updated in %s", args[0], rt.manager.Path())))
			return nil
		},
	})

	return configCmd
}
