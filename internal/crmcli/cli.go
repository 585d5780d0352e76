package crmcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/estatecrm/internal/analytics"
	"github.com/phillip-england/estatecrm/internal/consoleapp"
	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/crmapi"
	"github.com/phillip-england/estatecrm/internal/demoapi"
	"github.com/phillip-england/estatecrm/internal/dispatcher"
	"github.com/phillip-england/estatecrm/internal/envutil"
	"github.com/phillip-england/estatecrm/internal/logging"
	"github.com/phillip-england/estatecrm/internal/security"
	"github.com/phillip-england/estatecrm/internal/sheets"
)

// app carries what the subcommands share once the root has loaded the
// environment.
type app struct {
	envFile  string
	logger   *slog.Logger
	closeLog func() error

	apiURL   string
	email    string
	password string
	timeout  time.Duration
}

// Execute runs the estatecrm command line with args.
func Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "estatecrm",
		Short:         "Real-estate CRM admin console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closeLog == nil {
				return nil
			}
			return a.closeLog()
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to .env file")

	root.AddCommand(
		a.setupCmd(),
		a.runCmd(),
		a.exportCmd(),
		a.importLeadsCmd(),
		a.analyticsCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := envutil.LoadDotEnv(a.envFile); err != nil {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}
	cfg := logging.ConfigFromEnv()
	cfg.Writer = cmd.ErrOrStderr()
	logger, closeLog, err := logging.New(cfg)
	if err != nil {
		return err
	}
	a.logger, a.closeLog = logger, closeLog
	return nil
}

func (a *app) setupCmd() *cobra.Command {
	var (
		adminEmail string
		adminPass  string
		jwtSecret  string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a .env with the admin credentials and service addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := security.HashPassword(adminPass); err != nil {
				return fmt.Errorf("invalid admin password: %w", err)
			}
			if jwtSecret == "" {
				return errors.New("--jwt-secret is required")
			}
			values := map[string]string{
				"ADMIN_EMAIL":     adminEmail,
				"ADMIN_PASSWORD":  adminPass,
				"DEMO_EMAIL":      adminEmail,
				"DEMO_PASSWORD":   adminPass,
				"JWT_SECRET":      jwtSecret,
				"API_ADDR":        ":8080",
				"CONSOLE_ADDR":    ":3000",
				"API_BASE_URL":    "http://localhost:8080",
				"SESSION_BACKEND": consoleapp.SessionBackendMemory,
			}
			if err := envutil.WriteDotEnv(a.envFile, values, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", a.envFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin", "admin login")
	cmd.Flags().StringVar(&adminPass, "admin-password", "admin", "admin password")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "secret used to sign API tokens")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing env file")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <console|api|all>",
		Short:     "Serve the admin console, the CRM API, or both",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"console", "api", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch args[0] {
			case "console":
				return ignoreCanceled(consoleapp.Run(ctx, consoleapp.DefaultConfigFromEnv(), a.logger.With("app", "console")))
			case "api":
				return ignoreCanceled(demoapi.Run(ctx, demoapi.DefaultConfigFromEnv(), a.logger.With("app", "api")))
			default:
				return a.runAll(ctx)
			}
		},
	}
}

func (a *app) runAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(demoapi.Run(gctx, demoapi.DefaultConfigFromEnv(), a.logger.With("app", "api")))
	})
	g.Go(func() error {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-gctx.Done():
			return nil
		}
		return ignoreCanceled(consoleapp.Run(gctx, consoleapp.DefaultConfigFromEnv(), a.logger.With("app", "console")))
	})
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// addAPIFlags registers the connection flags of the commands that talk to a
// running CRM API. Defaults come from the environment after .env is loaded.
func (a *app) addAPIFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.apiURL, "api", "", "CRM API base URL (default $API_BASE_URL)")
	cmd.Flags().StringVar(&a.email, "email", "", "admin login (default $DEMO_EMAIL)")
	cmd.Flags().StringVar(&a.password, "password", "", "admin password (default $DEMO_PASSWORD)")
	cmd.Flags().DurationVar(&a.timeout, "timeout", 0, "per-request timeout (default $API_TIMEOUT)")
}

// client signs in against the CRM API and returns a client carrying the
// issued token.
func (a *app) client(ctx context.Context) (*crmapi.Client, error) {
	cfg := consoleapp.DefaultConfigFromEnv()
	if a.apiURL != "" {
		cfg.APIBaseURL = a.apiURL
	}
	if a.email != "" {
		cfg.DemoEmail = a.email
	}
	if a.password != "" {
		cfg.DemoPassword = a.password
	}
	if a.timeout > 0 {
		cfg.APITimeout = a.timeout
	}

	api := crmapi.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.APITimeout})
	token, err := api.Login(ctx, cfg.DemoEmail, cfg.DemoPassword)
	if err != nil {
		return nil, fmt.Errorf("login: %s", crmapi.UserMessage(err, "Server error"))
	}
	return api.WithToken(token), nil
}

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "export <leads|agents|buyers|sellers>",
		Short:     "Write one record list to an .xlsx workbook",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := crm.MustLookup(crm.Kind(args[0]))
			api, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			d := dispatcher.New(api, a.logger)
			if err := d.List(cmd.Context(), kind); err != nil {
				return fmt.Errorf("list %s: %s", kind.Kind(), crmapi.UserMessage(err, "Server error"))
			}
			table := d.RenderList(kind)

			if out == "-" {
				return sheets.ExportTable(cmd.OutOrStdout(), table)
			}
			if out == "" {
				out = sheets.ExportFilename(kind.Kind())
			}
			if err := writeFile(out, func(w io.Writer) error { return sheets.ExportTable(w, table) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d %s to %s\n", len(table.Rows), kind.Label(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default <kind>.xlsx)`)
	a.addAPIFlags(cmd)
	return cmd
}

func (a *app) importLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-leads <file.xlsx|file.xls>",
		Short: "Create leads from the rows of a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := crm.MustLookup(crm.KindLeads)
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := sheets.ReadDrafts(f, filepath.Base(args[0]), kind)
			if err != nil {
				return err
			}
			api, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			result := dispatcher.New(api, a.logger).Import(cmd.Context(), kind, rows)

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, result.Summary(kind))
			for _, failure := range result.Failures {
				fmt.Fprintf(w, "  row %d: %s\n", failure.Line, failure.Reason)
			}
			if len(result.Failures) > 0 {
				return fmt.Errorf("%d of %d rows failed", len(result.Failures), len(rows))
			}
			return nil
		},
	}
	a.addAPIFlags(cmd)
	return cmd
}

func (a *app) analyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the analytics tiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			view := analytics.New(api, a.logger)
			// A failed load still renders the no-data message.
			_ = view.Load(cmd.Context())
			return analytics.WriteText(cmd.OutOrStdout(), view.Page())
		},
	}
	a.addAPIFlags(cmd)
	return cmd
}

func kindNames() []string {
	var names []string
	for _, k := range crm.Kinds() {
		names = append(names, string(k.Kind()))
	}
	return names
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
