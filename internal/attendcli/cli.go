package attendcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/clientapp"
	"github.com/phillip-england/attendhash/internal/envutil"
	"github.com/phillip-england/attendhash/internal/flows"
	"github.com/phillip-england/attendhash/internal/stubapi"
	"github.com/spf13/cobra"
)

var (
	ErrUsage = errors.New("usage")
	// ErrFlowFailed means a flow ended with an error status or alert, which
	// has already been printed.
	ErrFlowFailed = errors.New("flow failed")
)

const usageText = `usage: attendhash setup [--api-base-url URL] [--env-file .env] [--force]
       attendhash run client|stub|all
       attendhash upload FILE
       attendhash view
       attendhash search [--id ID] [--name NAME] [--department DEPT] [--live]
       attendhash lookup id|name VALUE
       attendhash sort asc|desc
       attendhash report PERCENT [--dir DIR]
       attendhash theme [toggle]
`

func PrintUsage(w io.Writer) {
	_, _ = io.WriteString(w, usageText)
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

type options struct {
	envFile    string
	apiBaseURL string
}

func Execute(args []string) error {
	return execute(args, streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func execute(args []string, std streams) error {
	root := newRootCommand(std)
	root.SetArgs(args)
	return root.Execute()
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUsage}, args...)...)
}

func exactArgs(n int, shape string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError("attendhash %s", shape)
		}
		return nil
	}
}

func newRootCommand(std streams) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "attendhash",
		Short:         "Employee attendance hashing client",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError("attendhash <command> [...]")
			}
			return usageError("unknown command %q", args[0])
		},
	}
	root.SetIn(std.in)
	root.SetOut(std.out)
	root.SetErr(std.err)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to .env file")
	root.PersistentFlags().StringVar(&opts.apiBaseURL, "api-base-url", "", "backend origin (overrides API_BASE_URL)")

	root.AddCommand(
		newSetupCommand(std, opts),
		newRunCommand(opts),
		newUploadCommand(std, opts),
		newViewCommand(std, opts),
		newSearchCommand(std, opts),
		newLookupCommand(std, opts),
		newSortCommand(std, opts),
		newReportCommand(std, opts),
		newThemeCommand(std, opts),
	)
	return root
}

func newSetupCommand(std streams, opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a .env file with default settings",
		Args:  exactArgs(0, "setup [--api-base-url URL] [--env-file .env] [--force]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := opts.apiBaseURL
			if baseURL == "" {
				baseURL = attendapi.DefaultBaseURL
			}
			if err := (attendapi.Config{BaseURL: baseURL}).Validate(); err != nil {
				return err
			}

			values := map[string]string{
				"API_BASE_URL":       baseURL,
				"API_TIMEOUT":        "30s",
				"CLIENT_ADDR":        ":3000",
				"STUB_ADDR":          ":8080",
				"STUB_SNAPSHOT_PATH": "data/attendance.json.xz",
				"THEME_FILE":         ".attendhash-theme",
			}
			if err := envutil.WriteDotEnv(opts.envFile, values, force); err != nil {
				return err
			}
			fmt.Fprintf(std.out, "wrote %s\n", opts.envFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing env file")
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "run client|stub|all",
		Short:     "Run the web client, the stub backend, or both",
		Args:      exactArgs(1, "run client|stub|all"),
		ValidArgs: []string{"client", "stub", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envutil.LoadDotEnv(opts.envFile); err != nil {
				return fmt.Errorf("load .env: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			switch args[0] {
			case "client":
				return runClient(ctx, opts)
			case "stub":
				return runStub(ctx)
			case "all":
				return runAll(ctx, opts)
			default:
				return usageError("unknown run target %q", args[0])
			}
		},
	}
}

func runStub(ctx context.Context) error {
	cfg := stubapi.DefaultConfigFromEnv()
	if cfg.SnapshotPath != "" {
		if err := ensureParentDirs(cfg.SnapshotPath); err != nil {
			return err
		}
	}
	if err := stubapi.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runClient(ctx context.Context, opts *options) error {
	cfg := clientapp.DefaultConfigFromEnv()
	if opts.apiBaseURL != "" {
		cfg.API.BaseURL = opts.apiBaseURL
	}
	if err := clientapp.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runAll starts the stub backend and points the client at it unless a
// backend origin was given explicitly.
func runAll(ctx context.Context, opts *options) error {
	if opts.apiBaseURL == "" {
		opts.apiBaseURL = "http://localhost" + stubapi.DefaultConfigFromEnv().Addr
	}
	errCh := make(chan error, 2)

	go func() { errCh <- runStub(ctx) }()
	go func() {
		time.Sleep(500 * time.Millisecond)
		errCh <- runClient(ctx, opts)
	}()

	for i := 0; i < 2; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func ensureParentDirs(paths ...string) error {
	for _, p := range paths {
		dir := filepath.Dir(p)
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// newApp loads the env file and builds the flow runner for one command.
func newApp(opts *options) (*flows.App, error) {
	if err := envutil.LoadDotEnv(opts.envFile); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := attendapi.DefaultConfigFromEnv()
	if opts.apiBaseURL != "" {
		cfg.BaseURL = opts.apiBaseURL
	}
	api, err := attendapi.New(cfg)
	if err != nil {
		return nil, err
	}
	return flows.New(api), nil
}
