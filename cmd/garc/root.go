package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"garc/pkg/auth"
	"garc/pkg/config"
	"garc/pkg/gab"
	"garc/pkg/logger"
	"garc/pkg/ui"
)

var (
	// Version information
	version   = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// options holds the values bound to command line flags
type options struct {
	account          string
	password         string
	profilePath      string
	profile          string
	settings         string
	connectionErrors int
	httpErrors       int
	output           string
	format           string
	logFile          string
	logLevel         string

	sort     string
	limit    int
	parallel int
	since    string
	cutoff   string
	lookback int
	keyring  bool
}

// app carries the state of one invocation
type app struct {
	opts       options
	cfg        *config.Config
	log        logger.Logger
	creds      auth.Credentials
	runID      string
	clientOpts []gab.Option
	helpShown  bool
}

func newApp() *app {
	return &app{runID: uuid.NewString()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "garc",
		Short: "Archive posts, profiles and timelines from Gab",
		Long: `garc collects posts, comments, profiles and timelines from Gab and writes
them as JSON lines, CSV or a SQLite archive.

Credentials are read from --user-account/--user-password, the GAB_ACCOUNT and
GAB_PASSWORD environment variables, or a profile in ~/.garc (see 'garc configure').`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		a.helpShown = true
		defaultHelp(cmd, args)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.account, "user-account", "", "Gab account name")
	flags.StringVar(&a.opts.password, "user-password", "", "Gab account password")
	flags.StringVar(&a.opts.profilePath, "config", "", "credential profile file (default is $HOME/.garc)")
	flags.StringVar(&a.opts.profile, "profile", auth.DefaultProfile, "credential profile name")
	flags.StringVar(&a.opts.settings, "settings", "", "settings file (YAML)")
	flags.IntVar(&a.opts.connectionErrors, "connection-errors", config.DefaultConnectionErrors, "consecutive connection failures tolerated")
	flags.IntVar(&a.opts.httpErrors, "http-errors", config.DefaultHTTPErrors, "404 and 5xx responses tolerated per request")
	flags.StringVarP(&a.opts.output, "output", "o", "", "output file (default is stdout)")
	flags.StringVar(&a.opts.format, "format", "", "output format (json, csv, sqlite)")
	flags.StringVar(&a.opts.logFile, "log", "", "log file (default is garc.log)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.SetVersionTemplate(`garc {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigureCmd(a))
	root.AddCommand(newConfigCmd(a))
	addCollectCommands(root, a)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "garc %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)
		},
	}
}

// flags collects the overrides the user actually set
func (a *app) flags(cmd *cobra.Command) config.Flags {
	f := config.Flags{
		Output:   a.opts.output,
		Format:   a.opts.format,
		Sort:     a.opts.sort,
		LogFile:  a.opts.logFile,
		LogLevel: a.opts.logLevel,
	}
	if cmd.Flags().Changed("connection-errors") {
		v := a.opts.connectionErrors
		f.ConnectionErrors = &v
	}
	if cmd.Flags().Changed("http-errors") {
		v := a.opts.httpErrors
		f.HTTPErrors = &v
	}
	if cmd.Flags().Changed("limit") {
		v := a.opts.limit
		f.Limit = &v
	}
	return f
}

// load reads the settings and sets up logging
func (a *app) load(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.opts.settings, a.flags(cmd))
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.log = logger.GetLogger().WithField("run_id", a.runID)
	return nil
}

func (a *app) profileStore() (*auth.ProfileStore, error) {
	path := a.opts.profilePath
	if path == "" {
		var err error
		if path, err = auth.DefaultProfilePath(); err != nil {
			return nil, err
		}
	}
	return auth.NewProfileStore(path, auth.NewKeyringStore()), nil
}

// credentials merges flags, environment and the profile file
func (a *app) credentials() (auth.Credentials, error) {
	store, err := a.profileStore()
	if err != nil {
		return auth.Credentials{}, err
	}
	return auth.NewResolver(store, a.opts.profile).Resolve(auth.Credentials{
		Account:  a.opts.account,
		Password: a.opts.password,
	})
}

// execute runs the command line and returns the process exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	prev := ui.SetOutput(stderr)
	defer ui.SetOutput(prev)

	if _, err := root.ExecuteContextC(ctx); err != nil {
		ui.PrintError("Error", err)
		return 1
	}
	if a.helpShown {
		return 1
	}
	return 0
}
