package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/ledgerview/ledgerview/console"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/ledgerview/remote/jsonfile"
	"github.com/arthur-debert/ledgerview/ledgerview/remote/sqlstore"
)

const (
	backendJSON   = "json"
	backendSQLite = "sqlite"
)

// Config is the effective configuration after flags, environment and config
// file have been merged
type Config struct {
	DB             string `json:"db" yaml:"db"`
	Backend        string `json:"backend" yaml:"backend"`
	Format         string `json:"format" yaml:"format"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
	Verbose        bool   `json:"verbose" yaml:"verbose"`
	PageSize       int    `json:"page_size" yaml:"page_size"`
	FilterMatching bool   `json:"filter_matching" yaml:"filter_matching"`
}

// Validate checks the configuration before any store is opened
func (c Config) Validate() error {
	if c.DB == "" {
		return NewConfigError("open store", "no database path configured",
			CommonSuggestions.CheckDB, "Set LEDGERVIEW_DB or add 'db' to ledgerview.yaml")
	}
	switch c.Backend {
	case backendJSON, backendSQLite:
	default:
		return NewValidationError("open store", "backend", c.Backend, "Use --backend json or --backend sqlite")
	}
	switch c.Format {
	case formatTable, formatJSON, formatYAML:
	default:
		return NewValidationError("format output", "format", c.Format, "Use --format table, json or yaml")
	}
	if c.PageSize <= 0 || c.PageSize > remote.MaxPageSize {
		return NewValidationError("load views", "page-size", fmt.Sprint(c.PageSize),
			fmt.Sprintf("Use a page size between 1 and %d", remote.MaxPageSize))
	}
	return nil
}

// CLI is the viper-driven command line for ledgerview
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	out       io.Writer
	logCloser io.Closer
}

// NewCLI creates the command tree
func NewCLI() *CLI {
	cli := &CLI{
		viperInst: viper.New(),
		out:       os.Stdout,
	}

	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()

	return cli
}

// Execute runs the command selected by os.Args
func (cli *CLI) Execute() error {
	defer cli.closeLog()
	return cli.rootCmd.Execute()
}

// Run executes args against the command tree, writing output to out
func (cli *CLI) Run(out io.Writer, args ...string) error {
	defer cli.closeLog()
	cli.out = out
	cli.rootCmd.SetOut(out)
	cli.rootCmd.SetArgs(args)
	return cli.rootCmd.Execute()
}

func (cli *CLI) closeLog() {
	if cli.logCloser != nil {
		_ = cli.logCloser.Close()
		cli.logCloser = nil
	}
}

// setupViperConfig configures Viper with environment variables and config files
func (cli *CLI) setupViperConfig() {
	// LEDGERVIEW_CONFIG points at an explicit config file
	if configFile := os.Getenv("LEDGERVIEW_CONFIG"); configFile != "" {
		cli.viperInst.SetConfigFile(configFile)
	} else {
		cli.viperInst.SetConfigName("ledgerview")
		cli.viperInst.SetConfigType("yaml")
		cli.viperInst.AddConfigPath(".")
		cli.viperInst.AddConfigPath("$HOME/.ledgerview")
	}

	cli.viperInst.SetEnvPrefix("LEDGERVIEW")
	cli.viperInst.AutomaticEnv()
	// --page-size -> LEDGERVIEW_PAGE_SIZE
	cli.viperInst.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cli.viperInst.SetDefault("db", "ledgerview.json")
	cli.viperInst.SetDefault("backend", backendJSON)
	cli.viperInst.SetDefault("format", formatTable)
	cli.viperInst.SetDefault("log-level", "warn")
	cli.viperInst.SetDefault("page-size", remote.DefaultPageSize)

	// Read config file if it exists (ignore errors)
	_ = cli.viperInst.ReadInConfig()
}

// createRootCommand creates the root Cobra command with Viper integration
func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "ledgerview",
		Short: "ledgerview - keep many sorted, grouped record views in sync",
		Long: `ledgerview manages billing documents (invoices, receipts, credit notes)
and briefings, and keeps every open list view of them sorted and grouped as
records are created, edited and deleted.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (LEDGERVIEW_*)
3. Configuration file (LEDGERVIEW_CONFIG, ./ledgerview.yaml, ~/.ledgerview/ledgerview.yaml)

Examples:
  ledgerview add --kind invoice --number INV-1 --total 120 --date 2024-03-01
  ledgerview list --sort total --desc --group month
  ledgerview edit invoice 1 --date 2024-04-02
  ledgerview replay script.yaml`,

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = cli.viperInst.BindPFlags(cmd.Flags())

			closer, err := initLogging(cli.viperInst.GetString("log-level"), cli.viperInst.GetBool("verbose"))
			if err != nil {
				// logging is best effort; commands still run
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				return nil
			}
			cli.logCloser = closer
			return nil
		},
	}

	cli.addGlobalFlags()
}

// addGlobalFlags adds persistent flags that apply to all commands
func (cli *CLI) addGlobalFlags() {
	flags := cli.rootCmd.PersistentFlags()

	flags.StringP("db", "d", "", "Store file path")
	flags.StringP("backend", "b", "", "Store backend (json|sqlite)")
	flags.StringP("format", "f", "", "Output format (table|json|yaml)")
	flags.String("log-level", "", "Log level for the log file (debug|info|warn|error)")
	flags.BoolP("verbose", "v", false, "Also write logs to stderr")
	flags.Int("page-size", 0, "Rows requested per page")
	flags.Bool("filter-matching", false, "Only propagate records into views whose filters they match")

	for _, flag := range []string{"db", "backend", "format", "log-level", "verbose", "page-size", "filter-matching"} {
		_ = cli.viperInst.BindPFlag(flag, flags.Lookup(flag))
	}
}

// config reads the effective configuration from viper
func (cli *CLI) config() Config {
	return Config{
		DB:             cli.viperInst.GetString("db"),
		Backend:        strings.ToLower(cli.viperInst.GetString("backend")),
		Format:         strings.ToLower(cli.viperInst.GetString("format")),
		LogLevel:       cli.viperInst.GetString("log-level"),
		Verbose:        cli.viperInst.GetBool("verbose"),
		PageSize:       cli.viperInst.GetInt("page-size"),
		FilterMatching: cli.viperInst.GetBool("filter-matching"),
	}
}

// openService opens the configured store
func (cli *CLI) openService(cfg Config) (remote.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case backendSQLite:
		svc, err := sqlstore.Open(cfg.DB)
		if err != nil {
			return nil, NewStoreError("open store", err, CommonSuggestions.CheckDB)
		}
		return svc, nil
	default:
		return jsonfile.Open(cfg.DB), nil
	}
}

// withConsole opens the store, runs fn with a console session and closes
// the store afterwards
func (cli *CLI) withConsole(fn func(cfg Config, c *console.Console) error) error {
	cfg := cli.config()
	svc, err := cli.openService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	c := console.New(svc,
		console.WithLogger(mainLogger),
		console.WithPageSize(cfg.PageSize),
		console.WithFilterMatching(cfg.FilterMatching),
	)
	return fn(cfg, c)
}

// addCommands adds all the CLI commands
func (cli *CLI) addCommands() {
	cli.addConfigCommand()

	cli.addAddCommand()
	cli.addEditCommand()
	cli.addRemoveCommand()
	cli.addShowCommand()
	cli.addListCommand()
	cli.addTotalsCommand()

	cli.addReplayCommand()
}
