// Package cli implements the streaming command-line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.streamcat.tech/core/chain"
	"go.streamcat.tech/core/internal/config"
	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/stream"
	"go.streamcat.tech/core/wallet"
	"golang.org/x/term"
)

// A Wallet funds launches and signs spends.
type Wallet interface {
	wallet.Sender
	wallet.Signer
}

// RootOptions holds global flags and the collaborators shared by all
// commands.
type RootOptions struct {
	ConfigPath string
	Mainnet    bool
	CertPath   string
	Fee        string
	LogLevel   string
	LogDir     string
	Format     string

	// Config is loaded before any command runs.
	Config config.Config

	NewLedger  func(config.Config) ledger.Client
	NewWallet  func(config.Config) (Wallet, error)
	NewEngine  func(config.Config) (*stream.Engine, error)
	IsTerminal func() bool

	closeLog func()
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultOptions returns options that connect to coinset.org and a local
// Sage wallet.
func DefaultOptions() *RootOptions {
	return &RootOptions{
		NewLedger: func(cfg config.Config) ledger.Client {
			return ledger.NewCoinset(cfg.CoinsetURL(), ledger.WithRateLimit(cfg.Coinset.RequestsPerSecond, cfg.Coinset.Burst))
		},
		NewWallet: func(cfg config.Config) (Wallet, error) {
			dir, err := config.ExpandPath(cfg.Sage.CertPath)
			if err != nil {
				return nil, err
			}
			return wallet.NewSageFromDir(cfg.Sage.URL, dir)
		},
		NewEngine: func(cfg config.Config) (*stream.Engine, error) {
			token, r, err := cfg.LoadTemplates()
			if err != nil {
				return nil, err
			}
			return stream.NewEngine(r, token, stream.Extractors(stream.QuotedExtractor{}, stream.DelegatedExtractor{})), nil
		},
		IsTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// NewRootCommand creates the root command. If opts is nil, DefaultOptions is
// used.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = DefaultOptions()
	}

	cmd := &cobra.Command{
		Use:           "streaming",
		Short:         "Interact with streamed CATs",
		Long:          "Launch, inspect, claim, and claw back CATs that vest linearly to a recipient over time.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("mainnet") && opts.Mainnet {
				cfg.Network = config.Mainnet
			}
			if flags.Changed("cert-path") {
				cfg.Sage.CertPath = opts.CertPath
			}
			if flags.Changed("fee") {
				cfg.Fee = opts.Fee
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = opts.LogLevel
			}
			if flags.Changed("log-dir") {
				cfg.Log.Dir = opts.LogDir
			}
			opts.Config = cfg

			closeLog, err := initLogging(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			opts.closeLog = closeLog
			log.Debugf("Using %s (%s)", cfg.Network, cfg.CoinsetURL())
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			opts.Close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", config.DefaultPath(), "path to config file")
	flags.BoolVar(&opts.Mainnet, "mainnet", false, "use mainnet instead of testnet11")
	flags.StringVar(&opts.CertPath, "cert-path", "", "directory holding the Sage wallet.crt and wallet.key")
	flags.StringVar(&opts.Fee, "fee", "", "transaction fee in XCH")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error|critical|off)")
	flags.StringVar(&opts.LogDir, "log-dir", "", "directory for rotated log files")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLaunchCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts, false))
	cmd.AddCommand(NewClaimCommand(opts, true))
	cmd.AddCommand(NewListCommand(opts))

	return cmd
}

// Close flushes and closes the log file, if any. It is safe to call more than
// once.
func (opts *RootOptions) Close() {
	if opts.closeLog != nil {
		opts.closeLog()
		opts.closeLog = nil
	}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// tracker returns a ledger client and a tracker for the configured network.
func (opts *RootOptions) tracker() (ledger.Client, *chain.Tracker, *stream.Engine, error) {
	e, err := opts.NewEngine(opts.Config)
	if err != nil {
		return nil, nil, nil, err
	}
	lc := opts.NewLedger(opts.Config)
	return lc, chain.NewTracker(lc, e), e, nil
}
