package app

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mrivas/defi-agent/internal/allowance"
	"github.com/mrivas/defi-agent/internal/balance"
	"github.com/mrivas/defi-agent/internal/chain"
	"github.com/mrivas/defi-agent/internal/config"
	"github.com/mrivas/defi-agent/internal/engine"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/executor"
	"github.com/mrivas/defi-agent/internal/gas"
	"github.com/mrivas/defi-agent/internal/history"
	"github.com/mrivas/defi-agent/internal/httpx"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/out"
	"github.com/mrivas/defi-agent/internal/policy"
	"github.com/mrivas/defi-agent/internal/providers"
	"github.com/mrivas/defi-agent/internal/providers/across"
	"github.com/mrivas/defi-agent/internal/providers/jupiter"
	"github.com/mrivas/defi-agent/internal/providers/lido"
	"github.com/mrivas/defi-agent/internal/providers/lifi"
	"github.com/mrivas/defi-agent/internal/quote"
	"github.com/mrivas/defi-agent/internal/token"
	"github.com/mrivas/defi-agent/internal/version"
	"github.com/mrivas/defi-agent/internal/wallet"
)

type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:  os.Stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	log      *logrus.Entry
	root     *cobra.Command

	pool    *chain.Pool
	journal *history.Store
	quotes  *quote.Store
	engine  *engine.Engine
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	state.close()
	if err == nil {
		return 0
	}

	state.emitError(err)
	return apperr.ExitCode(apperr.Classify(err, "command failed"))
}

// emitError renders the stable error envelope to stderr.
func (s *runtimeState) emitError(err error) {
	mode := s.settings.OutputMode
	if mode == "" {
		mode = "json"
	}
	_ = out.Render(s.runner.stderr, engine.ErrorEnvelopeFor(err), mode)
}

func (s *runtimeState) close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.quotes != nil {
		s.quotes.Close()
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Agent-first DeFi execution CLI: quote, validate, and execute swaps, bridges, stakes, and transfers",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return apperr.Wrap(apperr.StepInitialization, "load configuration", err)
			}
			s.settings = settings
			s.log = newLogger(s.runner.stderr, settings.LogLevel)

			path := trimRootPath(cmd.CommandPath())
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if commandExecutes(path) && settings.HistoryEnabled && s.journal == nil {
				journal, err := history.Open(settings.HistoryPath, settings.HistoryLockPath)
				if err != nil {
					return apperr.Wrap(apperr.StepInitialization, "open execution history", err)
				}
				s.journal = journal
			}
			if s.engine == nil {
				if err := s.buildStack(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperr.Wrap(apperr.StepToolExecution, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Provider request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per provider request")
	cmd.PersistentFlags().StringVar(&s.flags.QuoteTTL, "quote-ttl", "", "How long stored quotes stay executable")
	cmd.PersistentFlags().Int64Var(&s.flags.SlippageBps, "slippage-bps", 0, "Default slippage tolerance in basis points")
	cmd.PersistentFlags().StringVar(&s.flags.KeySource, "key-source", "", "Signing key source (auto|env|file|keystore)")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&s.flags.NoHistory, "no-history", false, "Do not journal executions")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newBridgeCommand())
	cmd.AddCommand(s.newTransferCommand())
	cmd.AddCommand(s.newStakeCommand())
	cmd.AddCommand(s.newUnstakeCommand())
	cmd.AddCommand(s.newQuoteCommand())
	cmd.AddCommand(s.newExecuteCommand())
	cmd.AddCommand(s.newProvidersCommand())
	cmd.AddCommand(s.newNetworksCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newServeCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// buildStack wires the execution pipeline. Everything heavyweight underneath
// is lazy: RPC connections dial on first use and signing keys load on first
// signature, so read-only commands never touch either.
func (s *runtimeState) buildStack() error {
	settings := s.settings
	httpClient := httpx.New(settings.Timeout, settings.Retries)
	s.pool = chain.NewPool(settings.RPCOverrides, settings.SolanaRPCURL)

	readerFor := func(ctx context.Context, network id.Chain) (chain.Reader, error) {
		return s.pool.Reader(ctx, network)
	}
	resolver := token.NewResolver(func(ctx context.Context, network id.Chain) (token.MetadataReader, error) {
		return s.pool.EVM(ctx, network)
	})
	allowanceReader := func(ctx context.Context, network id.Chain) (allowance.Reader, error) {
		return s.pool.EVM(ctx, network)
	}

	registry := providers.NewRegistry()
	for _, p := range []providers.Provider{
		jupiter.New(httpClient, settings.JupiterAPIKey),
		lifi.New(httpClient, settings.LiFiAPIKey),
		across.New(httpClient),
		lido.New(),
	} {
		if err := registry.Register(p); err != nil {
			return apperr.Wrap(apperr.StepInitialization, "register provider", err)
		}
	}

	localWallet := wallet.NewLocalWallet(s.pool, wallet.LocalWalletOptions{
		KeySource: settings.KeySource,
	})

	if s.quotes == nil {
		s.quotes = quote.NewStore(s.log, quote.WithTTL(settings.QuoteTTL))
	}

	opts := engine.Options{
		Registry:  registry,
		Resolver:  resolver,
		Quotes:    s.quotes,
		Adjuster:  gas.NewAdjuster(readerFor, s.log),
		Validator: balance.NewValidator(readerFor),
		Allowance: allowance.NewManager(allowanceReader),
		Executor:  executor.New(localWallet, s.log),
		Wallet:    localWallet,
		Solana:    s.pool.Solana(),
		Log:       s.log,
	}
	if s.journal != nil {
		opts.Journal = s.journal
	}
	s.engine = engine.New(opts)
	return nil
}

func newLogger(w io.Writer, level string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(w)
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.WarnLevel
	}
	logger.SetLevel(parsed)
	return logrus.NewEntry(logger)
}

func commandExecutes(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "swap", "bridge", "transfer", "stake", "unstake", "execute":
		return true
	default:
		return false
	}
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func (s *runtimeState) emit(data any) error {
	return out.Render(s.runner.stdout, data, s.settings.OutputMode)
}

// opContext bounds quote-and-execute flows, which include receipt
// confirmation and so outlive the per-request HTTP timeout.
func (s *runtimeState) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.settings.ConfirmTimeout+s.settings.Timeout)
}
