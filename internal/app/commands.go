package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrivas/defi-agent/internal/engine"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/history"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/schema"
	"github.com/mrivas/defi-agent/internal/version"
)

type swapFlags struct {
	network     string
	fromToken   string
	toToken     string
	amount      string
	quoteType   string
	slippageBps int64
	provider    string
}

func (s *runtimeState) addSwapFlags(cmd *cobra.Command, f *swapFlags) {
	cmd.Flags().StringVar(&f.network, "network", "", "Network (slug, CAIP-2, or EVM chain id)")
	cmd.Flags().StringVar(&f.fromToken, "from", "", "Token to sell (symbol or address)")
	cmd.Flags().StringVar(&f.toToken, "to", "", "Token to buy (symbol or address)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in decimal units")
	cmd.Flags().StringVar(&f.quoteType, "type", "input", "Which side the amount fixes (input|output)")
	cmd.Flags().Int64Var(&f.slippageBps, "slippage-bps", 0, "Slippage tolerance in basis points")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Force a specific provider")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
}

func (s *runtimeState) swapParams(f swapFlags) (engine.SwapParams, error) {
	quoteType := model.QuoteType(strings.ToLower(strings.TrimSpace(f.quoteType)))
	switch quoteType {
	case "", model.QuoteTypeInput, model.QuoteTypeOutput:
	default:
		return engine.SwapParams{}, apperr.New(apperr.StepToolExecution, "type must be input or output")
	}
	slippage := f.slippageBps
	if slippage <= 0 {
		slippage = s.settings.SlippageBps
	}
	return engine.SwapParams{
		Network:     f.network,
		FromToken:   f.fromToken,
		ToToken:     f.toToken,
		Amount:      f.amount,
		Type:        quoteType,
		SlippageBps: slippage,
		Provider:    f.provider,
	}, nil
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var f swapFlags
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap tokens on one network (quote, validate, execute, confirm)",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := s.swapParams(f)
			if err != nil {
				return err
			}
			ctx, cancel := s.opContext()
			defer cancel()
			envelope, err := s.engine.Swap(ctx, params)
			if err != nil {
				return err
			}
			return s.emit(envelope)
		},
	}
	s.addSwapFlags(cmd, &f)
	return cmd
}

type bridgeFlags struct {
	fromNetwork string
	toNetwork   string
	fromToken   string
	toToken     string
	amount      string
	recipient   string
	slippageBps int64
	provider    string
}

func (s *runtimeState) addBridgeFlags(cmd *cobra.Command, f *bridgeFlags) {
	cmd.Flags().StringVar(&f.fromNetwork, "from-network", "", "Source network")
	cmd.Flags().StringVar(&f.toNetwork, "to-network", "", "Destination network")
	cmd.Flags().StringVar(&f.fromToken, "from", "", "Token to send (symbol or address)")
	cmd.Flags().StringVar(&f.toToken, "to", "", "Token to receive (symbol or address)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in decimal units")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Destination address (defaults to the sender)")
	cmd.Flags().Int64Var(&f.slippageBps, "slippage-bps", 0, "Slippage tolerance in basis points")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Force a specific provider")
	_ = cmd.MarkFlagRequired("from-network")
	_ = cmd.MarkFlagRequired("to-network")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
}

func (s *runtimeState) bridgeParams(f bridgeFlags) engine.BridgeParams {
	slippage := f.slippageBps
	if slippage <= 0 {
		slippage = s.settings.SlippageBps
	}
	return engine.BridgeParams{
		FromNetwork: f.fromNetwork,
		ToNetwork:   f.toNetwork,
		FromToken:   f.fromToken,
		ToToken:     f.toToken,
		Amount:      f.amount,
		Recipient:   f.recipient,
		SlippageBps: slippage,
		Provider:    f.provider,
	}
}

func (s *runtimeState) newBridgeCommand() *cobra.Command {
	var f bridgeFlags
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Move tokens across networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			envelope, err := s.engine.Bridge(ctx, s.bridgeParams(f))
			if err != nil {
				return err
			}
			return s.emit(envelope)
		},
	}
	s.addBridgeFlags(cmd, &f)
	return cmd
}

func (s *runtimeState) newTransferCommand() *cobra.Command {
	var network, tokenArg, amount, recipient string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send the native currency or a token to an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			envelope, err := s.engine.Transfer(ctx, engine.TransferParams{
				Network:   network,
				Token:     tokenArg,
				Amount:    amount,
				Recipient: recipient,
			})
			if err != nil {
				return err
			}
			return s.emit(envelope)
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Network (slug, CAIP-2, or EVM chain id)")
	cmd.Flags().StringVar(&tokenArg, "token", "", "Token to send (symbol or address; defaults to the native currency)")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in decimal units")
	cmd.Flags().StringVar(&recipient, "to", "", "Recipient address")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (s *runtimeState) stakeParams(network, tokenArg, amount, provider string) engine.StakeParams {
	return engine.StakeParams{
		Network:  network,
		Token:    tokenArg,
		Amount:   amount,
		Provider: provider,
	}
}

func (s *runtimeState) newStakeCommand() *cobra.Command {
	var network, tokenArg, amount, provider string
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake the native currency with a staking provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			envelope, err := s.engine.Stake(ctx, s.stakeParams(network, tokenArg, amount, provider))
			if err != nil {
				return err
			}
			return s.emit(envelope)
		},
	}
	addStakeFlags(cmd, &network, &tokenArg, &amount, &provider)
	return cmd
}

func (s *runtimeState) newUnstakeCommand() *cobra.Command {
	var network, tokenArg, amount, provider string
	cmd := &cobra.Command{
		Use:   "unstake",
		Short: "Request withdrawal of a staked position",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			envelope, err := s.engine.Unstake(ctx, s.stakeParams(network, tokenArg, amount, provider))
			if err != nil {
				return err
			}
			return s.emit(envelope)
		},
	}
	addStakeFlags(cmd, &network, &tokenArg, &amount, &provider)
	return cmd
}

func addStakeFlags(cmd *cobra.Command, network, tokenArg, amount, provider *string) {
	cmd.Flags().StringVar(network, "network", "", "Network (slug, CAIP-2, or EVM chain id)")
	cmd.Flags().StringVar(tokenArg, "token", "", "Token to stake or unstake (defaults to the native currency)")
	cmd.Flags().StringVar(amount, "amount", "", "Amount in decimal units")
	cmd.Flags().StringVar(provider, "provider", "", "Force a specific provider")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("amount")
}

// newQuoteCommand groups the quote-only variants of every operation plus
// retrieval of a stored quote. Execution happens later through execute.
func (s *runtimeState) newQuoteCommand() *cobra.Command {
	root := &cobra.Command{Use: "quote", Short: "Request quotes without executing them"}

	var sf swapFlags
	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a same-network swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := s.swapParams(sf)
			if err != nil {
				return err
			}
			ctx, cancel := s.opContext()
			defer cancel()
			q, err := s.engine.QuoteSwap(ctx, params)
			if err != nil {
				return err
			}
			return s.emit(q)
		},
	}
	s.addSwapFlags(swapCmd, &sf)

	var bf bridgeFlags
	bridgeCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Quote a cross-network transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			q, err := s.engine.QuoteBridge(ctx, s.bridgeParams(bf))
			if err != nil {
				return err
			}
			return s.emit(q)
		},
	}
	s.addBridgeFlags(bridgeCmd, &bf)

	var stakeNetwork, stakeToken, stakeAmount, stakeProvider string
	stakeCmd := &cobra.Command{
		Use:   "stake",
		Short: "Quote a staking deposit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			q, err := s.engine.QuoteStake(ctx, s.stakeParams(stakeNetwork, stakeToken, stakeAmount, stakeProvider))
			if err != nil {
				return err
			}
			return s.emit(q)
		},
	}
	addStakeFlags(stakeCmd, &stakeNetwork, &stakeToken, &stakeAmount, &stakeProvider)

	var unstakeNetwork, unstakeToken, unstakeAmount, unstakeProvider string
	unstakeCmd := &cobra.Command{
		Use:   "unstake",
		Short: "Quote a staking withdrawal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			q, err := s.engine.QuoteUnstake(ctx, s.stakeParams(unstakeNetwork, unstakeToken, unstakeAmount, unstakeProvider))
			if err != nil {
				return err
			}
			return s.emit(q)
		},
	}
	addStakeFlags(unstakeCmd, &unstakeNetwork, &unstakeToken, &unstakeAmount, &unstakeProvider)

	var showID string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show a stored quote by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := s.engine.GetQuote(showID)
			if err != nil {
				return err
			}
			return s.emit(q)
		},
	}
	showCmd.Flags().StringVar(&showID, "quote-id", "", "Quote id returned by a quote command")
	_ = showCmd.MarkFlagRequired("quote-id")

	root.AddCommand(swapCmd)
	root.AddCommand(bridgeCmd)
	root.AddCommand(stakeCmd)
	root.AddCommand(unstakeCmd)
	root.AddCommand(showCmd)
	return root
}

func (s *runtimeState) newExecuteCommand() *cobra.Command {
	var quoteID string
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a previously stored quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.opContext()
			defer cancel()
			envelope, err := s.engine.ExecuteQuote(ctx, quoteID)
			if err != nil {
				return err
			}
			return s.emit(envelope)
		},
	}
	cmd.Flags().StringVar(&quoteID, "quote-id", "", "Quote id returned by a quote command")
	_ = cmd.MarkFlagRequired("quote-id")
	return cmd
}

func (s *runtimeState) newProvidersCommand() *cobra.Command {
	root := &cobra.Command{Use: "providers", Short: "Provider commands"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered providers, capabilities, and supported networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emit(s.engine.Providers())
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newNetworksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List networks at least one provider supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emit(s.engine.SupportedNetworks())
		},
	}
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	root := &cobra.Command{Use: "history", Short: "Execution history"}
	var operation string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal := s.journal
			if journal == nil {
				opened, err := history.Open(s.settings.HistoryPath, s.settings.HistoryLockPath)
				if err != nil {
					return apperr.Wrap(apperr.StepInitialization, "open execution history", err)
				}
				s.journal = opened
				journal = opened
			}
			records, err := journal.List(operation, limit)
			if err != nil {
				return err
			}
			return s.emit(records)
		},
	}
	list.Flags().StringVar(&operation, "operation", "", "Filter by operation (swap|bridge|transfer|stake|unstake|execute)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum records to return")
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path, s.engine.SupportedNetworks())
			if err != nil {
				return apperr.Wrap(apperr.StepToolExecution, "build schema", err)
			}
			return s.emit(data)
		},
	}
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}
