package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/relaygate/pkg/adapter"
	"github.com/zen-systems/relaygate/pkg/capability"
	"github.com/zen-systems/relaygate/pkg/config"
	"github.com/zen-systems/relaygate/pkg/dispatch"
	"github.com/zen-systems/relaygate/pkg/metrics"
	"github.com/zen-systems/relaygate/pkg/normalize"
	"github.com/zen-systems/relaygate/pkg/pricing"
	"github.com/zen-systems/relaygate/pkg/schema"
	"github.com/zen-systems/relaygate/pkg/tokens"
	"github.com/zen-systems/relaygate/pkg/usage"
)

var (
	configFile   string
	verboseFlag  bool
	metricsFlag  bool
	providerFlag string
	modelFlag    string
	byokFlag     string

	logger      *slog.Logger
	promReg     *prometheus.Registry
	gateMetrics *metrics.Metrics
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relaygate",
		Short: "Multi-provider AI gateway core",
		Long: `Relaygate translates canonical chat and embeddings requests into
	provider calls. It clamps request parameters into what each provider
accepts, reconciles the usage every provider reports differently and
prices the result.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verboseFlag)
			promReg = prometheus.NewRegistry()
			gateMetrics = metrics.New(promReg)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if metricsFlag {
				dumpMetrics(os.Stderr, promReg)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.relaygate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "print collected metrics on exit")

	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(embedCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(providersCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("error: %v", err)
		stop()
		os.Exit(1)
	}
}

func normalizeCmd() *cobra.Command {
	var protocolFlag string
	var capsFile string
	var maxOutput int

	cmd := &cobra.Command{
		Use:   "normalize [request.json]",
		Short: "Clamp a chat request into a provider's parameter space",
		Long: `Reads a canonical chat request (from a file, or stdin with "-") and
	prints the request the provider would receive. Adjusted fields are
	listed on stderr.

	Capability metadata comes from --capabilities or, when omitted, from
	the config file entry for the provider and model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerFlag == "" {
				return fmt.Errorf("--provider is required")
			}
			protocol, ok := normalize.ParseProtocol(protocolFlag)
			if !ok {
				return fmt.Errorf("unknown protocol %q", protocolFlag)
			}

			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			var req schema.ChatRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("invalid chat request: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			rc := cfg.RoutingConfig

			opts := normalize.Options{
				Capabilities:            rc.Catalog().Lookup(providerFlag, req.Model),
				ProviderMaxOutputTokens: rc.MaxOutputTokens(providerFlag),
				ModelForReasoning:       rc.Slug(providerFlag, req.Model),
			}
			if capsFile != "" {
				caps, err := loadCapabilities(capsFile)
				if err != nil {
					return err
				}
				opts.Capabilities = caps
			}
			if maxOutput > 0 {
				opts.ProviderMaxOutputTokens = &maxOutput
			}

			out := normalize.Normalize(&req, providerFlag, protocol, opts)
			changes := normalize.Changes(&req, out)
			gateMetrics.ObserveClamps(paramNames(changes))

			if len(changes) == 0 {
				color.New(color.FgGreen).Fprintln(os.Stderr, "no parameters adjusted")
			}
			for _, id := range changes {
				color.New(color.FgYellow).Fprintf(os.Stderr, "adjusted %s: %s -> %s\n", id, paramValue(&req, id), paramValue(out, id))
			}
			return printJSON(out)
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "target provider id")
	cmd.Flags().StringVar(&protocolFlag, "protocol", "", "inbound wire protocol (chat, responses, messages)")
	cmd.Flags().StringVar(&capsFile, "capabilities", "", "capability metadata file (YAML or JSON)")
	cmd.Flags().IntVar(&maxOutput, "max-output", 0, "provider output-token ceiling")

	return cmd
}

func usageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage [payload.json]",
		Short: "Reconcile a raw provider usage payload",
		Long: `Maps a usage object as reported by any supported provider into the
	canonical usage record. With --provider and --model the record is also
	priced against the configured rate card.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			u, ok := usage.Reconcile(data)
			if !ok {
				color.Yellow("no usage signal in payload")
				return nil
			}

			out := struct {
				Usage *schema.Usage `json:"usage"`
				Bill  *pricing.Bill `json:"bill,omitempty"`
			}{Usage: u}

			if providerFlag != "" {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				card, _ := cfg.RoutingConfig.PricingTable().For(providerFlag, modelFlag)
				bill := pricing.Compute(u, card)
				out.Bill = &bill
			}
			return printJSON(out)
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "provider id for pricing")
	cmd.Flags().StringVar(&modelFlag, "model", "", "model id for pricing")

	return cmd
}

func chatCmd() *cobra.Command {
	var protocolFlag string
	var systemFlag string
	var effortFlag string
	var temperature float64
	var maxTokens int
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt through the gateway",
		Long: `Builds a canonical chat request, normalizes it for the provider and
	executes it with retry and fallback. The model may be an alias; the
	provider is inferred from the model when omitted. Use provider "mock"
	to run without credentials.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			protocol, ok := normalize.ParseProtocol(protocolFlag)
			if !ok {
				return fmt.Errorf("unknown protocol %q", protocolFlag)
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			target, err := resolveTarget(cfg, providerFlag, modelFlag)
			if err != nil {
				return err
			}

			req := &schema.ChatRequest{Model: target.Model}
			if systemFlag != "" {
				req.Messages = append(req.Messages, schema.Message{Role: schema.RoleSystem, Content: systemFlag})
			}
			req.Messages = append(req.Messages, schema.Message{Role: schema.RoleUser, Content: args[0]})
			if cmd.Flags().Changed("temperature") {
				req.Temperature = schema.Float(temperature)
			}
			if maxTokens > 0 {
				req.MaxTokens = schema.Int(maxTokens)
			}
			if effortFlag != "" {
				req.Reasoning = &schema.Reasoning{Effort: effortFlag}
			}

			d := newDispatcher(cfg)
			out, err := d.Dispatch(cmd.Context(), dispatch.Call{
				Provider: target.Provider,
				Model:    target.Model,
				Endpoint: adapter.EndpointChat,
				Protocol: protocol,
				Chat:     req,
				BYOK:     byokKey(target.Provider),
			})
			if out != nil {
				reportAttempts(out)
			}
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(out)
			}
			var completion schema.ChatCompletion
			if err := json.Unmarshal(out.Result.Body, &completion); err != nil {
				return fmt.Errorf("unexpected response body: %w", err)
			}
			fmt.Println(completion.Text())
			printUsage(out.Result.Usage, out.Result.Bill)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "provider id (inferred from model when omitted)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "model id or alias")
	cmd.Flags().StringVar(&byokFlag, "byok", "", "use this provider key instead of the configured one")
	cmd.Flags().StringVar(&protocolFlag, "protocol", "", "inbound wire protocol (chat, responses, messages)")
	cmd.Flags().StringVar(&systemFlag, "system", "", "system prompt")
	cmd.Flags().StringVar(&effortFlag, "effort", "", "reasoning effort (none, minimal, low, medium, high, xhigh)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "output token ceiling")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full dispatch outcome as JSON")

	return cmd
}

func embedCmd() *cobra.Command {
	var dimensions int
	var taskType string
	var title string

	cmd := &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed one or more texts",
		Long: `Sends an embeddings request through the gateway. A single text uses the
	single-input wire shape, several texts use the batch shape.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			model := modelFlag
			if model == "" {
				model = "embed"
			}
			target, err := resolveTarget(cfg, providerFlag, model)
			if err != nil {
				return err
			}

			req := schema.EmbeddingsRequest{Model: target.Model, Input: schema.BatchInput(args...)}
			if len(args) == 1 {
				req.Input = schema.SingleInput(args[0])
			}
			if dimensions > 0 || taskType != "" || title != "" {
				g := &schema.GoogleEmbeddingOptions{TaskType: taskType, Title: title}
				if dimensions > 0 {
					g.OutputDimensionality = schema.Int(dimensions)
				}
				req.Options = &schema.EmbeddingOptions{Google: g}
			}
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			d := newDispatcher(cfg)
			out, err := d.Dispatch(cmd.Context(), dispatch.Call{
				Provider: target.Provider,
				Model:    target.Model,
				Endpoint: adapter.EndpointEmbeddings,
				Body:     body,
				BYOK:     byokKey(target.Provider),
			})
			if out != nil {
				reportAttempts(out)
			}
			if err != nil {
				return err
			}
			if out.Result.UsageProbe != adapter.ProbeSkipped {
				color.New(color.FgCyan).Fprintf(os.Stderr, "usage from token-count probe: %s\n", out.Result.UsageProbe)
			}
			if err := printJSON(out.Result.Body); err != nil {
				return err
			}
			printUsage(out.Result.Usage, out.Result.Bill)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "provider id (inferred from model when omitted)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "model id or alias (default \"embed\")")
	cmd.Flags().StringVar(&byokFlag, "byok", "", "use this provider key instead of the configured one")
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "output dimensionality")
	cmd.Flags().StringVar(&taskType, "task-type", "", "embedding task hint (e.g. RETRIEVAL_QUERY)")
	cmd.Flags().StringVar(&title, "title", "", "document title hint")

	return cmd
}

func estimateCmd() *cobra.Command {
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "estimate [prompt]",
		Short: "Estimate tokens and cost locally",
		Long: `Counts prompt tokens with the model's tiktoken encoding (cl100k_base
	when unknown) and prices the projection, taking --max-tokens as the
	output. No provider is called.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			model := config.NewModelAliases(cfg.RoutingConfig).Resolve(modelFlag)
			req := &schema.ChatRequest{
				Model:    model,
				Messages: []schema.Message{{Role: schema.RoleUser, Content: args[0]}},
			}
			if maxTokens > 0 {
				req.MaxTokens = schema.Int(maxTokens)
			}

			projected := tokens.New(logger).Project(req)
			provider := providerFlag
			if provider == "" {
				provider = config.NewModelAliases(cfg.RoutingConfig).GetProviderForModel(model)
			}
			card, _ := cfg.RoutingConfig.PricingTable().For(provider, model)
			printUsage(projected, pricing.Compute(projected, card))
			return nil
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "provider id for pricing")
	cmd.Flags().StringVar(&modelFlag, "model", "", "model id or alias")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "projected output tokens")

	return cmd
}

func providersCmd() *cobra.Command {
	var aliasesFlag bool
	var validateFlag bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers, executors, models and key sources",
		Long: `Lists every provider with its endpoints, configured models and
	whether a platform key is available.

	Use --aliases to show aliases and what they resolve to.
	Use --validate to check the default target and fallback chains.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			aliases := config.NewModelAliases(cfg.RoutingConfig)

			if aliasesFlag {
				return showAliases(aliases)
			}
			if validateFlag {
				return validateRouting(aliases, cfg)
			}

			registry := createRegistry(cfg)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tENDPOINTS\tMODELS\tKEY")
			for _, provider := range registry.Providers() {
				var endpoints []string
				for _, ep := range registry.Endpoints(provider) {
					endpoints = append(endpoints, string(ep))
				}
				key := color.RedString("missing")
				switch {
				case provider == "mock":
					key = "not needed"
				case cfg.HasAdapter(provider):
					key = color.GreenString(string(adapter.KeySourceGateway))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", provider, strings.Join(endpoints, ", "),
					strings.Join(aliases.GetProviderModels(provider), ", "), key)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&aliasesFlag, "aliases", false, "show aliases and what they resolve to")
	cmd.Flags().BoolVar(&validateFlag, "validate", false, "validate default target and fallback chains")

	return cmd
}

func showAliases(aliases *config.ModelAliases) error {
	aliasMap := aliases.ListAliases()
	if len(aliasMap) == 0 {
		fmt.Println("No model aliases configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")

	var aliasNames []string
	for name := range aliasMap {
		aliasNames = append(aliasNames, name)
	}
	sort.Strings(aliasNames)

	for _, alias := range aliasNames {
		model := aliasMap[alias]
		fmt.Fprintf(w, "%s\t%s\t%s\n", alias, model, aliases.GetProviderForModel(model))
	}
	return w.Flush()
}

func validateRouting(aliases *config.ModelAliases, cfg *config.Config) error {
	errors := aliases.ValidateRoutingConfig(cfg.RoutingConfig)
	if len(errors) == 0 {
		color.Green("Default target and fallback chains are valid.")
		return nil
	}

	color.Red("Found %d validation errors:", len(errors))
	for _, err := range errors {
		fmt.Fprintf(os.Stderr, "  - %s\n", err)
	}
	return fmt.Errorf("validation failed")
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

func createRegistry(cfg *config.Config) *adapter.Registry {
	rc := cfg.RoutingConfig
	chatOpts := func(provider string) []adapter.ChatOption {
		if url := rc.BaseURL(provider); url != "" {
			return []adapter.ChatOption{adapter.WithBaseURL(url)}
		}
		return nil
	}

	return adapter.NewRegistry(
		adapter.NewOpenAIChat(chatOpts("openai")...),
		adapter.NewDeepSeekChat(chatOpts("deepseek")...),
		adapter.NewAnthropicMessages(chatOpts("anthropic")...),
		adapter.NewGoogleChat(chatOpts("google")...),
		adapter.NewGoogleEmbeddings(rc.BaseURL("google"), nil),
		adapter.NewMock("mock"),
	)
}

func newDispatcher(cfg *config.Config) *dispatch.Dispatcher {
	return dispatch.New(createRegistry(cfg), cfg.RoutingConfig,
		dispatch.WithKeys(adapter.StaticKeys(cfg.APIKeys)),
		dispatch.WithMetrics(gateMetrics),
		dispatch.WithEstimator(tokens.New(logger)),
		dispatch.WithLogger(logger),
	)
}

func resolveTarget(cfg *config.Config, provider, model string) (config.RouteTarget, error) {
	if model == "" {
		if provider != "" {
			return config.RouteTarget{}, fmt.Errorf("--model is required with --provider")
		}
		return cfg.RoutingConfig.Default, nil
	}
	return config.NewModelAliases(cfg.RoutingConfig).Target(provider, model)
}

func byokKey(provider string) *adapter.BYOKKey {
	if byokFlag == "" {
		return nil
	}
	return &adapter.BYOKKey{ID: "cli", Provider: provider, Key: byokFlag}
}

func loadCapabilities(path string) (capability.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var caps capability.Registry
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("invalid capability metadata: %w", err)
	}
	return caps, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
