package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zen-systems/tiergate/pkg/adapter"
	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/config"
	"github.com/zen-systems/tiergate/pkg/history"
	"github.com/zen-systems/tiergate/pkg/policy"
	"github.com/zen-systems/tiergate/pkg/router"
)

var (
	configFile string
	debugFlag  bool
)

func debugf(format string, args ...any) {
	if debugFlag {
		log.Printf(format, args...)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tiergate",
		Short: "Cost-tiered LLM routing with cross-checking and escalation",
		Long: `Tiergate routes prompts to the cheapest capable model tier, validates
	high-complexity answers across backends, and escalates conflicts to
	stronger tiers under an explicit cost policy.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to router config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log routing diagnostics to stderr")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(backendsCmd())
	rootCmd.AddCommand(policiesCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func routeCmd() *cobra.Command {
	var tierFlag string
	var taskFlag string
	var fileFlag string
	var roleFlag string
	var userFlag string
	var qualityFlag string
	var crossCheck bool
	var autoEscalate bool
	var confirmFlag bool
	var dryRun bool
	var noRecord bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "route [prompt]",
		Short: "Route a prompt through the tier pipeline",
		Long: `Classifies the prompt, evaluates routing policies, and sends it to the
	cheapest capable backend in the selected tier.

	Use --tier to bypass classification and policy tier actions entirely,
	for example to confirm a suggested escalation, or --confirm to accept
	a suggested escalation in the same invocation. Use --cross-check and
	--auto-escalate to override the configured defaults for one call, and
	--dry-run to show the decision without calling any backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			matcher, err := loadMatcher(cfg)
			if err != nil {
				return err
			}
			invoker, err := createInvokers(cfg)
			if err != nil {
				return err
			}

			r := router.New(cat, invoker, matcher, cfg.Gate(), cfg.Router)

			if dryRun {
				return printPreview(r.PreviewPolicy(router.Request{Prompt: prompt}, router.RoutingContext{
					TaskType: taskFlag,
					Quality:  qualityFlag,
					FilePath: fileFlag,
					UserRole: roleFlag,
				}))
			}

			rc := router.RoutingContext{
				TaskType: taskFlag,
				Quality:  qualityFlag,
				FilePath: fileFlag,
				UserRole: roleFlag,
			}
			if tierFlag != "" {
				tier, err := catalog.ParseTier(tierFlag)
				if err != nil {
					return err
				}
				rc.PreferredTier = &tier
			}
			if cmd.Flags().Changed("cross-check") {
				rc.EnableCrossCheck = &crossCheck
			}
			if cmd.Flags().Changed("auto-escalate") {
				rc.EnableAutoEscalate = &autoEscalate
			}

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			outcome, err := r.RouteRequest(ctx, router.Request{Prompt: prompt, User: userFlag}, rc)
			if err != nil {
				return err
			}

			debugf("route: %s", outcome.Summary)
			if outcome.Policy != "" {
				debugf("policy: %s (risk %s)", outcome.Policy, outcome.Risk)
			}

			if outcome.RequiresConfirmation {
				fmt.Fprintf(os.Stderr, "%s\n", outcome.EscalationReason)
				if !confirmFlag {
					fmt.Fprintf(os.Stderr, "Re-run with --confirm (or --tier %s with the prompt below) to escalate.\n\n", outcome.SuggestedTier)
					fmt.Println(outcome.OptimizedPrompt)
					return nil
				}

				fmt.Fprintf(os.Stderr, "Confirming escalation to %s.\n", outcome.SuggestedTier)
				outcome, err = r.RouteRequest(ctx,
					router.Request{Prompt: outcome.OptimizedPrompt, User: userFlag},
					router.RoutingContext{TaskType: taskFlag, PreferredTier: &outcome.SuggestedTier})
				if err != nil {
					return err
				}
				debugf("route: %s", outcome.Summary)
			}

			fmt.Println(outcome.Content)

			if !noRecord {
				recordOutcome(prompt, outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tierFlag, "tier", "", "dispatch directly to a tier (T0-T3), skipping classification")
	cmd.Flags().StringVar(&taskFlag, "task", "", "task type (code, reasoning, vision)")
	cmd.Flags().StringVar(&fileFlag, "file", "", "file path the request concerns, for policy matching")
	cmd.Flags().StringVar(&roleFlag, "role", "", "requesting user role, for policy matching")
	cmd.Flags().StringVar(&userFlag, "user", "", "user identity for budget accounting")
	cmd.Flags().StringVar(&qualityFlag, "quality", "", "quality preference (normal, high, critical)")
	cmd.Flags().BoolVar(&crossCheck, "cross-check", false, "override cross-check for this call")
	cmd.Flags().BoolVar(&autoEscalate, "auto-escalate", false, "override auto-escalation for this call")
	cmd.Flags().BoolVar(&confirmFlag, "confirm", false, "accept a suggested escalation without re-running")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the routing decision without calling any backend")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "skip writing the outcome to history")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall deadline for the route (0 disables)")

	return cmd
}

// recordOutcome appends the outcome to the local history store. History
// is best-effort; a failure never fails the route.
func recordOutcome(prompt string, outcome *router.Outcome) {
	store, err := history.NewStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "history unavailable: %v\n", err)
		return
	}
	rec := history.Record{
		PromptSHA256: history.HashPrompt(prompt),
		BackendID:    outcome.BackendID,
		Provider:     outcome.Provider,
		Tier:         outcome.Tier,
		Complexity:   outcome.Complexity.String(),
		Policy:       outcome.Policy,
		InputTokens:  outcome.InputTokens,
		OutputTokens: outcome.OutputTokens,
		Cost:         outcome.Cost,
		Summary:      outcome.Summary,
	}
	if _, err := store.StoreOutput([]byte(outcome.Content)); err != nil {
		fmt.Fprintf(os.Stderr, "history write failed: %v\n", err)
		return
	}
	if err := store.Append(rec); err != nil {
		fmt.Fprintf(os.Stderr, "history write failed: %v\n", err)
	}
}

func previewCmd() *cobra.Command {
	var taskFlag string
	var fileFlag string
	var roleFlag string
	var qualityFlag string

	cmd := &cobra.Command{
		Use:   "preview [prompt]",
		Short: "Show the routing decision without calling any backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			matcher, err := loadMatcher(cfg)
			if err != nil {
				return err
			}

			r := router.New(cat, adapter.NewMockInvoker(), matcher, nil, cfg.Router)
			return printPreview(r.PreviewPolicy(router.Request{Prompt: args[0]}, router.RoutingContext{
				TaskType: taskFlag,
				Quality:  qualityFlag,
				FilePath: fileFlag,
				UserRole: roleFlag,
			}))
		},
	}

	cmd.Flags().StringVar(&taskFlag, "task", "", "task type (code, reasoning, vision)")
	cmd.Flags().StringVar(&fileFlag, "file", "", "file path the request concerns")
	cmd.Flags().StringVar(&roleFlag, "role", "", "requesting user role")
	cmd.Flags().StringVar(&qualityFlag, "quality", "", "quality preference")

	return cmd
}

func printPreview(preview *router.Preview) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "complexity\t%s\n", preview.Complexity)
	fmt.Fprintf(w, "tier\t%s\n", preview.Tier)
	if preview.Policy != "" {
		fmt.Fprintf(w, "policy\t%s\n", preview.Policy)
		fmt.Fprintf(w, "rule\t%s\n", preview.Rule)
		fmt.Fprintf(w, "risk\t%s\n", preview.Risk)
	}
	if preview.Action != nil {
		fmt.Fprintf(w, "action\t%s\n", preview.Action.Type)
	}
	if preview.Denied {
		fmt.Fprintf(w, "denied\ttrue\n")
	}
	return w.Flush()
}

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the backend catalog by tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tBACKEND\tPROVIDER\tCAPABILITIES\t$/1K IN\t$/1K OUT\tSTATUS")

			for t := catalog.Tier0; t <= catalog.MaxTier; t++ {
				for _, b := range cat.BackendsForTier(t) {
					status := "no key"
					if cfg.HasProvider(b.Provider) || b.Provider == "mock" {
						status = "ready"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.5f\t%.5f\t%s\n",
						t, b.ID, b.Provider, b.Capabilities, b.PricePer1KIn, b.PricePer1KOut, status)
				}
			}
			return w.Flush()
		},
	}
}

func policiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List active routing policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			policies, err := loadPolicies(cfg)
			if err != nil {
				return err
			}

			sort.SliceStable(policies, func(i, j int) bool {
				return policies[i].Priority > policies[j].Priority
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "POLICY\tPRIORITY\tENABLED\tRULE\tACTION\tRISK")
			for _, p := range policies {
				for _, r := range p.Rules {
					action := r.Action.Type.String()
					if r.Action.Type == policy.ActionRouteTo || r.Action.Type == policy.ActionDowngrade {
						action += " " + r.Action.TargetTier.String()
					}
					fmt.Fprintf(w, "%s\t%d\t%t\t%s\t%s\t%s\n",
						p.Name, p.Priority, p.Enabled, r.Name, action, r.Risk)
				}
			}
			return w.Flush()
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent routing outcomes and total spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore("")
			if err != nil {
				return err
			}
			records, err := store.Recent(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tTIER\tBACKEND\tTOKENS\tCOST\tPOLICY")
			for _, rec := range records {
				when := time.Unix(rec.Timestamp, 0).UTC().Format(time.RFC3339)
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%.5f\t%s\n",
					when, rec.Tier, rec.BackendID, rec.InputTokens, rec.OutputTokens, rec.Cost, rec.Policy)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			total, err := store.TotalCost()
			if err != nil {
				return err
			}
			fmt.Printf("\ntotal recorded spend: $%.5f\n", total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of records to show")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [router.yaml]",
		Short: "Validate a router config and its catalog and policy files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := config.LoadRouterConfig(args[0])
			if err != nil {
				return err
			}
			if rc.CatalogFile != "" {
				if _, err := catalog.Load(rc.CatalogFile); err != nil {
					return fmt.Errorf("catalog: %w", err)
				}
			}
			if rc.PolicyFile != "" {
				if _, err := policy.LoadPolicies(rc.PolicyFile); err != nil {
					return fmt.Errorf("policies: %w", err)
				}
			}
			fmt.Println("Router config is valid.")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithRouterFile(configFile)
	}
	return config.Load()
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Router != nil && cfg.Router.CatalogFile != "" {
		cat, err := catalog.Load(cfg.Router.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		return cat, nil
	}
	return catalog.Default(), nil
}

func loadPolicies(cfg *config.Config) ([]policy.Policy, error) {
	policies := policy.DefaultPolicies()
	if cfg.Router != nil && cfg.Router.PolicyFile != "" {
		extra, err := policy.LoadPolicies(cfg.Router.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
		policies = append(policies, extra...)
	}
	return policies, nil
}

func loadMatcher(cfg *config.Config) (*policy.Matcher, error) {
	policies, err := loadPolicies(cfg)
	if err != nil {
		return nil, err
	}
	return policy.NewMatcher(policies)
}

// createInvokers builds the provider registry from configured API keys.
// The mock invoker is always present so catalogs that reference it work
// without any key.
func createInvokers(cfg *config.Config) (*adapter.Registry, error) {
	reg := adapter.NewRegistry(adapter.NewMockInvoker())

	if cfg.AnthropicAPIKey != "" {
		inv, err := adapter.NewAnthropicInvoker(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic invoker: %w", err)
		}
		reg.Register(inv)
	}
	if cfg.OpenAIAPIKey != "" {
		inv, err := adapter.NewOpenAIInvoker(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai invoker: %w", err)
		}
		reg.Register(inv)
	}
	if cfg.GoogleAPIKey != "" {
		inv, err := adapter.NewGoogleInvoker(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google invoker: %w", err)
		}
		reg.Register(inv)
	}
	if cfg.DeepSeekAPIKey != "" {
		inv, err := adapter.NewDeepSeekInvoker(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek invoker: %w", err)
		}
		reg.Register(inv)
	}

	return reg, nil
}
