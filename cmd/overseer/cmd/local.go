package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/solatis/overseer/internal/depgraph"
	"github.com/solatis/overseer/internal/rules"
	"github.com/solatis/overseer/internal/ruleset"
	"github.com/solatis/overseer/internal/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Commands in this file work on a rule-set file without a server.

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one action against a rule-set file",
	Example: `  overseer evaluate --rules rules.yaml --action '{type: deploy, tool: kubectl}' --context '{env: prod}'
  overseer evaluate --rules rules.yaml --action @action.json`,
	RunE: runEvaluate,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Validate a rule-set file and report its dependency structure",
	RunE:  runAnalyze,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize [RULE_ID...]",
	Short: "Show condition optimizations for rules in a rule-set file",
	RunE:  runOptimize,
}

func init() {
	for _, c := range []*cobra.Command{evaluateCmd, analyzeCmd, optimizeCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("rules", "", "rule-set file (defaults to rules.path)")
	}
	evaluateCmd.Flags().String("action", "", "proposed action as YAML/JSON, or @file")
	evaluateCmd.Flags().String("context", "", "evaluation context as YAML/JSON, or @file")
	evaluateCmd.Flags().Bool("business", false, "apply business rules to the context instead of deciding an action")
	_ = evaluateCmd.MarkFlagRequired("action")
}

// localEngine loads the rule-set file into a fresh engine.
func localEngine(cmd *cobra.Command) (*rules.Engine, *ruleset.RuleSet, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("rules") {
		cfg.Rules.Path, _ = cmd.Flags().GetString("rules")
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	rs, err := ruleset.LoadFile(cfg.Rules.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := rs.Install(engine); err != nil {
		return nil, nil, err
	}
	return engine, rs, nil
}

// readDocument decodes an inline YAML/JSON document, or the file named
// after a leading '@'.
func readDocument(arg string, dest any) error {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data = b
	}
	return yaml.Unmarshal(data, dest)
}

type evaluateOutput struct {
	Result   *types.EvaluationResult    `json:"result,omitempty"`
	Business *rules.BusinessRulesResult `json:"business,omitempty"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	engine, _, err := localEngine(cmd)
	if err != nil {
		return err
	}

	var evalCtx types.Context
	if raw, _ := cmd.Flags().GetString("context"); raw != "" {
		if err := readDocument(raw, &evalCtx); err != nil {
			return fmt.Errorf("invalid --context: %w", err)
		}
	}

	if business, _ := cmd.Flags().GetBool("business"); business {
		res, err := engine.ApplyBusinessRules(cmd.Context(), evalCtx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), evaluateOutput{Business: res})
	}

	var action types.ProposedAction
	raw, _ := cmd.Flags().GetString("action")
	if err := readDocument(raw, &action); err != nil {
		return fmt.Errorf("invalid --action: %w", err)
	}
	res, err := engine.EvaluateAction(cmd.Context(), action, evalCtx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), evaluateOutput{Result: res})
}

type analyzeOutput struct {
	Rules      int                       `json:"rules"`
	Issues     []rules.Issue             `json:"issues"`
	Validation depgraph.ValidationResult `json:"validation"`
	Order      depgraph.Ordering         `json:"executionOrder"`
	Graph      *depgraph.Graph           `json:"graph"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("rules") {
		cfg.Rules.Path, _ = cmd.Flags().GetString("rules")
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	// Parse only: an invalid rule set is still worth analysing.
	rs, err := ruleset.LoadFile(cfg.Rules.Path)
	if err != nil {
		return err
	}

	g := depgraph.Analyze(rs.Rules)
	out := analyzeOutput{
		Rules:      len(rs.Rules),
		Issues:     rs.Issues(engine),
		Validation: g.Validate(),
		Order:      g.ExecutionOrder(),
		Graph:      g,
	}
	if out.Issues == nil {
		out.Issues = []rules.Issue{}
	}
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if rules.HasErrors(out.Issues) || !out.Validation.Valid {
		return fmt.Errorf("rule set %s has errors", cfg.Rules.Path)
	}
	return nil
}

type optimizeOutput struct {
	RuleID types.RuleID             `json:"ruleId"`
	Result rules.OptimizationResult `json:"result"`
}

func runOptimize(cmd *cobra.Command, args []string) error {
	engine, rs, err := localEngine(cmd)
	if err != nil {
		return err
	}

	targets := rs.Rules
	if len(args) > 0 {
		targets = targets[:0:0]
		for _, id := range args {
			r, err := engine.GetRule(types.RuleID(id))
			if err != nil {
				return err
			}
			targets = append(targets, r)
		}
	}

	out := make([]optimizeOutput, 0, len(targets))
	for _, r := range targets {
		_, res := engine.OptimizeRule(r)
		out = append(out, optimizeOutput{RuleID: r.ID, Result: res})
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
