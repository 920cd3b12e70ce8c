package workflow

import (
	"fmt"
	"strings"
)

// Result is the outcome of a single Validate call. Warnings never affect
// validity; Valid is true exactly when Errors is empty.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// RuleContext is the normalized draft view handed to each rule, plus the
// accumulators rules append to.
type RuleContext struct {
	Name        string
	Nodes       []Node
	Transitions []Transition

	errors   *[]string
	warnings *[]string
}

// AddError records a validation error.
func (c *RuleContext) AddError(message string) {
	*c.errors = append(*c.errors, message)
}

// AddWarning records a validation warning.
func (c *RuleContext) AddWarning(message string) {
	*c.warnings = append(*c.warnings, message)
}

// Rule inspects the draft view and appends zero or more errors or warnings.
// Rules must not assume earlier rules passed.
type Rule func(*RuleContext)

// Engine runs an ordered rule list against drafts. The zero rule set is the
// default structural checks; a custom list replaces the defaults entirely.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{rules: defaultRules()}
}

// NewEngineWithRules returns an engine running exactly the given rules.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Validate runs every rule in order and never panics: a rule that panics is
// converted into an error entry and subsequent rules still run.
func (e *Engine) Validate(draft *Draft) Result {
	ctx := &RuleContext{
		errors:   &[]string{},
		warnings: &[]string{},
	}
	if draft != nil {
		ctx.Name = draft.Name
		ctx.Nodes = draft.Nodes
		ctx.Transitions = draft.Transitions
	}
	if ctx.Nodes == nil {
		ctx.Nodes = []Node{}
	}
	if ctx.Transitions == nil {
		ctx.Transitions = []Transition{}
	}

	for _, rule := range e.rules {
		runRule(rule, ctx)
	}

	return Result{
		Valid:    len(*ctx.errors) == 0,
		Errors:   *ctx.errors,
		Warnings: *ctx.warnings,
	}
}

func runRule(rule Rule, ctx *RuleContext) {
	defer func() {
		if r := recover(); r != nil {
			ctx.AddError(fmt.Sprintf("Validation rule failed: %v", r))
		}
	}()
	rule(ctx)
}

func defaultRules() []Rule {
	return []Rule{
		func(ctx *RuleContext) {
			if strings.TrimSpace(ctx.Name) == "" {
				ctx.AddError("Draft name required")
			}
		},
		func(ctx *RuleContext) {
			if len(ctx.Nodes) == 0 {
				ctx.AddError("At least one node is required")
			}
		},
		func(ctx *RuleContext) {
			seen := make(map[string]struct{}, len(ctx.Nodes))
			for _, node := range ctx.Nodes {
				if _, dup := seen[node.ID]; dup {
					ctx.AddError("Node IDs must be unique")
					return
				}
				seen[node.ID] = struct{}{}
			}
		},
		func(ctx *RuleContext) {
			if len(ctx.Nodes) == 0 {
				return
			}
			nodeIDs := make(map[string]struct{}, len(ctx.Nodes))
			for _, node := range ctx.Nodes {
				nodeIDs[node.ID] = struct{}{}
			}
			for _, transition := range ctx.Transitions {
				if _, ok := nodeIDs[transition.Source]; !ok {
					ctx.AddError(fmt.Sprintf("Transition %s references missing source node %s", transition.ID, transition.Source))
				}
				if _, ok := nodeIDs[transition.Target]; !ok {
					ctx.AddError(fmt.Sprintf("Transition %s references missing target node %s", transition.ID, transition.Target))
				}
			}
		},
		func(ctx *RuleContext) {
			if len(ctx.Nodes) > 1 && len(ctx.Transitions) == 0 {
				ctx.AddWarning("Multiple nodes present but no transitions defined")
			}
		},
	}
}
