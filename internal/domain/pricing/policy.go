package pricing

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"medcore/internal/core/apperror"
	"medcore/internal/core/types"
)

// Severity decides whether a failed pricing rule blocks the operation.
type Severity string

const (
	// SeverityHard rejects the operation with VALIDATION_ERROR.
	SeverityHard Severity = "hard"
	// SeveritySoft lets the operation through and reports a warning.
	SeveritySoft Severity = "soft"
)

// Rule is an extra pricing rule written as a CEL boolean expression.
// The expression must evaluate to true for prices that pass.
//
// Available variables: cost, sale, mrp, has_mrp, margin_pct, markup_pct.
type Rule struct {
	Name     string   `mapstructure:"name" validate:"required"`
	Expr     string   `mapstructure:"expr" validate:"required"`
	Message  string   `mapstructure:"message" validate:"required"`
	Severity Severity `mapstructure:"severity" validate:"required,oneof=hard soft"`
}

// PolicyConfig is the configured shape of a Policy.
type PolicyConfig struct {
	SaleBelowCost Severity `mapstructure:"sale_below_cost" validate:"required,oneof=hard soft"`
	SaleAboveMRP  Severity `mapstructure:"sale_above_mrp" validate:"required,oneof=hard soft"`
	Rules         []Rule   `mapstructure:"rules" validate:"dive"`
}

// DefaultPolicyConfig treats both built-in rules as warnings.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		SaleBelowCost: SeveritySoft,
		SaleAboveMRP:  SeveritySoft,
	}
}

type compiledRule struct {
	Rule
	program cel.Program
}

// Policy checks batch prices against built-in and configured rules.
type Policy struct {
	saleBelowCost Severity
	saleAboveMRP  Severity
	rules         []compiledRule
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewPolicy validates cfg and compiles its CEL rules.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid pricing policy: %w", err)
	}

	env, err := cel.NewEnv(
		cel.Variable("cost", cel.DoubleType),
		cel.Variable("sale", cel.DoubleType),
		cel.Variable("mrp", cel.DoubleType),
		cel.Variable("has_mrp", cel.BoolType),
		cel.Variable("margin_pct", cel.DoubleType),
		cel.Variable("markup_pct", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	p := &Policy{saleBelowCost: cfg.SaleBelowCost, saleAboveMRP: cfg.SaleAboveMRP}
	for _, r := range cfg.Rules {
		ast, iss := env.Compile(r.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", r.Name, err)
		}
		p.rules = append(p.rules, compiledRule{Rule: r, program: prg})
	}
	return p, nil
}

// DefaultPolicy returns the soft built-in policy with no extra rules.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultPolicyConfig())
	if err != nil {
		panic(err)
	}
	return p
}

// Violation is one failed rule.
type Violation struct {
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// PriceCheck is the outcome of CheckBatchPrices.
type PriceCheck struct {
	Violations []Violation
}

// Err returns VALIDATION_ERROR listing the hard violations, or nil.
func (c PriceCheck) Err() error {
	var reasons []string
	for _, v := range c.Violations {
		if v.Severity == SeverityHard {
			reasons = append(reasons, v.Message)
		}
	}
	if len(reasons) == 0 {
		return nil
	}
	return apperror.NewValidationFailed("batch prices violate pricing rules", reasons)
}

// Warnings lists the messages of soft violations.
func (c PriceCheck) Warnings() []string {
	var out []string
	for _, v := range c.Violations {
		if v.Severity == SeveritySoft {
			out = append(out, v.Message)
		}
	}
	return out
}

// CheckBatchPrices evaluates sale >= cost, sale <= mrp and every configured
// rule against per-unit batch prices.
func (p *Policy) CheckBatchPrices(cost, sale types.Money, mrp decimal.NullDecimal) PriceCheck {
	var check PriceCheck

	if sale.LessThan(cost) {
		check.Violations = append(check.Violations, Violation{
			Rule: "sale_below_cost", Message: ReasonSaleBelowCost, Severity: p.saleBelowCost,
		})
	}
	if mrp.Valid && sale.GreaterThan(mrp.Decimal) {
		check.Violations = append(check.Violations, Violation{
			Rule: "sale_above_mrp", Message: ReasonSaleAboveMRP, Severity: p.saleAboveMRP,
		})
	}

	if len(p.rules) == 0 {
		return check
	}

	vars := map[string]any{
		"cost":       cost.InexactFloat64(),
		"sale":       sale.InexactFloat64(),
		"mrp":        mrp.Decimal.InexactFloat64(),
		"has_mrp":    mrp.Valid,
		"margin_pct": MarginPct(cost, sale).InexactFloat64(),
		"markup_pct": MarkupPct(cost, sale).InexactFloat64(),
	}
	for _, r := range p.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			check.Violations = append(check.Violations, Violation{
				Rule: r.Name, Message: fmt.Sprintf("%s (rule error: %v)", r.Message, err), Severity: r.Severity,
			})
			continue
		}
		if ok, _ := out.Value().(bool); !ok {
			check.Violations = append(check.Violations, Violation{Rule: r.Name, Message: r.Message, Severity: r.Severity})
		}
	}
	return check
}
