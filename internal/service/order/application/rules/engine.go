// Package rules evaluates the named business rules an order must satisfy
// before processing. Rules are CEL expressions compiled once at startup, so
// operators can tighten or relax them through configuration without a deploy.
package rules

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

// Defaults returns the built-in rule set. Config entries with the same name
// override these expressions.
func Defaults() map[string]string {
	return map[string]string{
		// No shipments into embargoed destinations.
		"location_restriction": `!(shippingCountry in ["CU", "KP", "SY"])`,
		// Oxidizers and aerosols may not travel in one parcel.
		"disallowed_combination": `!("PROD-AEROSOL" in productIds && "PROD-OXIDIZER" in productIds)`,
		// Discounted offers are only redeemable while support staff are on duty.
		"timeboxed_offer": `discount == 0.0 || (hour >= 6 && hour < 22)`,
		// Per-customer cap on total units in a single order.
		"purchase_cap": `totalQuantity <= 200`,
		// Chemical kits ship only together with safety gloves.
		"complementary_product": `!("PROD-CHEMICAL-KIT" in productIds) || ("PROD-SAFETY-GLOVES" in productIds)`,
		// Restricted products require an authorized (gold or platinum) account.
		"restricted_authorization": `!hasRestricted || customerTier in ["GOLD", "PLATINUM"]`,
		// A shippable destination must be present.
		"shipping_destination": `shippingCountry != ""`,
		// Zero- and negative-value orders are never admissible.
		"minimum_order_value": `total > 0.0`,
	}
}

// Facts is the flattened order view the rules are evaluated against.
type Facts struct {
	Total           float64
	Discount        float64
	ItemCount       int
	TotalQuantity   int
	ProductIDs      []string
	HasRestricted   bool
	CustomerTier    string
	CustomerCountry string
	ShippingCountry string
	Hour            int
}

type compiledRule struct {
	name string
	prog cel.Program
}

// Engine holds the compiled rule set.
type Engine struct {
	rules []compiledRule
}

// NewEngine compiles every expression. Each must evaluate to a bool; a rule
// that fails to compile is a configuration error and aborts startup.
func NewEngine(exprs map[string]string) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("total", cel.DoubleType),
		cel.Variable("discount", cel.DoubleType),
		cel.Variable("itemCount", cel.IntType),
		cel.Variable("totalQuantity", cel.IntType),
		cel.Variable("productIds", cel.ListType(cel.StringType)),
		cel.Variable("hasRestricted", cel.BoolType),
		cel.Variable("customerTier", cel.StringType),
		cel.Variable("customerCountry", cel.StringType),
		cel.Variable("shippingCountry", cel.StringType),
		cel.Variable("hour", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("build rule environment: %w", err)
	}

	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)

	e := &Engine{}
	for _, name := range names {
		ast, iss := env.Compile(exprs[name])
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", name, ast.OutputType())
		}
		prog, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", name, err)
		}
		e.rules = append(e.rules, compiledRule{name: name, prog: prog})
	}
	return e, nil
}

// Evaluate runs every rule against the facts and returns the names of the
// rules that did not hold. An evaluation error counts as a failing rule.
func (e *Engine) Evaluate(f Facts) []string {
	activation := map[string]any{
		"total":           f.Total,
		"discount":        f.Discount,
		"itemCount":       f.ItemCount,
		"totalQuantity":   f.TotalQuantity,
		"productIds":      f.ProductIDs,
		"hasRestricted":   f.HasRestricted,
		"customerTier":    f.CustomerTier,
		"customerCountry": f.CustomerCountry,
		"shippingCountry": f.ShippingCountry,
		"hour":            f.Hour,
	}

	var failed []string
	for _, rule := range e.rules {
		out, _, err := rule.prog.Eval(activation)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s (evaluation error: %v)", rule.name, err))
			continue
		}
		ok, isBool := out.Value().(bool)
		if !isBool || !ok {
			failed = append(failed, rule.name)
		}
	}
	return failed
}

// Merge overlays overrides onto the defaults, dropping entries whose override
// is the empty string.
func Merge(overrides map[string]string) map[string]string {
	merged := Defaults()
	for name, expr := range overrides {
		if expr == "" {
			delete(merged, name)
			continue
		}
		merged[name] = expr
	}
	return merged
}
