package stitching

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"docstitch/internal/domain/trade"
	"docstitch/pkg/logger"
)

// CELRule is an extension evaluating an operator-configured CEL expression
// against the generation prototype. A false result vetoes the round.
//
// The expression sees two variables:
//
//	document  map with kind, warehouse, currency, company, subject, series,
//	          discount1 and discount2 of the prototype
//	lineCount number of lines about to be carried
//
// Example: `document.currency == "EUR" && lineCount < 500`.
type CELRule struct {
	BaseExtension

	name    string
	program cel.Program
}

// NewCELRule compiles the expression. The expression must produce a bool.
func NewCELRule(name, expression string) (*CELRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("document", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("lineCount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", name, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program rule %q: %w", name, err)
	}

	return &CELRule{name: name, program: program}, nil
}

// Name implements Extension.
func (r *CELRule) Name() string { return r.name }

// CheckPrototype implements Extension.
func (r *CELRule) CheckPrototype(ctx context.Context, prototype *trade.Document, lines []trade.DocumentLine) (bool, error) {
	activation := map[string]any{
		"document": map[string]any{
			"kind":      prototype.Kind.String(),
			"warehouse": prototype.WarehouseID,
			"currency":  prototype.CurrencyCode,
			"company":   prototype.CompanyID,
			"subject":   prototype.SubjectCode,
			"series":    prototype.Series,
			"discount1": prototype.Discount1.InexactFloat64(),
			"discount2": prototype.Discount2.InexactFloat64(),
		},
		"lineCount": int64(len(lines)),
	}

	out, _, err := r.program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("eval rule %q: %w", r.name, err)
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("rule %q returned non-bool", r.name)
	}
	if !ok {
		logger.Info(ctx, "stitch vetoed by rule", "rule", r.name)
	}
	return ok, nil
}
