package extract

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

// lineFilter decides whether a line survives.
type lineFilter interface {
	keep(line domain.ExtractedLine) bool
}

type regexFilter struct {
	field  domain.FieldName
	re     *regexp.Regexp
	action domain.FilterAction
}

func (f regexFilter) keep(line domain.ExtractedLine) bool {
	matched := f.re.MatchString(FieldText(line, f.field))
	if f.action == domain.FilterExclude {
		return !matched
	}
	return matched
}

type exprFilter struct {
	program cel.Program
	action  domain.FilterAction
}

func (f exprFilter) keep(line domain.ExtractedLine) bool {
	out, _, err := f.program.Eval(activation(line))
	if err != nil {
		// a filter that cannot be evaluated leaves the line alone
		return true
	}
	b, ok := out.(types.Bool)
	matched := ok && bool(b)
	if f.action == domain.FilterExclude {
		return !matched
	}
	return matched
}

// newFilterEnv declares the line fields as CEL variables. Missing values
// take their zero value; the "line" map only carries fields that are set,
// so has(line.quantity) distinguishes the two.
func newFilterEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("line", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("lineNumber", cel.IntType),
		cel.Variable("plate", cel.StringType),
		cel.Variable("date", cel.StringType),
		cel.Variable("fuelType", cel.StringType),
		cel.Variable("quantity", cel.DoubleType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("cardNumber", cel.StringType),
		cel.Variable("odometer", cel.IntType),
		cel.Variable("description", cel.StringType),
		cel.Variable("unitPrice", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// compileFilters builds the filter chain. Filters without a field or regex
// are skipped, as are filters whose regex or expression does not compile;
// the latter are reported in the returned messages.
func compileFilters(env *cel.Env, filters []domain.LineFilter) ([]lineFilter, []string) {
	var (
		out      []lineFilter
		warnings []string
	)
	for i, f := range filters {
		if f.Expression != "" {
			prg, err := compileExpression(env, f.Expression)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("filter %d ignored: %v", i, err))
				continue
			}
			out = append(out, exprFilter{program: prg, action: f.Action})
			continue
		}
		if f.Field == "" || f.Regex == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + f.Regex)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("filter %d ignored: invalid regex %q", i, f.Regex))
			continue
		}
		out = append(out, regexFilter{field: f.Field, re: re, action: f.Action})
	}
	return out, warnings
}

func compileExpression(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return prg, nil
}

func applyFilters(filters []lineFilter, lines []domain.ExtractedLine) []domain.ExtractedLine {
	for _, f := range filters {
		kept := lines[:0:0]
		for _, line := range lines {
			if f.keep(line) {
				kept = append(kept, line)
			}
		}
		lines = kept
	}
	return lines
}

// FieldText renders a line field as text. Unset fields are empty.
func FieldText(line domain.ExtractedLine, field domain.FieldName) string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	num := func(p *float64) string {
		if p == nil {
			return ""
		}
		return normalize.FormatFloat(*p)
	}
	switch field {
	case domain.FieldPlate:
		return str(line.Plate)
	case domain.FieldDate:
		return str(line.Date)
	case domain.FieldFuelType:
		return str(line.FuelType)
	case domain.FieldQuantity:
		return num(line.Quantity)
	case domain.FieldAmount:
		return num(line.Amount)
	case domain.FieldCardNumber:
		return str(line.CardNumber)
	case domain.FieldOdometer:
		if line.Odometer == nil {
			return ""
		}
		return strconv.FormatInt(*line.Odometer, 10)
	case domain.FieldDescription:
		return str(line.Description)
	case domain.FieldUnitPrice:
		return num(line.UnitPrice)
	}
	return ""
}

func activation(line domain.ExtractedLine) map[string]any {
	vars := map[string]any{
		"lineNumber":  int64(line.LineNumber),
		"plate":       "",
		"date":        "",
		"fuelType":    "",
		"quantity":    0.0,
		"amount":      0.0,
		"cardNumber":  "",
		"odometer":    int64(0),
		"description": "",
		"unitPrice":   0.0,
	}
	set := map[string]any{}
	put := func(name string, v any) {
		vars[name] = v
		set[name] = v
	}
	if line.Plate != nil {
		put("plate", *line.Plate)
	}
	if line.Date != nil {
		put("date", *line.Date)
	}
	if line.FuelType != nil {
		put("fuelType", *line.FuelType)
	}
	if line.Quantity != nil {
		put("quantity", *line.Quantity)
	}
	if line.Amount != nil {
		put("amount", *line.Amount)
	}
	if line.CardNumber != nil {
		put("cardNumber", *line.CardNumber)
	}
	if line.Odometer != nil {
		put("odometer", *line.Odometer)
	}
	if line.Description != nil {
		put("description", *line.Description)
	}
	if line.UnitPrice != nil {
		put("unitPrice", *line.UnitPrice)
	}
	vars["line"] = set
	return vars
}
