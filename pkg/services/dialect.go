package services

import (
	"fmt"
	"strings"

	"github.com/quarrybi/semantic-engine/pkg/models"
)

// dialect renders identifiers, placeholders and expressions for one engine.
type dialect struct {
	engine string
}

func dialectFor(engine string) dialect {
	return dialect{engine: engine}
}

// quoteTable quotes a fully-qualified runtime reference.
func (d dialect) quoteTable(runtimeRef string) string {
	if d.engine == models.EngineBigQuery {
		return "`" + runtimeRef + "`"
	}
	parts := strings.Split(runtimeRef, ".")
	for i, p := range parts {
		parts[i] = d.quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// quoteIdent quotes a single identifier (column or alias).
func (d dialect) quoteIdent(name string) string {
	if d.engine == models.EngineBigQuery {
		return "`" + strings.ReplaceAll(name, "`", "") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholder renders the n-th bound parameter (1-based).
func (d dialect) placeholder(n int) string {
	if d.engine == models.EngineBigQuery {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// dateExpr wraps a column expression in the extraction for a hierarchy
// level. Both engines share EXTRACT grammar for every level except "half",
// which neither supports natively and is derived from the month.
func (d dialect) dateExpr(expr, level string) string {
	switch level {
	case "", models.DateYear, models.DateQuarter, models.DateMonth,
		models.DateDay, models.DateHour, models.DateMinute, models.DateSecond:
		if level == "" {
			return expr
		}
		return fmt.Sprintf("EXTRACT(%s FROM %s)", strings.ToUpper(level), expr)
	case models.DateHalf:
		if d.engine == models.EngineBigQuery {
			return fmt.Sprintf("CAST(CEIL(EXTRACT(MONTH FROM %s) / 6) AS INT64)", expr)
		}
		return fmt.Sprintf("CEIL(EXTRACT(MONTH FROM %s) / 6.0)::int", expr)
	default:
		return expr
	}
}

// aggExpr wraps a column expression in the given aggregation.
func (d dialect) aggExpr(expr, aggregation string) string {
	switch aggregation {
	case "", models.AggNone:
		return expr
	case models.AggCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", expr)
	case models.AggSum, models.AggAvg, models.AggCount, models.AggMin, models.AggMax:
		return fmt.Sprintf("%s(%s)", strings.ToUpper(aggregation), expr)
	default:
		return expr
	}
}
