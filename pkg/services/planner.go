package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/yourbasic/graph"

	"github.com/quarrybi/semantic-engine/pkg/models"
	"github.com/quarrybi/semantic-engine/pkg/sqlguard"
)

// Planner error codes, returned verbatim in API error bodies so the caller
// can render a specific remediation.
const (
	CodeCrossSourceBlocked   = "CROSS_SOURCE_BLOCKED"
	CodeNoRelationshipPath   = "NO_RELATIONSHIP_PATH"
	CodeTableNotExecutable   = "TABLE_NOT_EXECUTABLE"
	CodeEngineNotSupported   = "ENGINE_NOT_SUPPORTED"
	CodePlanBuildFailed      = "PLAN_BUILD_FAILED"
	CodeQueryExecutionFailed = "QUERY_EXECUTION_FAILED"
)

// PlanError is a typed planning failure.
type PlanError struct {
	Code    string
	Message string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func planErrorf(code, format string, args ...any) *PlanError {
	return &PlanError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BuildPlan compiles a semantic query spec into one executable statement
// against the catalog snapshot. Pure function of its inputs; it touches no
// datastore.
func BuildPlan(catalog *Catalog, spec *models.SemanticQuerySpec) (*models.QueryPlan, error) {
	if err := spec.Validate(); err != nil {
		return nil, planErrorf(CodePlanBuildFailed, "invalid query spec: %v", err)
	}
	if err := screenFilterValues(spec.Filters); err != nil {
		return nil, err
	}

	tables, err := resolveTables(catalog, spec)
	if err != nil {
		return nil, err
	}
	tables = rootFirst(spec, tables)

	engine := tables[0].Engine
	for _, t := range tables {
		if t.Engine != engine {
			return nil, planErrorf(CodeCrossSourceBlocked,
				"tables %q and %q live in different engines and cannot be joined; connect them to the same engine",
				tables[0].DisplayName, t.DisplayName)
		}
	}
	if !models.SupportedEngine(engine) {
		return nil, planErrorf(CodeEngineNotSupported, "engine %q is not supported", engine)
	}

	joins, err := resolveJoins(catalog, tables, engine)
	if err != nil {
		return nil, err
	}

	return assembleSQL(spec, tables, joins, engine)
}

// screenFilterValues rejects filter values that carry SQL injection
// payloads. Values are always bound as parameters, so this is defense in
// depth for downstream log/debug surfaces, not the primary barrier.
func screenFilterValues(filters []models.Filter) error {
	for _, f := range filters {
		for _, v := range f.Values {
			if result := sqlguard.CheckValueForInjection(f.Column, v); result != nil {
				return planErrorf(CodePlanBuildFailed,
					"filter value for column %q was rejected by injection screening", f.Column)
			}
		}
	}
	return nil
}

// resolveTables collects every table the spec references, in first-reference
// order, and checks columns and executability.
func resolveTables(catalog *Catalog, spec *models.SemanticQuerySpec) ([]*models.ModelTable, error) {
	var ordered []*models.ModelTable
	seen := make(map[uuid.UUID]bool)

	addRef := func(tableID uuid.UUID, column string) error {
		t := catalog.Table(tableID)
		if t == nil {
			return planErrorf(CodePlanBuildFailed, "table %s is not in the data model", tableID)
		}
		if t.Column(column) == nil {
			return planErrorf(CodePlanBuildFailed, "table %q has no column %q", t.DisplayName, column)
		}
		if !t.Executable {
			return planErrorf(CodeTableNotExecutable, "table %q is not executable: %s", t.DisplayName, t.ExecutableReason)
		}
		if !seen[t.ID] {
			seen[t.ID] = true
			ordered = append(ordered, t)
		}
		return nil
	}

	for _, item := range spec.Select {
		if err := addRef(item.TableID, item.Column); err != nil {
			return nil, err
		}
	}
	for _, f := range spec.Filters {
		if err := addRef(f.TableID, f.Column); err != nil {
			return nil, err
		}
	}
	for _, g := range spec.GroupBy {
		if err := addRef(g.TableID, g.Column); err != nil {
			return nil, err
		}
	}
	for _, o := range spec.OrderBy {
		if err := addRef(o.TableID, o.Column); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// joinStep is one LEFT JOIN in the final statement.
type joinStep struct {
	rel   *models.ModelRelationship
	table *models.ModelTable // the newly joined table
}

// resolveJoins picks a join order connecting every referenced table through
// valid relationships. The join graph spans all executable same-engine tables
// in the model, so two referenced tables may connect through an intermediate
// table that contributes no output columns; such intermediates are joined
// anyway. Paths come from BFS over the undirected relationship graph.
func resolveJoins(catalog *Catalog, tables []*models.ModelTable, engine string) ([]joinStep, error) {
	if len(tables) == 1 {
		return nil, nil
	}

	nodes := make([]*models.ModelTable, 0, len(catalog.Tables))
	index := make(map[uuid.UUID]int, len(catalog.Tables))
	for _, t := range catalog.Tables {
		if !t.Executable || t.Engine != engine {
			continue
		}
		index[t.ID] = len(nodes)
		nodes = append(nodes, t)
	}

	g := graph.New(len(nodes))
	edgeByPair := make(map[[2]int]*models.ModelRelationship)

	for _, rel := range catalog.Relationships {
		if rel.ValidationStatus != models.ValidationValid {
			continue
		}
		a, okA := index[rel.FromTableID]
		b, okB := index[rel.ToTableID]
		if !okA || !okB {
			continue
		}
		g.AddBoth(a, b)
		if _, exists := edgeByPair[[2]int{a, b}]; !exists {
			edgeByPair[[2]int{a, b}] = rel
			edgeByPair[[2]int{b, a}] = rel
		}
	}

	root := tables[0]
	rootIdx := index[root.ID]

	// BFS shortest path from the root to every other referenced table;
	// joined tables accumulate in deterministic path order.
	joined := map[int]bool{rootIdx: true}
	var steps []joinStep

	targets := make([]int, 0, len(tables)-1)
	for _, t := range tables {
		if t.ID != root.ID {
			targets = append(targets, index[t.ID])
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		return nodes[targets[i]].ID.String() < nodes[targets[j]].ID.String()
	})

	for _, target := range targets {
		if joined[target] {
			continue
		}
		path, dist := graph.ShortestPath(g, rootIdx, target)
		if dist < 0 {
			return nil, planErrorf(CodeNoRelationshipPath,
				"no relationship path connects %q to %q; define a relationship between them",
				root.DisplayName, nodes[target].DisplayName)
		}
		for i := 1; i < len(path); i++ {
			if joined[path[i]] {
				continue
			}
			rel := edgeByPair[[2]int{path[i-1], path[i]}]
			steps = append(steps, joinStep{rel: rel, table: nodes[path[i]]})
			joined[path[i]] = true
		}
	}

	return steps, nil
}

// rootFirst moves the join root to the front of the table list: the table
// most referenced in the select list. Ties keep the first-referenced table
// so plans stay deterministic.
func rootFirst(spec *models.SemanticQuerySpec, tables []*models.ModelTable) []*models.ModelTable {
	counts := make(map[uuid.UUID]int, len(tables))
	for _, item := range spec.Select {
		counts[item.TableID]++
	}

	root := tables[0]
	for _, t := range tables[1:] {
		if counts[t.ID] > counts[root.ID] {
			root = t
		}
	}
	if root == tables[0] {
		return tables
	}

	ordered := make([]*models.ModelTable, 0, len(tables))
	ordered = append(ordered, root)
	for _, t := range tables {
		if t != root {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// assembleSQL renders the final statement. Dimension-only queries get
// SELECT DISTINCT; mixed queries group by dimension ordinals.
func assembleSQL(spec *models.SemanticQuerySpec, tables []*models.ModelTable, joins []joinStep, engine string) (*models.QueryPlan, error) {
	d := dialectFor(engine)

	// Aliases follow join order: the root is t0, each joined table (including
	// path intermediates) takes the next slot.
	root := tables[0]
	planTables := make([]*models.ModelTable, 0, len(joins)+1)
	planTables = append(planTables, root)
	for _, step := range joins {
		planTables = append(planTables, step.table)
	}
	alias := make(map[uuid.UUID]string, len(planTables))
	for i, t := range planTables {
		alias[t.ID] = fmt.Sprintf("t%d", i)
	}

	colExpr := func(tableID uuid.UUID, column string) string {
		return alias[tableID] + "." + d.quoteIdent(column)
	}

	hasAggregation := false
	for _, item := range spec.Select {
		if !item.IsDimension() {
			hasAggregation = true
			break
		}
	}

	var selectParts []string
	var dimOrdinals []int
	for i, item := range spec.Select {
		expr := d.dateExpr(colExpr(item.TableID, item.Column), item.DateHierarchy)
		expr = d.aggExpr(expr, item.Aggregation)

		aliasName := item.Alias
		if aliasName == "" {
			aliasName = defaultAlias(&spec.Select[i])
		}
		selectParts = append(selectParts, expr+" AS "+d.quoteIdent(aliasName))

		if item.IsDimension() {
			dimOrdinals = append(dimOrdinals, i+1)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if !hasAggregation {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(selectParts, ", "))

	b.WriteString(fmt.Sprintf("\nFROM %s %s", d.quoteTable(root.RuntimeRef), alias[root.ID]))

	relationshipIDs := make([]uuid.UUID, 0, len(joins))
	for _, step := range joins {
		rel := step.rel
		relationshipIDs = append(relationshipIDs, rel.ID)
		b.WriteString(fmt.Sprintf("\nLEFT JOIN %s %s ON %s = %s",
			d.quoteTable(step.table.RuntimeRef), alias[step.table.ID],
			colExpr(rel.FromTableID, rel.FromColumn),
			colExpr(rel.ToTableID, rel.ToColumn)))
	}

	var params []any
	if len(spec.Filters) > 0 {
		var predicates []string
		for _, f := range spec.Filters {
			pred, err := filterPredicate(d, colExpr(f.TableID, f.Column), &f, &params)
			if err != nil {
				return nil, err
			}
			predicates = append(predicates, pred)
		}
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(predicates, " AND "))
	}

	if hasAggregation {
		groupParts := make([]string, 0, len(dimOrdinals)+len(spec.GroupBy))
		for _, n := range dimOrdinals {
			groupParts = append(groupParts, fmt.Sprintf("%d", n))
		}
		// Explicit group-by columns outside the select list still shape the
		// aggregation; columns already selected as dimensions are covered by
		// their ordinal.
		for _, g := range spec.GroupBy {
			if selectedDimension(spec, g.TableID, g.Column) {
				continue
			}
			groupParts = append(groupParts, colExpr(g.TableID, g.Column))
		}
		if len(groupParts) > 0 {
			b.WriteString("\nGROUP BY ")
			b.WriteString(strings.Join(groupParts, ", "))
		}
	}

	if orderClause := orderBy(d, spec, alias, dimOrdinals); orderClause != "" {
		b.WriteString("\nORDER BY ")
		b.WriteString(orderClause)
	}

	if spec.Limit > 0 {
		b.WriteString(fmt.Sprintf("\nLIMIT %d", spec.Limit))
	}

	tableIDs := make([]uuid.UUID, len(planTables))
	for i, t := range planTables {
		tableIDs[i] = t.ID
	}

	return &models.QueryPlan{
		Engine:          engine,
		SQL:             b.String(),
		Params:          params,
		RootTableID:     root.ID,
		TableIDs:        tableIDs,
		RelationshipIDs: relationshipIDs,
	}, nil
}

// selectedDimension reports whether the column already appears in the select
// list as a dimension.
func selectedDimension(spec *models.SemanticQuerySpec, tableID uuid.UUID, column string) bool {
	for _, item := range spec.Select {
		if item.IsDimension() && item.TableID == tableID && item.Column == column {
			return true
		}
	}
	return false
}

// filterPredicate renders one filter with bound parameters.
func filterPredicate(d dialect, expr string, f *models.Filter, params *[]any) (string, error) {
	bind := func(v any) string {
		*params = append(*params, v)
		return d.placeholder(len(*params))
	}

	switch f.Operator {
	case models.OpEqual:
		return fmt.Sprintf("%s = %s", expr, bind(f.Values[0])), nil
	case models.OpNotEqual:
		return fmt.Sprintf("%s <> %s", expr, bind(f.Values[0])), nil
	case models.OpGreaterThan:
		return fmt.Sprintf("%s > %s", expr, bind(f.Values[0])), nil
	case models.OpGreaterOrEqual:
		return fmt.Sprintf("%s >= %s", expr, bind(f.Values[0])), nil
	case models.OpLessThan:
		return fmt.Sprintf("%s < %s", expr, bind(f.Values[0])), nil
	case models.OpLessOrEqual:
		return fmt.Sprintf("%s <= %s", expr, bind(f.Values[0])), nil
	case models.OpContains:
		return fmt.Sprintf("%s LIKE %s", expr, bind(fmt.Sprintf("%%%v%%", f.Values[0]))), nil
	case models.OpIn, models.OpNotIn:
		placeholders := make([]string, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = bind(v)
		}
		op := "IN"
		if f.Operator == models.OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", expr, op, strings.Join(placeholders, ", ")), nil
	case models.OpIsNull:
		return fmt.Sprintf("%s IS NULL", expr), nil
	case models.OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", expr), nil
	default:
		return "", planErrorf(CodePlanBuildFailed, "unknown filter operator %q", f.Operator)
	}
}

// orderBy renders the ORDER BY clause: the caller's explicit ordering when
// given, otherwise dimensions ascending so paged dashboards are stable.
func orderBy(d dialect, spec *models.SemanticQuerySpec, alias map[uuid.UUID]string, dimOrdinals []int) string {
	if len(spec.OrderBy) > 0 {
		parts := make([]string, len(spec.OrderBy))
		for i, o := range spec.OrderBy {
			direction := "ASC"
			if o.Descending {
				direction = "DESC"
			}
			parts[i] = fmt.Sprintf("%s.%s %s", alias[o.TableID], d.quoteIdent(o.Column), direction)
		}
		return strings.Join(parts, ", ")
	}

	if len(dimOrdinals) == 0 {
		return ""
	}
	parts := make([]string, len(dimOrdinals))
	for i, n := range dimOrdinals {
		parts[i] = fmt.Sprintf("%d ASC", n)
	}
	return strings.Join(parts, ", ")
}

// defaultAlias derives an output name for an unaliased select item.
func defaultAlias(item *models.SelectItem) string {
	name := item.Column
	if item.DateHierarchy != "" {
		name = name + "_" + item.DateHierarchy
	}
	if !item.IsDimension() {
		name = strings.ToLower(item.Aggregation) + "_" + name
	}
	return name
}
