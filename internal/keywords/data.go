package keywords

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/store"
	"github.com/generalbots/botcore/pkg/models"
)

// RowStore is the narrow contract the data verbs need from C10's
// generic table store.
type RowStore interface {
	Find(ctx context.Context, botID, table string, filter *store.Clause) ([]map[string]any, error)
	Insert(ctx context.Context, botID, table string, data map[string]any) (map[string]any, error)
	Update(ctx context.Context, botID, table string, filter *store.Clause, data map[string]any) (int64, error)
	Delete(ctx context.Context, botID, table string, filter *store.Clause) (int64, error)
	Merge(ctx context.Context, botID, table string, rows []map[string]any, keyField string) (int, error)
}

// SchemaReader resolves a harvested TABLE declaration's column order,
// needed for SAVE's positional-binding shape.
type SchemaReader interface {
	GetSchema(ctx context.Context, botID, table string) (models.TableSchema, bool, error)
}

// TableAccessChecker is the narrow access.Gate contract the data verbs
// route every table operation through (spec.md §4.4 steps 1-3).
type TableAccessChecker interface {
	CheckTableAccess(ctx context.Context, botID, table string, accessType models.AccessType, roleSet []string) models.AccessInfo
}

// HTTPDeleter lets the dual-purpose DELETE verb hop to the HTTP group
// when its first argument is URL-shaped, without this file depending on
// the full HTTP client.
type HTTPDeleter interface {
	Delete(ctx context.Context, url string) (expr.Value, error)
}

// RegisterData wires the Data verb group (spec.md §4.4) for one
// session's evaluation. http may be nil; a nil HTTPDeleter makes
// DELETE reject URL-shaped arguments instead of silently mis-routing
// them to the table path.
func RegisterData(e *expr.Engine, sc SessionContext, gate TableAccessChecker, rows RowStore, schemas SchemaReader, http HTTPDeleter) error {
	d := &dataVerbs{sc: sc, gate: gate, rows: rows, schemas: schemas, http: http}
	verbs := map[string]expr.Handler{
		"FIND":      d.find,
		"SAVE":      d.save,
		"INSERT":    d.insert,
		"UPDATE":    d.update,
		"DELETE":    d.delete,
		"MERGE":     d.merge,
		"FILL":      d.fill,
		"MAP":       d.mapRows,
		"FILTER":    d.filter,
		"AGGREGATE": d.aggregate,
		"JOIN":      d.join,
		"PIVOT":     d.pivot,
		"GROUP_BY":  d.groupBy,
	}
	for name, h := range verbs {
		if err := e.RegisterSyntax(name, true, h); err != nil {
			return fmt.Errorf("keywords: register %s: %w", name, err)
		}
	}
	return nil
}

type dataVerbs struct {
	sc      SessionContext
	gate    TableAccessChecker
	rows    RowStore
	schemas SchemaReader
	http    HTTPDeleter
}

// checkAccess runs spec.md §4.4 steps 1-2: resolve (bot_id, role_set)
// from the session and consult the gate, failing closed on denial.
func (d *dataVerbs) checkAccess(ctx context.Context, table string, accessType models.AccessType) (models.AccessInfo, error) {
	info := d.gate.CheckTableAccess(ctx, d.sc.BotID, table, accessType, d.sc.Roles)
	if !info.Allowed {
		return info, NewError(KindAccessDenied, fmt.Sprintf("access denied for table %q", table))
	}
	return info, nil
}

func (d *dataVerbs) parseFilter(raw string) (*store.Clause, error) {
	clause, err := store.ParseFilter(raw)
	if err != nil {
		return nil, NewError(KindInvalidArgument, err.Error())
	}
	return clause, nil
}

func (d *dataVerbs) find(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, NewError(KindInvalidArgument, "FIND requires (table[, filter])")
	}
	table := toString(args[0])
	var filterStr string
	if len(args) == 2 {
		filterStr = toString(args[1])
	}
	ctx := contextFrom(cc)
	info, err := d.checkAccess(ctx, table, models.AccessRead)
	if err != nil {
		return nil, err
	}
	clause, err := d.parseFilter(filterStr)
	if err != nil {
		return nil, err
	}
	rows, err := d.rows.Find(ctx, d.sc.BotID, table, clause)
	if err != nil {
		return nil, Wrap(KindUpstream, "FIND: query failed", err)
	}
	return rowsToValue(redactRows(info, rows)), nil
}

// save implements both SAVE shapes, disambiguated by argument count per
// SPEC_FULL.md §4.1: a 3-arg call whose third argument is a map is the
// structured (table, id, data) shape; any other 3-or-more-arg call binds
// values positionally in the table's declaration order. A 2-arg call
// has no shape in this realization and is rejected.
func (d *dataVerbs) save(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) < 3 {
		return nil, NewError(KindInvalidArgument, "SAVE requires at least (table, id, data) or (table, f1, f2, ...)")
	}
	table := toString(args[0])
	ctx := contextFrom(cc)
	if _, err := d.checkAccess(ctx, table, models.AccessWrite); err != nil {
		return nil, err
	}

	if len(args) == 3 {
		if rowData, ok := args[2].(map[string]any); ok {
			return d.saveStructured(ctx, table, toString(args[1]), rowData)
		}
	}

	schema, ok, err := d.schemas.GetSchema(ctx, d.sc.BotID, table)
	if err != nil {
		return nil, Wrap(KindUpstream, "SAVE: schema lookup failed", err)
	}
	if !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("no declared schema for table %q", table))
	}
	values := args[1:]
	if len(values) > len(schema.Columns) {
		return nil, NewError(KindInvalidArgument, "SAVE: more values than declared columns")
	}
	row := make(map[string]any, len(values))
	for i, v := range values {
		row[schema.Columns[i].Name] = v
	}
	saved, err := d.rows.Insert(ctx, d.sc.BotID, table, row)
	if err != nil {
		return nil, Wrap(KindUpstream, "SAVE: insert failed", err)
	}
	return rowToValue(saved), nil
}

func (d *dataVerbs) saveStructured(ctx context.Context, table, id string, data map[string]any) (expr.Value, error) {
	data = cloneAnyMap(data)
	data["id"] = id
	clause := &store.Clause{Field: "id", Op: "=", Value: id}
	existing, err := d.rows.Find(ctx, d.sc.BotID, table, clause)
	if err != nil {
		return nil, Wrap(KindUpstream, "SAVE: lookup failed", err)
	}
	if len(existing) > 0 {
		if _, err := d.rows.Update(ctx, d.sc.BotID, table, clause, data); err != nil {
			return nil, Wrap(KindUpstream, "SAVE: update failed", err)
		}
		return rowToValue(data), nil
	}
	saved, err := d.rows.Insert(ctx, d.sc.BotID, table, data)
	if err != nil {
		return nil, Wrap(KindUpstream, "SAVE: insert failed", err)
	}
	return rowToValue(saved), nil
}

func (d *dataVerbs) insert(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "INSERT requires (table, data)")
	}
	table := toString(args[0])
	data, err := asRow(args[1])
	if err != nil {
		return nil, err
	}
	ctx := contextFrom(cc)
	if _, err := d.checkAccess(ctx, table, models.AccessWrite); err != nil {
		return nil, err
	}
	saved, err := d.rows.Insert(ctx, d.sc.BotID, table, data)
	if err != nil {
		return nil, Wrap(KindUpstream, "INSERT: failed", err)
	}
	return rowToValue(saved), nil
}

func (d *dataVerbs) update(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "UPDATE requires (table, filter, data)")
	}
	table := toString(args[0])
	data, err := asRow(args[2])
	if err != nil {
		return nil, err
	}
	ctx := contextFrom(cc)
	if _, err := d.checkAccess(ctx, table, models.AccessWrite); err != nil {
		return nil, err
	}
	clause, err := d.parseFilter(toString(args[1]))
	if err != nil {
		return nil, err
	}
	n, err := d.rows.Update(ctx, d.sc.BotID, table, clause, data)
	if err != nil {
		return nil, Wrap(KindUpstream, "UPDATE: failed", err)
	}
	return int64(n), nil
}

// delete implements the dual-purpose DELETE verb: a URL-shaped first
// argument routes to HTTP DELETE, anything else is a table delete.
func (d *dataVerbs) delete(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) == 0 {
		return nil, NewError(KindInvalidArgument, "DELETE requires at least one argument")
	}
	first := toString(args[0])
	if isURL(first) {
		if d.http == nil {
			return nil, NewError(KindInvalidArgument, "DELETE: HTTP client not configured")
		}
		return d.http.Delete(contextFrom(cc), first)
	}
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "DELETE (table form) requires (table, filter)")
	}
	table := first
	ctx := contextFrom(cc)
	if _, err := d.checkAccess(ctx, table, models.AccessWrite); err != nil {
		return nil, err
	}
	clause, err := d.parseFilter(toString(args[1]))
	if err != nil {
		return nil, err
	}
	n, err := d.rows.Delete(ctx, d.sc.BotID, table, clause)
	if err != nil {
		return nil, Wrap(KindUpstream, "DELETE: failed", err)
	}
	return int64(n), nil
}

func (d *dataVerbs) merge(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "MERGE requires (table, rows, key_field)")
	}
	table := toString(args[0])
	rows, err := asRows(args[1])
	if err != nil {
		return nil, err
	}
	keyField := toString(args[2])
	ctx := contextFrom(cc)
	if _, err := d.checkAccess(ctx, table, models.AccessWrite); err != nil {
		return nil, err
	}
	n, err := d.rows.Merge(ctx, d.sc.BotID, table, rows, keyField)
	if err != nil {
		return nil, Wrap(KindUpstream, "MERGE: failed", err)
	}
	return int64(n), nil
}

// fill renders template once per row via text/template, with the row's
// fields addressable as {{.field}}.
func (d *dataVerbs) fill(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "FILL requires (rows, template)")
	}
	rows, err := asRows(args[0])
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("fill").Parse(toString(args[1]))
	if err != nil {
		return nil, NewError(KindInvalidArgument, "FILL: invalid template: "+err.Error())
	}
	out := make([]expr.Value, len(rows))
	for i, row := range rows {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, row); err != nil {
			return nil, Wrap(KindInvalidArgument, "FILL: template execution failed", err)
		}
		out[i] = sb.String()
	}
	return out, nil
}

// mapRows renames keys per a "from->to,from2->to2" spec.
func (d *dataVerbs) mapRows(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "MAP requires (rows, \"from->to,...\")")
	}
	rows, err := asRows(args[0])
	if err != nil {
		return nil, err
	}
	renames := map[string]string{}
	for _, pair := range strings.Split(toString(args[1]), ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "->", 2)
		if len(parts) != 2 {
			continue
		}
		renames[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	out := make([]expr.Value, len(rows))
	for i, row := range rows {
		mapped := make(map[string]any, len(row))
		for k, v := range row {
			if to, ok := renames[k]; ok {
				mapped[to] = v
			} else {
				mapped[k] = v
			}
		}
		out[i] = mapped
	}
	return out, nil
}

func (d *dataVerbs) filter(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "FILTER requires (rows, cond)")
	}
	rows, err := asRows(args[0])
	if err != nil {
		return nil, err
	}
	clause, err := store.ParseFilter(toString(args[1]))
	if err != nil {
		return nil, NewError(KindInvalidArgument, err.Error())
	}
	var out []expr.Value
	for _, row := range rows {
		if clause == nil || clause.Matches(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (d *dataVerbs) aggregate(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "AGGREGATE requires (op, rows, field)")
	}
	op := strings.ToUpper(toString(args[0]))
	rows, err := asRows(args[1])
	if err != nil {
		return nil, err
	}
	field := toString(args[2])
	if op == "COUNT" {
		return int64(len(rows)), nil
	}
	var values []float64
	for _, row := range rows {
		if f, ok := numericValue(row[field]); ok {
			values = append(values, f)
		}
	}
	switch op {
	case "SUM":
		return sum(values), nil
	case "AVG":
		if len(values) == 0 {
			return float64(0), nil
		}
		return sum(values) / float64(len(values)), nil
	case "MIN":
		if len(values) == 0 {
			return nil, nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "MAX":
		if len(values) == 0 {
			return nil, nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	default:
		return nil, NewError(KindInvalidArgument, "AGGREGATE: unknown op "+op)
	}
}

// join performs an inner join of left and right on key, merging right's
// fields into a copy of the matching left row (left's fields win on
// collision, since the row being enriched is the left one).
func (d *dataVerbs) join(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "JOIN requires (left, right, key)")
	}
	left, err := asRows(args[0])
	if err != nil {
		return nil, err
	}
	right, err := asRows(args[1])
	if err != nil {
		return nil, err
	}
	key := toString(args[2])
	byKey := make(map[string]map[string]any, len(right))
	for _, row := range right {
		byKey[fmt.Sprintf("%v", row[key])] = row
	}
	var out []expr.Value
	for _, lrow := range left {
		rrow, ok := byKey[fmt.Sprintf("%v", lrow[key])]
		if !ok {
			continue
		}
		merged := make(map[string]any, len(lrow)+len(rrow))
		for k, v := range rrow {
			merged[k] = v
		}
		for k, v := range lrow {
			merged[k] = v
		}
		out = append(out, merged)
	}
	return out, nil
}

// pivot groups rows by rowField and sums valueField within each group.
func (d *dataVerbs) pivot(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "PIVOT requires (rows, row_field, value_field)")
	}
	rows, err := asRows(args[0])
	if err != nil {
		return nil, err
	}
	rowField := toString(args[1])
	valueField := toString(args[2])
	sums := map[string]float64{}
	var order []string
	for _, row := range rows {
		group := fmt.Sprintf("%v", row[rowField])
		if _, seen := sums[group]; !seen {
			order = append(order, group)
		}
		if f, ok := numericValue(row[valueField]); ok {
			sums[group] += f
		}
	}
	out := make([]expr.Value, len(order))
	for i, group := range order {
		out[i] = map[string]any{rowField: group, valueField: sums[group]}
	}
	return out, nil
}

func (d *dataVerbs) groupBy(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "GROUP_BY requires (rows, field)")
	}
	rows, err := asRows(args[0])
	if err != nil {
		return nil, err
	}
	field := toString(args[1])
	groups := map[string][]any{}
	var order []string
	for _, row := range rows {
		key := fmt.Sprintf("%v", row[field])
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}
	sort.Strings(order)
	out := make(map[string]any, len(groups))
	for _, k := range order {
		out[k] = groups[k]
	}
	return out, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func asRow(v expr.Value) (map[string]any, error) {
	row, ok := v.(map[string]any)
	if !ok {
		return nil, NewError(KindInvalidArgument, "expected an object argument")
	}
	return row, nil
}

func asRows(v expr.Value) ([]map[string]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, NewError(KindInvalidArgument, "expected a list of objects")
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		row, err := asRow(item)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func rowToValue(row map[string]any) expr.Value {
	return row
}

func rowsToValue(rows []map[string]any) expr.Value {
	out := make([]expr.Value, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func redactRows(info models.AccessInfo, rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = info.RedactRow(r)
	}
	return out
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
