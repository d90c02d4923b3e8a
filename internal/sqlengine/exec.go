package sqlengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Execute runs stmt against db and returns its result. Read-only callers
// (the actor's Query method) should check stmt.ReadOnly() themselves
// before calling Execute — this function executes whatever it's given.
func Execute(ctx context.Context, db *DB, stmt Statement) (*ResultSet, error) {
	switch s := stmt.(type) {
	case CreateTable:
		return db.createTable(s)
	case Insert:
		return execInsert(db, s)
	case Update:
		return execUpdate(db, s)
	case Delete:
		return execDelete(db, s)
	case Select:
		return execSelect(ctx, db, s)
	default:
		return nil, fmt.Errorf("sqlengine: unsupported statement type %T", stmt)
	}
}

func execInsert(db *DB, stmt Insert) (*ResultSet, error) {
	t, err := db.table(stmt.Table)
	if err != nil {
		return nil, err
	}
	cols := stmt.Cols
	if len(cols) == 0 {
		cols = t.colNames()
	}
	for _, c := range cols {
		if !t.hasCol(c) {
			return nil, fmt.Errorf("sqlengine: no such column: %s.%s", t.Name, c)
		}
	}
	inserted := int64(0)
	for _, vals := range stmt.Rows {
		if len(vals) != len(cols) {
			return nil, fmt.Errorf("sqlengine: %d values for %d columns", len(vals), len(cols))
		}
		row := Row{}
		for i, c := range cols {
			v, err := evalExpr(nil, vals[i])
			if err != nil {
				return nil, err
			}
			row[c] = v
		}
		t.Rows = append(t.Rows, row)
		inserted++
	}
	return &ResultSet{Cols: []string{"inserted"}, Rows: []Row{{"inserted": inserted}}}, nil
}

func execUpdate(db *DB, stmt Update) (*ResultSet, error) {
	t, err := db.table(stmt.Table)
	if err != nil {
		return nil, err
	}
	updated := int64(0)
	for _, row := range t.Rows {
		if stmt.Where != nil {
			keep, err := evalExpr(row, stmt.Where)
			if err != nil {
				return nil, err
			}
			if !truthy(keep) {
				continue
			}
		}
		for _, assign := range stmt.Sets {
			v, err := evalExpr(row, assign.Expr)
			if err != nil {
				return nil, err
			}
			row[assign.Col] = v
		}
		updated++
	}
	return &ResultSet{Cols: []string{"updated"}, Rows: []Row{{"updated": updated}}}, nil
}

func execDelete(db *DB, stmt Delete) (*ResultSet, error) {
	t, err := db.table(stmt.Table)
	if err != nil {
		return nil, err
	}
	kept := t.Rows[:0]
	deleted := int64(0)
	for _, row := range t.Rows {
		drop := true
		if stmt.Where != nil {
			v, err := evalExpr(row, stmt.Where)
			if err != nil {
				return nil, err
			}
			drop = truthy(v)
		}
		if drop {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	t.Rows = kept
	return &ResultSet{Cols: []string{"deleted"}, Rows: []Row{{"deleted": deleted}}}, nil
}

type binding struct {
	table *Table
	alias string
}

func execSelect(ctx context.Context, db *DB, stmt Select) (*ResultSet, error) {
	from, err := db.table(stmt.From)
	if err != nil {
		return nil, err
	}
	fromAlias := stmt.FromAs
	if fromAlias == "" {
		fromAlias = stmt.From
	}
	bindings := []binding{{table: from, alias: fromAlias}}

	combined := make([]Row, len(from.Rows))
	for i, r := range from.Rows {
		combined[i] = combineRow(bindings, []Row{r})
	}

	for _, jc := range stmt.Joins {
		jt, err := db.table(jc.Table)
		if err != nil {
			return nil, err
		}
		alias := jc.Alias
		if alias == "" {
			alias = jc.Table
		}
		bindings = append(bindings, binding{table: jt, alias: alias})

		var next []Row
		for _, leftRow := range combined {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			for _, rightRow := range jt.Rows {
				merged := mergeRow(leftRow, combineRow([]binding{{table: jt, alias: alias}}, []Row{rightRow}))
				ok, err := evalExpr(merged, jc.On)
				if err != nil {
					return nil, err
				}
				if truthy(ok) {
					next = append(next, merged)
				}
			}
		}
		combined = next
	}

	if stmt.Where != nil {
		var filtered []Row
		for _, r := range combined {
			ok, err := evalExpr(r, stmt.Where)
			if err != nil {
				return nil, err
			}
			if truthy(ok) {
				filtered = append(filtered, r)
			}
		}
		combined = filtered
	}

	cols, rows, err := project(stmt, bindings, combined)
	if err != nil {
		return nil, err
	}

	if len(stmt.OrderBy) > 0 {
		// Sort row positions, so each comparison reads the combined row that
		// produced the result row at that position.
		order := make([]int, len(rows))
		for i := range order {
			order[i] = i
		}
		var sortErr error
		sort.SliceStable(order, func(i, j int) bool {
			for _, term := range stmt.OrderBy {
				vi, erri := evalExpr(combined[order[i]], term.Expr)
				vj, errj := evalExpr(combined[order[j]], term.Expr)
				if erri != nil {
					sortErr = erri
					return false
				}
				if errj != nil {
					sortErr = errj
					return false
				}
				c, ok := compareValues(vi, vj)
				if !ok || c == 0 {
					continue
				}
				if term.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		if sortErr != nil {
			return nil, sortErr
		}
		sorted := make([]Row, len(rows))
		for i, k := range order {
			sorted[i] = rows[k]
		}
		rows = sorted
	}

	if stmt.HasLimit && stmt.Limit < len(rows) {
		rows = rows[:stmt.Limit]
	}

	if stmt.Distinct {
		rows = dedupeRows(cols, rows)
	}

	return &ResultSet{Cols: cols, Rows: rows}, nil
}

func combineRow(bindings []binding, rows []Row) Row {
	out := Row{}
	for i, b := range bindings {
		for col, val := range rows[i] {
			out[b.alias+"."+col] = val
			if _, exists := out[col]; !exists {
				out[col] = val
			}
		}
	}
	return out
}

func mergeRow(a, b Row) Row {
	out := Row{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
		out[k] = v // right side wins on bare-name collisions for newly joined table
	}
	return out
}

func project(stmt Select, bindings []binding, rows []Row) ([]string, []Row, error) {
	hasAggregate := false
	for _, p := range stmt.Projs {
		if fc, ok := p.Expr.(FuncCall); ok && isAggregate(fc.Name) {
			hasAggregate = true
		}
	}

	if hasAggregate {
		return projectAggregate(stmt, rows)
	}

	var cols []string
	var out []Row
	if len(stmt.Projs) == 1 && stmt.Projs[0].Star {
		for _, r := range rows {
			row := Row{}
			for _, b := range bindings {
				for _, c := range b.table.Cols {
					row[c.Name] = r[b.alias+"."+c.Name]
				}
			}
			out = append(out, row)
		}
		if len(bindings) > 0 {
			cols = bindings[0].table.colNames()
			for _, b := range bindings[1:] {
				cols = append(cols, b.table.colNames()...)
			}
		}
		return cols, out, nil
	}

	for _, p := range stmt.Projs {
		cols = append(cols, projName(p))
	}
	for _, r := range rows {
		row := Row{}
		for _, p := range stmt.Projs {
			v, err := evalExpr(r, p.Expr)
			if err != nil {
				return nil, nil, err
			}
			row[projName(p)] = v
		}
		out = append(out, row)
	}
	return cols, out, nil
}

func projName(p Projection) string {
	if p.Alias != "" {
		return p.Alias
	}
	switch e := p.Expr.(type) {
	case ColumnRef:
		if e.Table != "" {
			return e.Table + "." + e.Name
		}
		return e.Name
	case FuncCall:
		return strings.ToLower(e.Name)
	default:
		return "expr"
	}
}

func isAggregate(name string) bool {
	switch name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return true
	default:
		return false
	}
}

func projectAggregate(stmt Select, rows []Row) ([]string, []Row, error) {
	var cols []string
	for _, p := range stmt.Projs {
		cols = append(cols, projName(p))
	}
	result := Row{}
	for _, p := range stmt.Projs {
		fc, ok := p.Expr.(FuncCall)
		if !ok || !isAggregate(fc.Name) {
			if len(rows) == 0 {
				result[projName(p)] = nil
				continue
			}
			v, err := evalExpr(rows[0], p.Expr)
			if err != nil {
				return nil, nil, err
			}
			result[projName(p)] = v
			continue
		}
		v, err := aggregate(fc, rows)
		if err != nil {
			return nil, nil, err
		}
		result[projName(p)] = v
	}
	return cols, []Row{result}, nil
}

func aggregate(fc FuncCall, rows []Row) (any, error) {
	switch fc.Name {
	case "COUNT":
		if fc.Star {
			return int64(len(rows)), nil
		}
		n := int64(0)
		for _, r := range rows {
			v, err := evalExpr(r, fc.Args[0])
			if err != nil {
				return nil, err
			}
			if v != nil {
				n++
			}
		}
		return n, nil
	case "SUM", "AVG":
		sum := 0.0
		count := 0
		isFloat := false
		for _, r := range rows {
			v, err := evalExpr(r, fc.Args[0])
			if err != nil {
				return nil, err
			}
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			if _, isF := v.(float64); isF {
				isFloat = true
			}
			sum += f
			count++
		}
		if fc.Name == "AVG" {
			if count == 0 {
				return nil, nil
			}
			return sum / float64(count), nil
		}
		if isFloat {
			return sum, nil
		}
		return int64(sum), nil
	case "MIN", "MAX":
		var best any
		for _, r := range rows {
			v, err := evalExpr(r, fc.Args[0])
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, ok := compareValues(v, best)
			if !ok {
				continue
			}
			if (fc.Name == "MIN" && c < 0) || (fc.Name == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil
	default:
		return nil, fmt.Errorf("sqlengine: unknown aggregate %s", fc.Name)
	}
}

func dedupeRows(cols []string, rows []Row) []Row {
	seen := make(map[string]bool, len(rows))
	var out []Row
	for _, r := range rows {
		var key strings.Builder
		for _, c := range cols {
			key.WriteString(formatValue(r[c]))
			key.WriteByte(0)
		}
		k := key.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func evalExpr(row Row, e Expr) (any, error) {
	switch x := e.(type) {
	case Literal:
		return x.Val, nil
	case ColumnRef:
		if x.Table != "" {
			return row[x.Table+"."+x.Name], nil
		}
		return row[x.Name], nil
	case Unary:
		return evalUnary(row, x)
	case Binary:
		return evalBinary(row, x)
	case FuncCall:
		return nil, fmt.Errorf("sqlengine: aggregate %s used outside of a projection list", x.Name)
	default:
		return nil, fmt.Errorf("sqlengine: unsupported expression %T", e)
	}
}

func evalUnary(row Row, u Unary) (any, error) {
	switch u.Op {
	case "not":
		v, err := evalExpr(row, u.X)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case "-":
		v, err := evalExpr(row, u.X)
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		default:
			return nil, fmt.Errorf("sqlengine: cannot negate %T", v)
		}
	case "isnull":
		v, err := evalExpr(row, u.X)
		if err != nil {
			return nil, err
		}
		return v == nil, nil
	case "isnotnull":
		v, err := evalExpr(row, u.X)
		if err != nil {
			return nil, err
		}
		return v != nil, nil
	default:
		return nil, fmt.Errorf("sqlengine: unknown unary operator %q", u.Op)
	}
}

func evalBinary(row Row, b Binary) (any, error) {
	if b.Op == "and" {
		l, err := evalExpr(row, b.Left)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := evalExpr(row, b.Right)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}
	if b.Op == "or" {
		l, err := evalExpr(row, b.Left)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := evalExpr(row, b.Right)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := evalExpr(row, b.Left)
	if err != nil {
		return nil, err
	}
	r, err := evalExpr(row, b.Right)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "=":
		c, ok := compareValues(l, r)
		return ok && c == 0, nil
	case "!=":
		c, ok := compareValues(l, r)
		return !ok || c != 0, nil
	case "<":
		c, ok := compareValues(l, r)
		return ok && c < 0, nil
	case "<=":
		c, ok := compareValues(l, r)
		return ok && c <= 0, nil
	case ">":
		c, ok := compareValues(l, r)
		return ok && c > 0, nil
	case ">=":
		c, ok := compareValues(l, r)
		return ok && c >= 0, nil
	case "like":
		ls, lok := l.(string)
		rs, rok := r.(string)
		return lok && rok && likeMatch(ls, rs), nil
	case "+", "-", "*", "/", "%":
		return arith(b.Op, l, r)
	default:
		return nil, fmt.Errorf("sqlengine: unknown binary operator %q", b.Op)
	}
}

func arith(op string, l, r any) (any, error) {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("sqlengine: arithmetic on non-numeric operand")
	}
	_, lIsFloat := l.(float64)
	_, rIsFloat := r.(float64)
	var result float64
	switch op {
	case "+":
		result = lf + rf
	case "-":
		result = lf - rf
	case "*":
		result = lf * rf
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("sqlengine: division by zero")
		}
		result = lf / rf
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("sqlengine: modulo by zero")
		}
		return int64(lf) % int64(rf), nil
	}
	if lIsFloat || rIsFloat {
		return result, nil
	}
	return int64(result), nil
}
