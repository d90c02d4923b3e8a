package sqlengine

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser walks a token stream one token ahead, same shape as tinySQL's
// own parser (Parser{lx, cur, peek}).
type Parser struct {
	lx   *lexer
	cur  token
	peek token
}

// NewParser starts a Parser over sql, already primed with cur/peek.
func NewParser(sql string) (*Parser, error) {
	p := &Parser{lx: newLexer(sql)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *Parser) errf(format string, args ...any) error {
	return fmt.Errorf("sqlengine: parse error near %q: %s", p.cur.text, fmt.Sprintf(format, args...))
}

func (p *Parser) isKeyword(kw string) bool {
	return p.cur.kind == tokKeyword && p.cur.text == kw
}

func (p *Parser) isSymbol(sym string) bool {
	return p.cur.kind == tokSymbol && p.cur.text == sym
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return p.errf("expected keyword %q", kw)
	}
	return p.advance()
}

func (p *Parser) expectSymbol(sym string) error {
	if !p.isSymbol(sym) {
		return p.errf("expected %q", sym)
	}
	return p.advance()
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur.kind != tokIdent {
		return "", p.errf("expected identifier")
	}
	name := p.cur.text
	return name, p.advance()
}

// ParseSQL parses a single SQL statement. A trailing ';' is optional.
func ParseSQL(sql string) (Statement, error) {
	p, err := NewParser(sql)
	if err != nil {
		return nil, err
	}
	var stmt Statement
	switch {
	case p.isKeyword("select"):
		stmt, err = p.parseSelect()
	case p.isKeyword("insert"):
		stmt, err = p.parseInsert()
	case p.isKeyword("update"):
		stmt, err = p.parseUpdate()
	case p.isKeyword("delete"):
		stmt, err = p.parseDelete()
	case p.isKeyword("create"):
		stmt, err = p.parseCreateTable()
	default:
		return nil, p.errf("unsupported statement")
	}
	if err != nil {
		return nil, err
	}
	if p.isSymbol(";") {
		_ = p.advance()
	}
	if p.cur.kind != tokEOF {
		return nil, p.errf("unexpected trailing input")
	}
	return stmt, nil
}

func (p *Parser) parseCreateTable() (Statement, error) {
	if err := p.expectKeyword("create"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("table"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []Column
	for {
		colName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		ct, err := p.parseColType()
		if err != nil {
			return nil, err
		}
		col := Column{Name: colName, Type: ct}
		if p.isKeyword("primary") {
			_ = p.advance()
			if err := p.expectKeyword("key"); err != nil {
				return nil, err
			}
			col.PrimaryKey = true
		}
		cols = append(cols, col)
		if p.isSymbol(",") {
			_ = p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return CreateTable{Table: name, Cols: cols}, nil
}

func (p *Parser) parseColType() (ColType, error) {
	switch {
	case p.isKeyword("integer") || p.isKeyword("int"):
		_ = p.advance()
		return IntType, nil
	case p.isKeyword("real"):
		_ = p.advance()
		return RealType, nil
	case p.isKeyword("text"):
		_ = p.advance()
		return TextType, nil
	case p.isKeyword("blob"):
		_ = p.advance()
		return BlobType, nil
	default:
		return 0, p.errf("expected a column type")
	}
}

func (p *Parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("insert"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("into"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.isSymbol("(") {
		_ = p.advance()
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.isSymbol(",") {
				_ = p.advance()
				continue
			}
			break
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("values"); err != nil {
		return nil, err
	}
	var rows [][]Expr
	for {
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.isSymbol(",") {
				_ = p.advance()
				continue
			}
			break
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.isSymbol(",") {
			_ = p.advance()
			continue
		}
		break
	}
	return Insert{Table: table, Cols: cols, Rows: rows}, nil
}

func (p *Parser) parseUpdate() (Statement, error) {
	if err := p.expectKeyword("update"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("set"); err != nil {
		return nil, err
	}
	var sets []Assignment
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sets = append(sets, Assignment{Col: col, Expr: val})
		if p.isSymbol(",") {
			_ = p.advance()
			continue
		}
		break
	}
	var where Expr
	if p.isKeyword("where") {
		_ = p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return Update{Table: table, Sets: sets, Where: where}, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	if err := p.expectKeyword("delete"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where Expr
	if p.isKeyword("where") {
		_ = p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return Delete{Table: table, Where: where}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("select"); err != nil {
		return nil, err
	}
	sel := Select{}
	if p.isKeyword("distinct") {
		_ = p.advance()
		sel.Distinct = true
	}
	for {
		proj, err := p.parseProjection()
		if err != nil {
			return nil, err
		}
		sel.Projs = append(sel.Projs, proj)
		if p.isSymbol(",") {
			_ = p.advance()
			continue
		}
		break
	}
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	from, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	sel.From = from
	if p.isKeyword("as") {
		_ = p.advance()
		sel.FromAs, err = p.expectIdent()
		if err != nil {
			return nil, err
		}
	}
	for p.isKeyword("join") || p.isKeyword("inner") {
		if p.isKeyword("inner") {
			_ = p.advance()
		}
		if err := p.expectKeyword("join"); err != nil {
			return nil, err
		}
		jt, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		jc := JoinClause{Table: jt}
		if p.isKeyword("as") {
			_ = p.advance()
			jc.Alias, err = p.expectIdent()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expectKeyword("on"); err != nil {
			return nil, err
		}
		jc.On, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Joins = append(sel.Joins, jc)
	}
	if p.isKeyword("where") {
		_ = p.advance()
		sel.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.isKeyword("order") {
		_ = p.advance()
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			term := OrderTerm{Expr: e}
			if p.isKeyword("desc") {
				_ = p.advance()
				term.Desc = true
			} else if p.isKeyword("asc") {
				_ = p.advance()
			}
			sel.OrderBy = append(sel.OrderBy, term)
			if p.isSymbol(",") {
				_ = p.advance()
				continue
			}
			break
		}
	}
	if p.isKeyword("limit") {
		_ = p.advance()
		if p.cur.kind != tokNumber {
			return nil, p.errf("expected a number after LIMIT")
		}
		n, err := strconv.Atoi(p.cur.text)
		if err != nil {
			return nil, p.errf("invalid LIMIT value: %v", err)
		}
		sel.Limit = n
		sel.HasLimit = true
		_ = p.advance()
	}
	return sel, nil
}

func (p *Parser) parseProjection() (Projection, error) {
	if p.isSymbol("*") {
		_ = p.advance()
		return Projection{Star: true}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return Projection{}, err
	}
	proj := Projection{Expr: e}
	if p.isKeyword("as") {
		_ = p.advance()
		proj.Alias, err = p.expectIdent()
		if err != nil {
			return Projection{}, err
		}
	} else if p.cur.kind == tokIdent {
		proj.Alias, err = p.expectIdent()
		if err != nil {
			return Projection{}, err
		}
	}
	return proj, nil
}

// Operator precedence, lowest to highest: OR, AND, comparisons,
// additive, multiplicative, unary.
func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		_ = p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		_ = p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.isKeyword("not") {
		_ = p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("like") {
		_ = p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return Binary{Op: "like", Left: left, Right: right}, nil
	}
	if p.isKeyword("is") {
		_ = p.advance()
		neg := false
		if p.isKeyword("not") {
			_ = p.advance()
			neg = true
		}
		if err := p.expectKeyword("null"); err != nil {
			return nil, err
		}
		op := "isnull"
		if neg {
			op = "isnotnull"
		}
		return Unary{Op: op, X: left}, nil
	}
	if p.cur.kind == tokSymbol && comparisonOps[p.cur.text] {
		op := p.cur.text
		_ = p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return Binary{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("+") || p.isSymbol("-") {
		op := p.cur.text
		_ = p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("*") || p.isSymbol("/") || p.isSymbol("%") {
		op := p.cur.text
		_ = p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.isSymbol("-") {
		_ = p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "-", X: x}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch {
	case p.cur.kind == tokNumber:
		text := p.cur.text
		_ = p.advance()
		if strings.Contains(text, ".") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, p.errf("invalid number %q: %v", text, err)
			}
			return Literal{Val: f}, nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, p.errf("invalid number %q: %v", text, err)
		}
		return Literal{Val: n}, nil
	case p.cur.kind == tokString:
		s := p.cur.text
		_ = p.advance()
		return Literal{Val: s}, nil
	case p.isKeyword("null"):
		_ = p.advance()
		return Literal{Val: nil}, nil
	case p.isKeyword("true"):
		_ = p.advance()
		return Literal{Val: int64(1)}, nil
	case p.isKeyword("false"):
		_ = p.advance()
		return Literal{Val: int64(0)}, nil
	case p.isSymbol("("):
		_ = p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.cur.kind == tokIdent:
		name := p.cur.text
		_ = p.advance()
		if p.isSymbol("(") {
			return p.parseFuncCallArgs(name)
		}
		if p.isSymbol(".") {
			_ = p.advance()
			col, err := p.identOrStar()
			if err != nil {
				return nil, err
			}
			return ColumnRef{Table: name, Name: col}, nil
		}
		return ColumnRef{Name: name}, nil
	default:
		return nil, p.errf("expected an expression")
	}
}

func (p *Parser) identOrStar() (string, error) {
	if p.isSymbol("*") {
		_ = p.advance()
		return "*", nil
	}
	return p.expectIdent()
}

func (p *Parser) parseFuncCallArgs(name string) (Expr, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	fc := FuncCall{Name: strings.ToUpper(name)}
	if p.isSymbol("*") {
		_ = p.advance()
		fc.Star = true
	} else if !p.isSymbol(")") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, e)
			if p.isSymbol(",") {
				_ = p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return fc, nil
}
