// Package parser is a recursive-descent, two-token-lookahead parser that
// turns SQL text into a sql/ast.Statement, grounded on the same (cur, peek)
// token-pair shape as tinySQL's Parser.
package parser

import (
	"github.com/nainya/miniql/internal/dberr"
	"github.com/nainya/miniql/sql/ast"
	"github.com/nainya/miniql/sql/token"
)

// Parser holds a two-token lookahead window over a token.Lexer.
type Parser struct {
	lx   *token.Lexer
	cur  token.Token
	peek token.Token
}

// New returns a Parser over sql, primed with its first two tokens.
func New(sql string) *Parser {
	p := &Parser{lx: token.New(sql)}
	p.cur = p.lx.Next()
	p.peek = p.lx.Next()
	return p
}

// Parse parses exactly one statement and reports an error if trailing
// input remains (other than an optional terminating ';').
func Parse(sql string) (ast.Statement, error) {
	p := New(sql)
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.cur.Type == token.Symbol && p.cur.Val == ";" {
		p.advance()
	}
	if p.cur.Type != token.EOF {
		return nil, p.errorf("unexpected trailing input")
	}
	return stmt, nil
}

func (p *Parser) advance() { p.cur, p.peek = p.peek, p.lx.Next() }

func (p *Parser) errorf(format string, args ...any) error {
	return dberr.ParseError(p.cur.Val, p.cur.Pos, format, args...)
}

func (p *Parser) atKeyword(kw string) bool {
	return p.cur.Type == token.Keyword && p.cur.Val == kw
}

func (p *Parser) atSymbol(sym string) bool {
	return p.cur.Type == token.Symbol && p.cur.Val == sym
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf("expected keyword %s", kw)
	}
	p.advance()
	return nil
}

func (p *Parser) expectSymbol(sym string) error {
	if !p.atSymbol(sym) {
		return p.errorf("expected %q", sym)
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur.Type != token.Ident {
		return "", p.errorf("expected identifier")
	}
	name := p.cur.Val
	p.advance()
	return name, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.atKeyword("EXPLAIN"):
		return p.parseExplain()
	case p.atKeyword("CREATE"):
		return p.parseCreate()
	case p.atKeyword("DROP"):
		return p.parseDrop()
	case p.atKeyword("ALTER"):
		return p.parseAlter()
	case p.atKeyword("INSERT"):
		return p.parseInsert()
	case p.atKeyword("SELECT"):
		return p.parseSelect()
	case p.atKeyword("UPDATE"):
		return p.parseUpdate()
	case p.atKeyword("DELETE"):
		return p.parseDelete()
	default:
		return nil, p.errorf("expected a statement")
	}
}

func (p *Parser) parseExplain() (ast.Statement, error) {
	p.advance()
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	sel, ok := stmt.(*ast.Select)
	if !ok {
		return nil, p.errorf("EXPLAIN requires a SELECT statement")
	}
	return &ast.Explain{Stmt: sel}, nil
}

func (p *Parser) parseColType() (ast.ColType, error) {
	switch {
	case p.atKeyword("INT"):
		p.advance()
		return ast.TypeInt, nil
	case p.atKeyword("FLOAT"):
		p.advance()
		return ast.TypeFloat, nil
	case p.atKeyword("TEXT"):
		p.advance()
		return ast.TypeText, nil
	default:
		return "", p.errorf("expected column type INT, FLOAT or TEXT")
	}
}

func (p *Parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	typ, err := p.parseColType()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	return ast.ColumnDef{Name: name, Type: typ}, nil
}

func (p *Parser) parseCreate() (ast.Statement, error) {
	p.advance()
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		var cols []ast.ColumnDef
		for {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
			if p.atSymbol(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &ast.CreateTable{Table: table, Columns: cols}, nil

	case p.atKeyword("INDEX"):
		p.advance()
		index, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		column, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &ast.CreateIndex{Index: index, Table: table, Column: column}, nil

	default:
		return nil, p.errorf("expected TABLE or INDEX after CREATE")
	}
}

func (p *Parser) parseDrop() (ast.Statement, error) {
	p.advance()
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.DropTable{Table: table}, nil
	case p.atKeyword("INDEX"):
		p.advance()
		index, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.DropIndex{Index: index}, nil
	default:
		return nil, p.errorf("expected TABLE or INDEX after DROP")
	}
}

func (p *Parser) parseAlter() (ast.Statement, error) {
	p.advance()
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ADD"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("COLUMN"); err != nil {
		return nil, err
	}
	col, err := p.parseColumnDef()
	if err != nil {
		return nil, err
	}
	return &ast.AlterTableAddColumn{Table: table, Column: col}, nil
}

func (p *Parser) parseLiteral() (ast.Expr, error) {
	switch p.cur.Type {
	case token.Number:
		val := p.cur.Val
		p.advance()
		return &ast.Literal{Kind: "NUMBER", Val: val}, nil
	case token.String:
		val := p.cur.Val
		p.advance()
		return &ast.Literal{Kind: "STRING", Val: val}, nil
	default:
		return nil, p.errorf("expected a literal value")
	}
}

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.advance()
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []ast.Expr
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		vals = append(vals, lit)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &ast.Insert{Table: table, Values: vals}, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.advance()
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var assigns []ast.Assignment
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, ast.Assignment{Column: col, Value: lit})
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	var where ast.Expr
	if p.atKeyword("WHERE") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Update{Table: table, Assignments: assigns, Where: where}, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.advance()
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.atKeyword("WHERE") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Delete{Table: table, Where: where}, nil
}

func (p *Parser) parseQualifiedName() (*ast.QualifiedName, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.atSymbol(".") {
		p.advance()
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.QualifiedName{Qualifier: name, Name: col}, nil
	}
	return &ast.QualifiedName{Name: name}, nil
}

var aggFuncs = map[string]bool{"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true}

func (p *Parser) parseColExpr() (ast.Expr, error) {
	if p.cur.Type == token.Keyword && aggFuncs[p.cur.Val] {
		fn := p.cur.Val
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		if p.atSymbol("*") {
			p.advance()
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return &ast.AggExpr{Func: fn, Star: true}, nil
		}
		arg, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &ast.AggExpr{Func: fn, Arg: arg}, nil
	}
	return p.parseQualifiedName()
}

func (p *Parser) parseSelectList() ([]ast.SelectItem, error) {
	var items []ast.SelectItem
	for {
		if p.atSymbol("*") {
			p.advance()
			items = append(items, ast.SelectItem{Star: true})
		} else {
			e, err := p.parseColExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, ast.SelectItem{Expr: e})
		}
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

// parseOptionalAlias consumes `AS ident` or a bare `ident` immediately
// following a table reference. A bare identifier is only treated as an
// alias, never a keyword that starts the next clause (WHERE, JOIN, ON,
// GROUP, etc.), since keywords lex as token.Keyword, not token.Ident.
func (p *Parser) parseOptionalAlias() (string, error) {
	if p.atKeyword("AS") {
		p.advance()
		return p.expectIdent()
	}
	if p.cur.Type == token.Ident {
		name := p.cur.Val
		p.advance()
		return name, nil
	}
	return "", nil
}

func (p *Parser) parseJoin() (*ast.Join, error) {
	kind := ast.Inner
	switch {
	case p.atKeyword("INNER"):
		p.advance()
	case p.atKeyword("LEFT"):
		kind = ast.Left
		p.advance()
	case p.atKeyword("RIGHT"):
		kind = ast.Right
		p.advance()
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	alias, err := p.parseOptionalAlias()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Join{Kind: kind, Table: table, Alias: alias, On: on}, nil
}

func (p *Parser) parseSelect() (ast.Statement, error) {
	p.advance()
	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	fromAlias, err := p.parseOptionalAlias()
	if err != nil {
		return nil, err
	}

	sel := &ast.Select{Items: items, From: from, FromAlias: fromAlias}

	if p.atKeyword("INNER") || p.atKeyword("LEFT") || p.atKeyword("RIGHT") || p.atKeyword("JOIN") {
		join, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		sel.Join = join
	}

	if p.atKeyword("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = w
	}

	if p.atKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, name)
			if p.atSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}

	if p.atKeyword("HAVING") {
		p.advance()
		h, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = h
	}

	if p.atKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		sel.OrderBy = name
	}

	if p.atKeyword("LIMIT") {
		p.advance()
		if p.cur.Type != token.Number {
			return nil, p.errorf("expected integer after LIMIT")
		}
		n, err := parseIntLiteral(p.cur.Val)
		if err != nil {
			return nil, p.errorf("invalid LIMIT value %q", p.cur.Val)
		}
		p.advance()
		sel.Limit = &n
	}

	return sel, nil
}

func parseIntLiteral(s string) (int, error) {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, p_errNotInt
		}
		n = n*10 + int(ch-'0')
	}
	return n, nil
}

var p_errNotInt = dberr.Newf(dberr.ParseFailure, "not an integer literal")

// expr := or_expr
func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

var cmpOps = map[string]bool{"=": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true}

func (p *Parser) parseCmp() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.Type == token.Symbol && cmpOps[p.cur.Val] {
		op := p.cur.Val
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur.Type {
	case token.Number, token.String:
		return p.parseLiteral()
	case token.Ident:
		return p.parseQualifiedName()
	default:
		return nil, p.errorf("expected a literal or column reference")
	}
}
