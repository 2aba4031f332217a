package parser

import (
	"errors"
	"fmt"
	"strings"

	"aura/internal/ast"
	"aura/internal/lexer"
)

// ---------------------------------------------------------------------------
// ParseError
// ---------------------------------------------------------------------------

// ParseError represents a single error found during parsing.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Column, e.Message)
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser holds the state for a single parse pass over a token stream.
type Parser struct {
	tokens []lexer.Token
	pos    int
	errors []ParseError
}

// Parse is the main entry point. It takes a token slice (as produced by
// lexer.Lex) and returns the classes declared in it plus any parse errors
// collected.
func Parse(tokens []lexer.Token) ([]*ast.Class, []ParseError) {
	p := &Parser{tokens: tokens, pos: 0}
	classes := p.parseFile()
	return classes, p.errors
}

// ParseSource lexes and parses src. All lexical and syntax errors are
// joined into the returned error.
func ParseSource(src string) ([]*ast.Class, error) {
	tokens, lexErrs := lexer.Lex(src)
	classes, parseErrs := Parse(tokens)
	var errs []error
	for _, e := range lexErrs {
		errs = append(errs, e)
	}
	for _, e := range parseErrs {
		errs = append(errs, e)
	}
	return classes, errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

// peek returns the current token without consuming it.
func (p *Parser) peek() lexer.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return lexer.Token{Type: lexer.EOF}
}

// peekAt returns the token at a given offset from the current position.
func (p *Parser) peekAt(offset int) lexer.Token {
	idx := p.pos + offset
	if idx >= 0 && idx < len(p.tokens) {
		return p.tokens[idx]
	}
	return lexer.Token{Type: lexer.EOF}
}

// advance consumes and returns the current token.
func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if tok.Type != lexer.EOF {
		p.pos++
	}
	return tok
}

// previous returns the most recently consumed token.
func (p *Parser) previous() lexer.Token {
	if p.pos > 0 {
		return p.tokens[p.pos-1]
	}
	return lexer.Token{Type: lexer.EOF}
}

// check returns true if the current token has the given type.
func (p *Parser) check(typ string) bool {
	return p.peek().Type == typ
}

// match consumes the current token if it matches any of the given types.
func (p *Parser) match(types ...string) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes the current token if it matches typ; otherwise it records
// an error and returns the current token WITHOUT advancing.
func (p *Parser) expect(typ string, msg string) lexer.Token {
	if p.check(typ) {
		return p.advance()
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("%s (got %s %q)", msg, tok.Type, tok.Value))
	return tok
}

// addError appends a ParseError at the given token's location.
func (p *Parser) addError(tok lexer.Token, msg string) {
	p.errors = append(p.errors, ParseError{
		Message: msg,
		Line:    tok.Line,
		Column:  tok.Column,
	})
}

// synchronize advances past tokens until it reaches a likely statement
// boundary, allowing the parser to recover from an error and keep going.
func (p *Parser) synchronize() {
	p.advance()
	for !p.check(lexer.EOF) {
		if p.previous().Type == lexer.SEMICOLON {
			return
		}
		switch p.peek().Type {
		case lexer.RETURN, lexer.IF, lexer.GOTO, lexer.THROW, lexer.CATCH,
			lexer.LOOKUPSWITCH, lexer.TABLESWITCH, lexer.RBRACE:
			return
		}
		p.advance()
	}
}

// position converts a token into an ast.Position.
func (p *Parser) position(tok lexer.Token) ast.Position {
	return ast.Position{Line: tok.Line, Column: tok.Column}
}

// internalName converts a dotted Java name into a JVM internal name.
func internalName(dotted string) string {
	return strings.ReplaceAll(dotted, ".", "/")
}

// =========================================================================
// Top-level parsing
// =========================================================================

func (p *Parser) parseFile() []*ast.Class {
	var classes []*ast.Class
	for !p.check(lexer.EOF) {
		start := p.pos
		if c := p.parseClass(); c != nil {
			classes = append(classes, c)
		}
		if p.pos == start {
			p.advance()
		}
	}
	return classes
}

func (p *Parser) parseClass() *ast.Class {
	tok := p.peek()
	annots := p.parseAnnotations()
	mods := p.parseModifiers()
	switch {
	case p.match(lexer.INTERFACE):
		mods |= ast.Interface | ast.Abstract
	case p.match(lexer.CLASS):
	default:
		p.addError(p.peek(), fmt.Sprintf("expected class or interface declaration, got %s", p.peek().Type))
		return nil
	}

	c := &ast.Class{
		Name:        internalName(p.parseQualifiedName()),
		Modifiers:   mods,
		Annotations: annots,
		Pos:         p.position(tok),
	}
	if p.match(lexer.EXTENDS) {
		supers := p.parseNameList()
		if c.IsInterface() {
			c.Interfaces = append(c.Interfaces, supers...)
		} else if len(supers) > 0 {
			c.Super = supers[0]
			if len(supers) > 1 {
				p.addError(p.previous(), "a class can extend only one class")
			}
		}
	}
	if p.match(lexer.IMPLEMENTS) {
		c.Interfaces = append(c.Interfaces, p.parseNameList()...)
	}
	if c.Super == "" && c.Name != "java/lang/Object" {
		c.Super = "java/lang/Object"
	}

	p.expect(lexer.LBRACE, "expected '{' after class header")
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		start := p.pos
		p.parseMember(c)
		if p.pos == start {
			p.advance()
		}
	}
	p.expect(lexer.RBRACE, "expected '}' after class body")
	return c
}

func (p *Parser) parseNameList() []string {
	names := []string{internalName(p.parseQualifiedName())}
	for p.match(lexer.COMMA) {
		names = append(names, internalName(p.parseQualifiedName()))
	}
	return names
}

// parseQualifiedName parses IDENT {'.' IDENT} and returns it dotted.
func (p *Parser) parseQualifiedName() string {
	first := p.expect(lexer.IDENT, "expected name")
	if first.Type != lexer.IDENT {
		return "<error>"
	}
	name := first.Value
	for p.check(lexer.DOT) && p.peekAt(1).Type == lexer.IDENT {
		p.advance()
		name += "." + p.advance().Value
	}
	return name
}

func (p *Parser) parseModifiers() ast.Modifiers {
	var mods ast.Modifiers
	for p.check(lexer.MODIFIER) {
		m, _ := ast.ModifierByName(p.advance().Value)
		mods |= m
	}
	return mods
}

// parseAnnotations parses zero or more @Name or @Name(values) markers.
func (p *Parser) parseAnnotations() ast.Annotations {
	var out ast.Annotations
	for p.check(lexer.AT) {
		at := p.advance()
		name := p.expect(lexer.IDENT, "expected annotation name")
		a := &ast.Annotation{Name: name.Value, Pos: p.position(at)}
		if p.match(lexer.LPAREN) {
			a.Values = map[string]string{}
			for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
				key := "value"
				if p.check(lexer.IDENT) && p.peekAt(1).Type == lexer.ASSIGN {
					key = p.advance().Value
					p.advance()
				}
				a.Values[key] = p.parseAnnotationValue()
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.RPAREN, "expected ')' after annotation values")
		}
		out = append(out, a)
	}
	return out
}

func (p *Parser) parseAnnotationValue() string {
	tok := p.peek()
	switch tok.Type {
	case lexer.STRING:
		p.advance()
		return unescape(tok.Value[1 : len(tok.Value)-1])
	case lexer.INT, lexer.FLOAT:
		p.advance()
		return tok.Value
	case lexer.MINUS:
		p.advance()
		return "-" + p.advance().Value
	case lexer.IDENT:
		return p.parseQualifiedName()
	}
	p.addError(tok, fmt.Sprintf("expected annotation value, got %s", tok.Type))
	p.advance()
	return ""
}

// parseType parses a Java type: a primitive keyword or a qualified class
// name, followed by any number of [] pairs.
func (p *Parser) parseType() *ast.Type {
	tok := p.peek()
	if tok.Type != lexer.IDENT {
		p.addError(tok, fmt.Sprintf("expected type name, got %s", tok.Type))
		return ast.ObjectType("java/lang/Object")
	}
	name := p.parseQualifiedName()
	var t *ast.Type
	if prim, ok := ast.PrimitiveByName(name); ok {
		t = prim
	} else {
		t = ast.ObjectType(internalName(name))
	}
	for p.check(lexer.LBRACKET) && p.peekAt(1).Type == lexer.RBRACKET {
		p.advance()
		p.advance()
		t = ast.ArrayOf(t)
	}
	return t
}

func (p *Parser) parseMember(c *ast.Class) {
	tok := p.peek()
	annots := p.parseAnnotations()
	mods := p.parseModifiers()
	typ := p.parseType()
	name := p.expect(lexer.IDENT, "expected member name")
	if name.Type != lexer.IDENT {
		p.synchronize()
		return
	}

	if !p.check(lexer.LPAREN) {
		f := &ast.Field{
			Name:        name.Value,
			Type:        typ,
			Modifiers:   mods,
			Annotations: annots,
			Class:       c,
			Pos:         p.position(tok),
		}
		if p.match(lexer.ASSIGN) {
			f.Constant = p.parseConstant()
		}
		p.expect(lexer.SEMICOLON, "expected ';' after field declaration")
		c.Fields = append(c.Fields, f)
		return
	}

	p.advance() // consume '('
	m := &ast.Method{
		Name:        name.Value,
		Return:      typ,
		Modifiers:   mods,
		Annotations: annots,
		Class:       c,
		Pos:         p.position(tok),
	}
	for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
		pa := p.parseAnnotations()
		m.Params = append(m.Params, p.parseType())
		m.ParamAnnotations = append(m.ParamAnnotations, pa)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "expected ')' after parameters")

	if p.match(lexer.SEMICOLON) {
		if !m.IsNative() {
			m.Modifiers |= ast.Abstract
		}
	} else {
		m.Body = p.parseBody()
	}
	c.Methods = append(c.Methods, m)
}

// =========================================================================
// Method bodies
// =========================================================================

type labelFixup struct {
	name     string
	tok      lexer.Token
	allowEnd bool
	set      func(int)
}

// bodyState tracks locals and label references while parsing one body.
type bodyState struct {
	body   *ast.Body
	locals map[string]*ast.Local
	labels map[string]int
	fixups []labelFixup
}

func (p *Parser) parseBody() *ast.Body {
	p.expect(lexer.LBRACE, "expected '{' before method body")
	b := &bodyState{
		body:   &ast.Body{},
		locals: make(map[string]*ast.Local),
		labels: make(map[string]int),
	}

	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		start := p.pos
		switch {
		case p.check(lexer.IDENT) && p.peekAt(1).Type == lexer.COLON:
			tok := p.advance()
			p.advance()
			if _, dup := b.labels[tok.Value]; dup {
				p.addError(tok, fmt.Sprintf("duplicate label %q", tok.Value))
			}
			b.labels[tok.Value] = len(b.body.Stmts)
		case p.check(lexer.CATCH):
			p.parseCatch(b)
		case p.isLocalDecl():
			p.parseLocalDecl(b)
		default:
			if s := p.parseStatement(b); s != nil {
				b.body.Stmts = append(b.body.Stmts, s)
			}
		}
		if p.pos == start {
			p.advance()
		}
	}
	p.expect(lexer.RBRACE, "expected '}' after method body")

	n := len(b.body.Stmts)
	for _, f := range b.fixups {
		idx, ok := b.labels[f.name]
		switch {
		case !ok:
			p.addError(f.tok, fmt.Sprintf("undefined label %q", f.name))
		case idx >= n && !(f.allowEnd && idx == n):
			p.addError(f.tok, fmt.Sprintf("label %q does not precede a statement", f.name))
		default:
			f.set(idx)
		}
	}
	return b.body
}

// isLocalDecl looks ahead for `Type name`: a qualified name, optional []
// pairs, then an identifier.
func (p *Parser) isLocalDecl() bool {
	if !p.check(lexer.IDENT) {
		return false
	}
	i := 1
	for p.peekAt(i).Type == lexer.DOT && p.peekAt(i+1).Type == lexer.IDENT {
		i += 2
	}
	for p.peekAt(i).Type == lexer.LBRACKET && p.peekAt(i+1).Type == lexer.RBRACKET {
		i += 2
	}
	return p.peekAt(i).Type == lexer.IDENT
}

func (p *Parser) parseLocalDecl(b *bodyState) {
	typ := p.parseType()
	for {
		name := p.expect(lexer.IDENT, "expected local name")
		if name.Type == lexer.IDENT {
			if _, dup := b.locals[name.Value]; dup {
				p.addError(name, fmt.Sprintf("local %q redeclared", name.Value))
			} else {
				l := &ast.Local{Name: name.Value, DeclType: typ, Pos: p.position(name)}
				b.locals[name.Value] = l
				b.body.Locals = append(b.body.Locals, l)
			}
		}
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.SEMICOLON, "expected ';' after local declaration")
}

func (p *Parser) parseCatch(b *bodyState) {
	tok := p.advance() // consume CATCH
	idx := len(b.body.Traps)
	b.body.Traps = append(b.body.Traps, ast.Trap{
		Exception: internalName(p.parseQualifiedName()),
		Pos:       p.position(tok),
	})
	p.expect(lexer.FROM, "expected 'from' in catch clause")
	p.labelRef(b, false, func(i int) { b.body.Traps[idx].Begin = i })
	p.expect(lexer.TO, "expected 'to' in catch clause")
	p.labelRef(b, true, func(i int) { b.body.Traps[idx].End = i })
	p.expect(lexer.WITH, "expected 'with' in catch clause")
	p.labelRef(b, false, func(i int) { b.body.Traps[idx].Handler = i })
	p.expect(lexer.SEMICOLON, "expected ';' after catch clause")
}

func (p *Parser) labelRef(b *bodyState, allowEnd bool, set func(int)) {
	tok := p.expect(lexer.IDENT, "expected label")
	if tok.Type != lexer.IDENT {
		return
	}
	b.fixups = append(b.fixups, labelFixup{name: tok.Value, tok: tok, allowEnd: allowEnd, set: set})
}

func (p *Parser) parseLocal(b *bodyState) *ast.Local {
	tok := p.expect(lexer.IDENT, "expected local")
	if l, ok := b.locals[tok.Value]; ok {
		return l
	}
	p.addError(tok, fmt.Sprintf("undeclared local %q", tok.Value))
	l := &ast.Local{Name: tok.Value, DeclType: ast.ObjectType("java/lang/Object"), Pos: p.position(tok)}
	b.locals[tok.Value] = l
	return l
}
