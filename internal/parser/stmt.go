package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"aura/internal/ast"
	"aura/internal/lexer"
)

var binaryOps = map[string]ast.BinOp{
	lexer.PLUS:      ast.Add,
	lexer.MINUS:     ast.Sub,
	lexer.STAR:      ast.Mul,
	lexer.SLASH:     ast.Div,
	lexer.PERCENT:   ast.Rem,
	lexer.AMPERSAND: ast.And,
	lexer.PIPE:      ast.Or,
	lexer.CARET:     ast.Xor,
	lexer.SHL:       ast.Shl,
	lexer.SHR:       ast.Shr,
	lexer.USHR:      ast.Ushr,
	lexer.CMP:       ast.Cmp,
	lexer.CMPL:      ast.Cmpl,
	lexer.CMPG:      ast.Cmpg,
}

var conditionOps = map[string]ast.BinOp{
	lexer.EQ:  ast.Eq,
	lexer.NEQ: ast.Ne,
	lexer.GT:  ast.Gt,
	lexer.GTE: ast.Ge,
	lexer.LT:  ast.Lt,
	lexer.LTE: ast.Le,
}

var invokeKinds = map[string]ast.InvokeKind{
	lexer.STATICINVOKE:    ast.StaticInvoke,
	lexer.VIRTUALINVOKE:   ast.VirtualInvoke,
	lexer.SPECIALINVOKE:   ast.SpecialInvoke,
	lexer.INTERFACEINVOKE: ast.InterfaceInvoke,
}

func (p *Parser) parseStatement(b *bodyState) ast.Stmt {
	tok := p.peek()
	var s ast.Stmt

	switch tok.Type {
	case lexer.RETURN:
		p.advance()
		if p.check(lexer.SEMICOLON) || p.check(lexer.HASH) {
			s = &ast.ReturnVoidStmt{}
		} else {
			s = &ast.ReturnStmt{Value: p.parseImmediate(b)}
		}
	case lexer.IF:
		s = p.parseIf(b)
	case lexer.GOTO:
		p.advance()
		g := &ast.GotoStmt{}
		p.labelRef(b, false, func(i int) { g.Target = i })
		s = g
	case lexer.LOOKUPSWITCH, lexer.TABLESWITCH:
		s = p.parseSwitch(b)
	case lexer.THROW:
		p.advance()
		s = &ast.ThrowStmt{Value: p.parseImmediate(b)}
	case lexer.ENTERMONITOR:
		p.advance()
		s = &ast.EnterMonitorStmt{Value: p.parseImmediate(b)}
	case lexer.EXITMONITOR:
		p.advance()
		s = &ast.ExitMonitorStmt{Value: p.parseImmediate(b)}
	case lexer.NOP:
		p.advance()
		s = &ast.NopStmt{}
	case lexer.STATICINVOKE, lexer.VIRTUALINVOKE, lexer.SPECIALINVOKE, lexer.INTERFACEINVOKE:
		s = &ast.InvokeStmt{Invoke: p.parseInvoke(b)}
	case lexer.IDENT, lexer.LT:
		s = p.parseAssign(b)
	default:
		p.addError(tok, fmt.Sprintf("unexpected token %s %q at start of statement", tok.Type, tok.Value))
		p.synchronize()
		return nil
	}

	info := ast.StmtInfo{Pos: p.position(tok)}
	p.parseTags(&info)
	p.expect(lexer.SEMICOLON, "expected ';' after statement")
	*s.Info() = info
	return s
}

// parseTags reads the optional check-elision tags: #nonull, #nolower,
// #noupper and #nocheck (all three).
func (p *Parser) parseTags(info *ast.StmtInfo) {
	for p.check(lexer.HASH) {
		p.advance()
		tag := p.expect(lexer.IDENT, "expected tag name after '#'")
		switch tag.Value {
		case "nonull":
			info.NoNullCheck = true
		case "nolower":
			info.NoLowerCheck = true
		case "noupper":
			info.NoUpperCheck = true
		case "nocheck":
			info.NoNullCheck = true
			info.NoLowerCheck = true
			info.NoUpperCheck = true
		default:
			p.addError(tag, fmt.Sprintf("unknown statement tag %q", tag.Value))
		}
	}
}

func (p *Parser) parseIf(b *bodyState) ast.Stmt {
	p.advance() // consume IF
	x := p.parseImmediate(b)
	opTok := p.advance()
	op, ok := conditionOps[opTok.Type]
	if !ok {
		p.addError(opTok, fmt.Sprintf("expected comparison operator, got %s", opTok.Type))
	}
	y := p.parseImmediate(b)
	p.expect(lexer.GOTO, "expected 'goto' in if statement")
	s := &ast.IfStmt{Cond: &ast.BinopExpr{Op: op, X: x, Y: y}}
	p.labelRef(b, false, func(i int) { s.Target = i })
	return s
}

func (p *Parser) parseSwitch(b *bodyState) ast.Stmt {
	kw := p.advance()
	p.expect(lexer.LPAREN, "expected '(' after switch")
	key := p.parseImmediate(b)
	p.expect(lexer.RPAREN, "expected ')' after switch key")
	p.expect(lexer.LBRACE, "expected '{' before switch cases")

	var s ast.Stmt
	var values []int32
	var targets *[]int
	var def *int
	if kw.Type == lexer.LOOKUPSWITCH {
		ls := &ast.LookupSwitchStmt{Key: key}
		s, targets, def = ls, &ls.Targets, &ls.Default
	} else {
		ts := &ast.TableSwitchStmt{Key: key}
		s, targets, def = ts, &ts.Targets, &ts.Default
	}

	for p.check(lexer.CASE) {
		p.advance()
		values = append(values, p.parseIntValue())
		p.expect(lexer.COLON, "expected ':' after case value")
		p.expect(lexer.GOTO, "expected 'goto' in case")
		idx := len(*targets)
		*targets = append(*targets, 0)
		p.labelRef(b, false, func(i int) { (*targets)[idx] = i })
		p.expect(lexer.SEMICOLON, "expected ';' after case")
	}
	p.expect(lexer.DEFAULT, "expected default case")
	p.expect(lexer.COLON, "expected ':' after default")
	p.expect(lexer.GOTO, "expected 'goto' in default case")
	p.labelRef(b, false, func(i int) { *def = i })
	p.expect(lexer.SEMICOLON, "expected ';' after default case")
	p.expect(lexer.RBRACE, "expected '}' after switch cases")

	switch s := s.(type) {
	case *ast.LookupSwitchStmt:
		s.Values = values
	case *ast.TableSwitchStmt:
		if len(values) == 0 {
			p.addError(kw, "tableswitch needs at least one case")
			break
		}
		s.Low, s.High = values[0], values[len(values)-1]
		for i, v := range values {
			if v != s.Low+int32(i) {
				p.addError(kw, "tableswitch case values must be contiguous and ascending")
				break
			}
		}
	}
	return s
}

func (p *Parser) parseAssign(b *bodyState) ast.Stmt {
	left := p.parseLValue(b)
	if p.check(lexer.DEFINE) {
		tok := p.advance()
		if _, ok := left.(*ast.Local); !ok {
			p.addError(tok, "identity assignment target must be a local")
		}
		return &ast.AssignStmt{Left: left, Right: p.parseIdentityRef()}
	}
	p.expect(lexer.ASSIGN, "expected '=' in assignment")
	return &ast.AssignStmt{Left: left, Right: p.parseRValue(b)}
}

// parseIdentityRef parses @this: T, @parameterN: T or @caughtexception.
func (p *Parser) parseIdentityRef() ast.Value {
	p.expect(lexer.AT, "expected '@' in identity assignment")
	tok := p.expect(lexer.IDENT, "expected identity reference")
	switch {
	case tok.Value == "this":
		p.expect(lexer.COLON, "expected ':' after @this")
		return &ast.ThisRef{Class: p.parseType()}
	case tok.Value == "caughtexception":
		return &ast.CaughtExceptionRef{}
	case strings.HasPrefix(tok.Value, "parameter"):
		idx, err := strconv.Atoi(strings.TrimPrefix(tok.Value, "parameter"))
		if err != nil || idx < 0 {
			p.addError(tok, fmt.Sprintf("invalid parameter reference %q", tok.Value))
		}
		p.expect(lexer.COLON, "expected ':' after parameter reference")
		return &ast.ParamRef{Index: idx, ParamType: p.parseType()}
	}
	p.addError(tok, fmt.Sprintf("unknown identity reference @%s", tok.Value))
	return &ast.CaughtExceptionRef{}
}

func (p *Parser) parseLValue(b *bodyState) ast.Value {
	if p.check(lexer.LT) {
		return &ast.StaticFieldRef{Field: p.parseFieldSig()}
	}
	local := p.parseLocal(b)
	return p.parseRefSuffix(b, local)
}

// parseRefSuffix parses an optional [index] or .<field> after a local.
func (p *Parser) parseRefSuffix(b *bodyState, local *ast.Local) ast.Value {
	if p.match(lexer.LBRACKET) {
		idx := p.parseImmediate(b)
		p.expect(lexer.RBRACKET, "expected ']' after array index")
		return &ast.ArrayRef{Base: local, Index: idx}
	}
	if p.check(lexer.DOT) && p.peekAt(1).Type == lexer.LT {
		p.advance()
		return &ast.InstanceFieldRef{Base: local, Field: p.parseFieldSig()}
	}
	return local
}

func (p *Parser) parseRValue(b *bodyState) ast.Value {
	tok := p.peek()
	switch tok.Type {
	case lexer.NEW:
		p.advance()
		return &ast.NewExpr{Class: internalName(p.parseQualifiedName())}
	case lexer.NEWARRAY:
		p.advance()
		p.expect(lexer.LPAREN, "expected '(' after newarray")
		elem := p.parseType()
		p.expect(lexer.RPAREN, "expected ')' after element type")
		p.expect(lexer.LBRACKET, "expected '[' before array size")
		size := p.parseImmediate(b)
		p.expect(lexer.RBRACKET, "expected ']' after array size")
		return &ast.NewArrayExpr{Elem: elem, Size: size}
	case lexer.NEWMULTIARRAY:
		p.advance()
		p.expect(lexer.LPAREN, "expected '(' after newmultiarray")
		t := p.parseType()
		p.expect(lexer.RPAREN, "expected ')' after base type")
		var sizes []ast.Value
		for p.match(lexer.LBRACKET) {
			if !p.check(lexer.RBRACKET) {
				sizes = append(sizes, p.parseImmediate(b))
			}
			p.expect(lexer.RBRACKET, "expected ']' after dimension")
			t = ast.ArrayOf(t)
		}
		if len(sizes) == 0 {
			p.addError(tok, "newmultiarray needs at least one dimension size")
		}
		return &ast.NewMultiArrayExpr{ArrayType: t, Sizes: sizes}
	case lexer.NEG:
		p.advance()
		return &ast.NegExpr{X: p.parseImmediate(b)}
	case lexer.LENGTHOF:
		p.advance()
		return &ast.LengthExpr{X: p.parseImmediate(b)}
	case lexer.LPAREN:
		p.advance()
		to := p.parseType()
		p.expect(lexer.RPAREN, "expected ')' after cast type")
		return &ast.CastExpr{X: p.parseImmediate(b), To: to}
	case lexer.STATICINVOKE, lexer.VIRTUALINVOKE, lexer.SPECIALINVOKE, lexer.INTERFACEINVOKE:
		return p.parseInvoke(b)
	case lexer.LT:
		return &ast.StaticFieldRef{Field: p.parseFieldSig()}
	case lexer.IDENT:
		next := p.peekAt(1)
		if next.Type == lexer.LBRACKET || (next.Type == lexer.DOT && p.peekAt(2).Type == lexer.LT) {
			return p.parseRefSuffix(b, p.parseLocal(b))
		}
	}

	x := p.parseImmediate(b)
	if p.match(lexer.INSTANCEOF) {
		return &ast.InstanceOfExpr{X: x, Check: p.parseType()}
	}
	if op, ok := binaryOps[p.peek().Type]; ok {
		p.advance()
		return &ast.BinopExpr{Op: op, X: x, Y: p.parseImmediate(b)}
	}
	return x
}

func (p *Parser) parseInvoke(b *bodyState) *ast.InvokeExpr {
	tok := p.advance()
	ie := &ast.InvokeExpr{Kind: invokeKinds[tok.Type]}
	if ie.Kind != ast.StaticInvoke {
		ie.Base = p.parseLocal(b)
		p.expect(lexer.DOT, "expected '.' after invoke receiver")
	}
	ie.Method = p.parseMethodSig()
	p.expect(lexer.LPAREN, "expected '(' before invoke arguments")
	for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
		ie.Args = append(ie.Args, p.parseImmediate(b))
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "expected ')' after invoke arguments")
	if len(ie.Args) != len(ie.Method.Params) {
		p.addError(tok, fmt.Sprintf("%s takes %d arguments, got %d", ie.Method, len(ie.Method.Params), len(ie.Args)))
	}
	return ie
}

// parseFieldSig parses <Owner: Type name>.
func (p *Parser) parseFieldSig() ast.FieldRef {
	p.expect(lexer.LT, "expected '<' before field signature")
	owner := internalName(p.parseQualifiedName())
	p.expect(lexer.COLON, "expected ':' in field signature")
	t := p.parseType()
	name := p.expect(lexer.IDENT, "expected field name")
	p.expect(lexer.GT, "expected '>' after field signature")
	return ast.FieldRef{Owner: owner, Name: name.Value, Type: t}
}

// parseMethodSig parses <Owner: Ret name(Params)>.
func (p *Parser) parseMethodSig() ast.MethodRef {
	p.expect(lexer.LT, "expected '<' before method signature")
	ref := ast.MethodRef{Owner: internalName(p.parseQualifiedName())}
	p.expect(lexer.COLON, "expected ':' in method signature")
	ref.Return = p.parseType()
	ref.Name = p.expect(lexer.IDENT, "expected method name").Value
	p.expect(lexer.LPAREN, "expected '(' in method signature")
	for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
		ref.Params = append(ref.Params, p.parseType())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, "expected ')' in method signature")
	p.expect(lexer.GT, "expected '>' after method signature")
	return ref
}

// =========================================================================
// Immediates and constants
// =========================================================================

func (p *Parser) parseImmediate(b *bodyState) ast.Value {
	if p.check(lexer.IDENT) {
		return p.parseLocal(b)
	}
	return p.parseConstant()
}

func (p *Parser) parseConstant() ast.Value {
	tok := p.peek()
	switch tok.Type {
	case lexer.INT, lexer.FLOAT, lexer.MINUS, lexer.HASH:
		return p.parseNumber()
	case lexer.NULL:
		p.advance()
		return &ast.NullConst{}
	case lexer.STRING:
		p.advance()
		return &ast.StringConst{Value: unescape(tok.Value[1 : len(tok.Value)-1])}
	case lexer.CLASS:
		p.advance()
		lit := p.expect(lexer.STRING, "expected class literal string")
		if lit.Type != lexer.STRING {
			return &ast.NullConst{}
		}
		return &ast.ClassConst{Class: p.classLiteralType(lit)}
	}
	p.addError(tok, fmt.Sprintf("expected value, got %s %q", tok.Type, tok.Value))
	p.advance()
	return &ast.IntConst{}
}

// classLiteralType accepts either a descriptor ("[I", "Ljava/lang/String;")
// or an internal name ("java/lang/String").
func (p *Parser) classLiteralType(tok lexer.Token) *ast.Type {
	s := tok.Value[1 : len(tok.Value)-1]
	if strings.HasPrefix(s, "[") || (strings.HasPrefix(s, "L") && strings.HasSuffix(s, ";")) {
		t, err := ast.ParseDescriptor(s)
		if err != nil {
			p.addError(tok, err.Error())
			return ast.ObjectType("java/lang/Object")
		}
		return t
	}
	return ast.ObjectType(internalName(s))
}

func (p *Parser) parseNumber() ast.Value {
	neg := p.match(lexer.MINUS)
	if p.match(lexer.HASH) {
		return p.parseSpecialFloat(neg)
	}
	tok := p.advance()
	switch tok.Type {
	case lexer.INT:
		text := tok.Value
		long := strings.HasSuffix(text, "L") || strings.HasSuffix(text, "l")
		text = strings.TrimRight(text, "Ll")
		v, err := parseInteger(text, long)
		if err != nil {
			p.addError(tok, err.Error())
		}
		if neg {
			v = -v
		}
		if long {
			return &ast.LongConst{Value: v}
		}
		return &ast.IntConst{Value: int32(v)}
	case lexer.FLOAT:
		text := tok.Value
		single := strings.HasSuffix(text, "F") || strings.HasSuffix(text, "f")
		text = strings.TrimRight(text, "FfDd")
		bits := 64
		if single {
			bits = 32
		}
		f, err := strconv.ParseFloat(text, bits)
		if err != nil {
			p.addError(tok, fmt.Sprintf("invalid float literal %q", tok.Value))
		}
		if neg {
			f = -f
		}
		if single {
			return &ast.FloatConst{Value: float32(f)}
		}
		return &ast.DoubleConst{Value: f}
	}
	p.addError(tok, fmt.Sprintf("expected number, got %s", tok.Type))
	return &ast.IntConst{}
}

// parseInteger parses decimal or hex text. Hex literals are bit patterns,
// so 0xFFFFFFFF is the int -1.
func parseInteger(text string, long bool) (int64, error) {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		bits := 32
		if long {
			bits = 64
		}
		u, err := strconv.ParseUint(text[2:], 16, bits)
		if err != nil {
			return 0, fmt.Errorf("invalid hex literal %q", text)
		}
		if long {
			return int64(u), nil
		}
		return int64(int32(uint32(u))), nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q", text)
	}
	// 2147483648 is legal only as the operand of a leading minus.
	if !long && (v > math.MaxInt32+1) {
		return 0, fmt.Errorf("integer literal %q out of int range", text)
	}
	return v, nil
}

// parseSpecialFloat parses #NaN, #Infinity and their F-suffixed float
// forms after the leading '#'.
func (p *Parser) parseSpecialFloat(neg bool) ast.Value {
	tok := p.expect(lexer.IDENT, "expected NaN or Infinity")
	var f float64
	switch strings.TrimSuffix(tok.Value, "F") {
	case "NaN":
		f = math.NaN()
	case "Infinity":
		f = math.Inf(1)
		if neg {
			f = math.Inf(-1)
		}
	default:
		p.addError(tok, fmt.Sprintf("unknown special float %q", tok.Value))
	}
	if strings.HasSuffix(tok.Value, "F") {
		return &ast.FloatConst{Value: float32(f)}
	}
	return &ast.DoubleConst{Value: f}
}

func (p *Parser) parseIntValue() int32 {
	tok := p.peek()
	v := p.parseNumber()
	c, ok := v.(*ast.IntConst)
	if !ok {
		p.addError(tok, "expected int constant")
		return 0
	}
	return c.Value
}

// unescape decodes the escapes accepted by the lexer.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '0':
			sb.WriteByte(0)
		case 'u':
			if i+4 < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+5], 16, 16); err == nil {
					sb.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			sb.WriteString(`\u`)
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
