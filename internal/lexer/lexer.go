package lexer

import "fmt"

const (
	// Special
	EOF     = "EOF"
	ILLEGAL = "ILLEGAL"

	// Literals
	IDENT  = "IDENT"  // identifiers: r0, $i1, java, Foo$Bar, <init>, …
	INT    = "INT"    // integer literals: 0, 42, 0xFF, 10L, …
	FLOAT  = "FLOAT"  // float literals: 3.14, 0.5F, 1.0e10, …
	STRING = "STRING" // string literals: "hello", …

	// Declaration keywords
	CLASS      = "CLASS"
	INTERFACE  = "INTERFACE"
	EXTENDS    = "EXTENDS"
	IMPLEMENTS = "IMPLEMENTS"
	MODIFIER   = "MODIFIER" // public, static, native, …
	CATCH      = "CATCH"
	FROM       = "FROM"
	TO         = "TO"
	WITH       = "WITH"

	// Statement keywords
	RETURN       = "RETURN"
	IF           = "IF"
	GOTO         = "GOTO"
	LOOKUPSWITCH = "LOOKUPSWITCH"
	TABLESWITCH  = "TABLESWITCH"
	CASE         = "CASE"
	DEFAULT      = "DEFAULT"
	THROW        = "THROW"
	ENTERMONITOR = "ENTERMONITOR"
	EXITMONITOR  = "EXITMONITOR"
	NOP          = "NOP"

	// Expression keywords
	NEW             = "NEW"
	NEWARRAY        = "NEWARRAY"
	NEWMULTIARRAY   = "NEWMULTIARRAY"
	LENGTHOF        = "LENGTHOF"
	NEG             = "NEG"
	INSTANCEOF      = "INSTANCEOF"
	CMP             = "CMP"
	CMPL            = "CMPL"
	CMPG            = "CMPG"
	STATICINVOKE    = "STATICINVOKE"
	VIRTUALINVOKE   = "VIRTUALINVOKE"
	SPECIALINVOKE   = "SPECIALINVOKE"
	INTERFACEINVOKE = "INTERFACEINVOKE"
	NULL            = "NULL"

	// Delimiters
	LPAREN    = "LPAREN"    // (
	RPAREN    = "RPAREN"    // )
	LBRACE    = "LBRACE"    // {
	RBRACE    = "RBRACE"    // }
	LBRACKET  = "LBRACKET"  // [
	RBRACKET  = "RBRACKET"  // ]
	SEMICOLON = "SEMICOLON" // ;
	COLON     = "COLON"     // :
	COMMA     = "COMMA"     // ,
	DOT       = "DOT"       // .
	HASH      = "HASH"      // #
	AT        = "AT"        // @

	// Operators
	DEFINE    = "DEFINE"    // :=
	ASSIGN    = "ASSIGN"    // =
	PLUS      = "PLUS"      // +
	MINUS     = "MINUS"     // -
	STAR      = "STAR"      // *
	SLASH     = "SLASH"     // /
	PERCENT   = "PERCENT"   // %
	AMPERSAND = "AMPERSAND" // &
	PIPE      = "PIPE"      // |
	CARET     = "CARET"     // ^
	SHL       = "SHL"       // <<
	SHR       = "SHR"       // >>
	USHR      = "USHR"      // >>>

	// Comparison operators
	EQ  = "EQ"  // ==
	NEQ = "NEQ" // !=
	LT  = "LT"  // <
	GT  = "GT"  // >
	LTE = "LTE" // <=
	GTE = "GTE" // >=
)

// keywords maps reserved words to their token types.
var keywords = map[string]string{
	"class":           CLASS,
	"interface":       INTERFACE,
	"extends":         EXTENDS,
	"implements":      IMPLEMENTS,
	"public":          MODIFIER,
	"private":         MODIFIER,
	"protected":       MODIFIER,
	"static":          MODIFIER,
	"final":           MODIFIER,
	"synchronized":    MODIFIER,
	"volatile":        MODIFIER,
	"transient":       MODIFIER,
	"native":          MODIFIER,
	"abstract":        MODIFIER,
	"enum":            MODIFIER,
	"catch":           CATCH,
	"from":            FROM,
	"to":              TO,
	"with":            WITH,
	"return":          RETURN,
	"if":              IF,
	"goto":            GOTO,
	"lookupswitch":    LOOKUPSWITCH,
	"tableswitch":     TABLESWITCH,
	"case":            CASE,
	"default":         DEFAULT,
	"throw":           THROW,
	"entermonitor":    ENTERMONITOR,
	"exitmonitor":     EXITMONITOR,
	"nop":             NOP,
	"new":             NEW,
	"newarray":        NEWARRAY,
	"newmultiarray":   NEWMULTIARRAY,
	"lengthof":        LENGTHOF,
	"neg":             NEG,
	"instanceof":      INSTANCEOF,
	"cmp":             CMP,
	"cmpl":            CMPL,
	"cmpg":            CMPG,
	"staticinvoke":    STATICINVOKE,
	"virtualinvoke":   VIRTUALINVOKE,
	"specialinvoke":   SPECIALINVOKE,
	"interfaceinvoke": INTERFACEINVOKE,
	"null":            NULL,
}

// specialNames are the JVM's angle-bracketed method names, lexed as
// identifiers.
var specialNames = []string{"<init>", "<clinit>"}

// Token represents a single lexical token produced by the lexer.
type Token struct {
	Type   string
	Value  string
	Line   int
	Column int
}

// LexError represents a recoverable error encountered during lexing.
type LexError struct {
	Message string
	Lexeme  string
	Line    int
	Column  int
}

func (e LexError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s (got %q)", e.Line, e.Column, e.Message, e.Lexeme)
}

// Lex splits Jimple-style class source into tokens. Recoverable problems
// such as unterminated strings are reported as LexErrors; lexing continues
// after them.
func Lex(input string) ([]Token, []LexError) {
	var tokens []Token
	var errors []LexError
	line, col, i := 1, 1, 0

	for i < len(input) {
		ch := input[i]
		if isWhitespace(ch) {
			if ch == '\n' {
				line++
				col = 1
			} else if ch != '\r' {
				col++
			}
			i++
			continue
		}

		// Ignore comments
		if ch == '/' && i+1 < len(input) {
			// Single-line comment: // …
			if input[i+1] == '/' {
				i, col = skipLineComment(input, i, col)
				continue
			}
			// Multi-line comment: /* … */
			if input[i+1] == '*' {
				var err *LexError
				i, line, col, err = skipBlockComment(input, i, line, col)
				if err != nil {
					errors = append(errors, *err)
				}
				continue
			}
		}

		// Strings
		if ch == '"' {
			tok, errs, newI, newLine, newCol := lexString(input, i, line, col)
			i, line, col = newI, newLine, newCol
			errors = append(errors, errs...)
			if tok != nil {
				tokens = append(tokens, *tok)
			}
			continue
		}

		// Numbers
		if isDigit(ch) {
			tok, newI, newCol := lexNumber(input, i, line, col)
			tokens = append(tokens, tok)
			i, col = newI, newCol
			continue
		}

		// Keywords and identifiers
		if isIdentStart(ch) {
			tok, newI, newCol := lexIdentifier(input, i, line, col)
			tokens = append(tokens, tok)
			i, col = newI, newCol
			continue
		}

		// <init> and <clinit>
		if ch == '<' {
			if name := matchSpecialName(input, i); name != "" {
				tokens = append(tokens, Token{IDENT, name, line, col})
				i += len(name)
				col += len(name)
				continue
			}
		}

		// Multi-character and single-character operators / delimiters
		if tok, width := lexOperatorOrDelimiter(input, i, line, col); width > 0 {
			tokens = append(tokens, tok)
			i += width
			col += width
			continue
		}

		// Unknown characters
		errors = append(errors, LexError{
			Message: "unexpected character",
			Lexeme:  string(ch),
			Line:    line,
			Column:  col,
		})
		i++
		col++
	}

	tokens = append(tokens, Token{EOF, "", line, col})
	return tokens, errors
}

func skipLineComment(input string, i int, col int) (int, int) {
	for i < len(input) && input[i] != '\n' {
		i++
		col++
	}
	return i, col
}

func skipBlockComment(input string, i int, line int, col int) (int, int, int, *LexError) {
	startLine, startCol := line, col
	i += 2
	col += 2

	for i < len(input) {
		if input[i] == '*' && i+1 < len(input) && input[i+1] == '/' {
			i += 2
			col += 2
			return i, line, col, nil
		}
		if input[i] == '\n' {
			line++
			col = 1
		} else if input[i] != '\r' {
			col++
		}
		i++
	}

	return i, line, col, &LexError{
		Message: "unterminated block comment",
		Lexeme:  "/*",
		Line:    startLine,
		Column:  startCol,
	}
}

func matchSpecialName(input string, i int) string {
	for _, name := range specialNames {
		if len(input)-i >= len(name) && input[i:i+len(name)] == name {
			return name
		}
	}
	return ""
}

// lexString scans a double-quoted literal. The token value keeps the
// quotes; escapes are validated here and decoded by the parser.
func lexString(input string, start int, line int, col int) (*Token, []LexError, int, int, int) {
	startLine, startCol := line, col
	var errs []LexError
	i := start + 1
	col++

	for i < len(input) {
		ch := input[i]

		if ch == '\n' || ch == '\r' {
			errs = append(errs, LexError{
				Message: "unterminated string literal (newline in string)",
				Lexeme:  input[start:i],
				Line:    startLine,
				Column:  startCol,
			})
			return nil, errs, i, line, col
		}

		if ch == '\\' {
			if i+1 >= len(input) {
				errs = append(errs, LexError{
					Message: "unterminated escape sequence at end of input",
					Lexeme:  "\\",
					Line:    line,
					Column:  col,
				})
				return nil, errs, i + 1, line, col + 1
			}
			next := input[i+1]
			if !isValidEscape(next) {
				errs = append(errs, LexError{
					Message: fmt.Sprintf("invalid escape sequence '\\%c'", next),
					Lexeme:  string([]byte{'\\', next}),
					Line:    line,
					Column:  col,
				})
			}
			i += 2
			col += 2
			continue
		}

		if ch == '"' {
			tok := Token{
				Type:   STRING,
				Value:  input[start : i+1],
				Line:   startLine,
				Column: startCol,
			}
			i++
			col++
			return &tok, errs, i, line, col
		}

		i++
		col++
	}

	errs = append(errs, LexError{
		Message: "unterminated string literal (reached end of input)",
		Lexeme:  input[start:],
		Line:    startLine,
		Column:  startCol,
	})
	return nil, errs, i, line, col
}

// lexNumber scans an integer or float literal.
// Supports: decimal (42), hexadecimal (0xFF), long (42L), float (3.14,
// 1.5F) and scientific notation (1.5e10, 2.0E-3). A trailing F/f marks a
// float, a bare fraction is a double.
func lexNumber(input string, start int, line int, col int) (Token, int, int) {
	i := start
	startCol := col
	isFloat := false

	if input[i] == '0' && i+1 < len(input) && (input[i+1] == 'x' || input[i+1] == 'X') {
		i += 2
		col += 2
		for i < len(input) && isHexDigit(input[i]) {
			i++
			col++
		}
		if i < len(input) && (input[i] == 'L' || input[i] == 'l') {
			i++
			col++
		}
		return Token{INT, input[start:i], line, startCol}, i, col
	}

	for i < len(input) && isDigit(input[i]) {
		i++
		col++
	}

	if i < len(input) && input[i] == '.' && i+1 < len(input) && isDigit(input[i+1]) {
		isFloat = true
		i++
		col++
		for i < len(input) && isDigit(input[i]) {
			i++
			col++
		}
	}

	if i < len(input) && (input[i] == 'e' || input[i] == 'E') {
		isFloat = true
		i++
		col++
		if i < len(input) && (input[i] == '+' || input[i] == '-') {
			i++
			col++
		}
		for i < len(input) && isDigit(input[i]) {
			i++
			col++
		}
	}

	tokType := INT
	if isFloat {
		tokType = FLOAT
	}
	if i < len(input) {
		switch input[i] {
		case 'L', 'l':
			if !isFloat {
				i++
				col++
			}
		case 'F', 'f', 'D', 'd':
			tokType = FLOAT
			i++
			col++
		}
	}
	return Token{tokType, input[start:i], line, startCol}, i, col
}

func lexIdentifier(input string, start int, line int, col int) (Token, int, int) {
	i := start
	startCol := col
	for i < len(input) && isIdentPart(input[i]) {
		i++
		col++
	}
	word := input[start:i]
	tokType := IDENT
	if kw, ok := keywords[word]; ok {
		tokType = kw
	}
	return Token{tokType, word, line, startCol}, i, col
}

// lexOperatorOrDelimiter tries to match an operator or delimiter starting
// at input[i]. Returns the token and the number of characters consumed (0
// if nothing matched).
func lexOperatorOrDelimiter(input string, i int, line int, col int) (Token, int) {
	ch := input[i]
	var next, after byte
	if i+1 < len(input) {
		next = input[i+1]
	}
	if i+2 < len(input) {
		after = input[i+2]
	}

	switch ch {
	case ':':
		if next == '=' {
			return Token{DEFINE, ":=", line, col}, 2
		}
		return Token{COLON, ":", line, col}, 1
	case '=':
		if next == '=' {
			return Token{EQ, "==", line, col}, 2
		}
		return Token{ASSIGN, "=", line, col}, 1
	case '!':
		if next == '=' {
			return Token{NEQ, "!=", line, col}, 2
		}
	case '<':
		if next == '=' {
			return Token{LTE, "<=", line, col}, 2
		}
		if next == '<' {
			return Token{SHL, "<<", line, col}, 2
		}
		return Token{LT, "<", line, col}, 1
	case '>':
		if next == '=' {
			return Token{GTE, ">=", line, col}, 2
		}
		if next == '>' && after == '>' {
			return Token{USHR, ">>>", line, col}, 3
		}
		if next == '>' {
			return Token{SHR, ">>", line, col}, 2
		}
		return Token{GT, ">", line, col}, 1
	}

	switch ch {
	case '(':
		return Token{LPAREN, "(", line, col}, 1
	case ')':
		return Token{RPAREN, ")", line, col}, 1
	case '{':
		return Token{LBRACE, "{", line, col}, 1
	case '}':
		return Token{RBRACE, "}", line, col}, 1
	case '[':
		return Token{LBRACKET, "[", line, col}, 1
	case ']':
		return Token{RBRACKET, "]", line, col}, 1
	case ';':
		return Token{SEMICOLON, ";", line, col}, 1
	case ',':
		return Token{COMMA, ",", line, col}, 1
	case '.':
		return Token{DOT, ".", line, col}, 1
	case '+':
		return Token{PLUS, "+", line, col}, 1
	case '-':
		return Token{MINUS, "-", line, col}, 1
	case '*':
		return Token{STAR, "*", line, col}, 1
	case '/':
		return Token{SLASH, "/", line, col}, 1
	case '%':
		return Token{PERCENT, "%", line, col}, 1
	case '&':
		return Token{AMPERSAND, "&", line, col}, 1
	case '|':
		return Token{PIPE, "|", line, col}, 1
	case '^':
		return Token{CARET, "^", line, col}, 1
	case '#':
		return Token{HASH, "#", line, col}, 1
	case '@':
		return Token{AT, "@", line, col}, 1
	}

	return Token{}, 0
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '_' || ch == '$'
}

func isValidEscape(ch byte) bool {
	switch ch {
	case 'n', 'r', 't', 'b', 'f', '\\', '\'', '"', '0', 'u':
		return true
	default:
		return false
	}
}
