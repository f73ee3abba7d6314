package sqlfront

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

// isCreateTable reports whether sql opens with CREATE TABLE, the one
// statement whose ClickHouse-style ENGINE/ORDER BY/SETTINGS clauses
// github.com/pingcap/tidb/parser's MySQL grammar cannot parse.
func isCreateTable(sql string) bool {
	fields := strings.Fields(strings.ToUpper(sql))
	return len(fields) >= 2 && fields[0] == "CREATE" && fields[1] == "TABLE"
}

// tableTokenizer splits CREATE TABLE's body into tokens: identifiers,
// numbers, string literals, and single-character punctuation
// (parentheses, comma, equals, dot), grounded on the original's own
// sqlparser-based ClickHouseDialect lexer shape but hand-rolled since
// touchhouse only needs this one statement's grammar.
type tableTokenizer struct {
	runes []rune
	pos   int
}

func newTableTokenizer(s string) *tableTokenizer { return &tableTokenizer{runes: []rune(s)} }

func (t *tableTokenizer) skipSpace() {
	for t.pos < len(t.runes) && unicode.IsSpace(t.runes[t.pos]) {
		t.pos++
	}
}

func (t *tableTokenizer) peek() (rune, bool) {
	t.skipSpace()
	if t.pos >= len(t.runes) {
		return 0, false
	}
	return t.runes[t.pos], true
}

// next returns the next token: an identifier/number/string as text, or
// one of "(", ")", ",", ".", "=" as punctuation.
func (t *tableTokenizer) next() (string, bool) {
	t.skipSpace()
	if t.pos >= len(t.runes) {
		return "", false
	}
	c := t.runes[t.pos]

	switch c {
	case '(', ')', ',', '.', '=':
		t.pos++
		return string(c), true
	case '\'', '"':
		quote := c
		t.pos++
		start := t.pos
		for t.pos < len(t.runes) && t.runes[t.pos] != quote {
			t.pos++
		}
		tok := string(t.runes[start:t.pos])
		if t.pos < len(t.runes) {
			t.pos++ // consume closing quote
		}
		return tok, true
	default:
		start := t.pos
		for t.pos < len(t.runes) && !unicode.IsSpace(t.runes[t.pos]) && !strings.ContainsRune("(),.=", t.runes[t.pos]) {
			t.pos++
		}
		return string(t.runes[start:t.pos]), true
	}
}

func parseCreateTable(sql string) (*Statement, error) {
	tk := newTableTokenizer(sql)

	if err := expectIdent(tk, "CREATE"); err != nil {
		return nil, err
	}
	if err := expectIdent(tk, "TABLE"); err != nil {
		return nil, err
	}
	if tok, ok := peekUpper(tk); ok && tok == "IF" {
		tk.next()
		if err := expectIdent(tk, "NOT"); err != nil {
			return nil, err
		}
		if err := expectIdent(tk, "EXISTS"); err != nil {
			return nil, err
		}
	}

	tableTok, ok := tk.next()
	if !ok {
		return nil, toucherr.New(toucherr.SqlToAstConversion, "expected table name")
	}
	def, err := parseTableDef(tk, tableTok)
	if err != nil {
		return nil, err
	}

	if tok, ok := tk.next(); !ok || tok != "(" {
		return nil, toucherr.New(toucherr.SqlToAstConversion, "expected '(' after table name")
	}

	var columns []schema.ColumnDef
	for {
		nameTok, ok := tk.next()
		if !ok {
			return nil, toucherr.New(toucherr.SqlToAstConversion, "unexpected end of CREATE TABLE body")
		}
		typeTok, ok := tk.next()
		if !ok {
			return nil, toucherr.New(toucherr.SqlToAstConversion, "expected column type")
		}
		typ, err := value.ParseType(typeTok)
		if err != nil {
			return nil, toucherr.Newf(toucherr.UnsupportedColumnType, "column %q: %v", nameTok, err)
		}
		col := schema.ColumnDef{Name: nameTok, Type: typ, Constraints: schema.Constraints{Nullable: true}}

		for {
			next, ok := peekUpper(tk)
			if !ok {
				return nil, toucherr.New(toucherr.SqlToAstConversion, "unexpected end of column definition")
			}
			switch next {
			case "NOT":
				tk.next()
				if err := expectIdent(tk, "NULL"); err != nil {
					return nil, err
				}
				col.Constraints.Nullable = false
			case "NULL":
				tk.next()
				col.Constraints.Nullable = true
			case "DEFAULT":
				tk.next()
				litTok, ok := tk.next()
				if !ok {
					return nil, toucherr.New(toucherr.SqlToAstConversion, "expected DEFAULT value")
				}
				v, err := parseColumnLiteral(litTok, typ)
				if err != nil {
					return nil, err
				}
				col.Constraints.Default = &v
			default:
				goto doneColumn
			}
		}
	doneColumn:
		columns = append(columns, col)

		punct, ok := tk.next()
		if !ok {
			return nil, toucherr.New(toucherr.SqlToAstConversion, "unterminated column list")
		}
		if punct == ")" {
			break
		}
		if punct != "," {
			return nil, toucherr.Newf(toucherr.SqlToAstConversion, "expected ',' or ')', got %q", punct)
		}
	}

	if err := expectIdent(tk, "ENGINE"); err != nil {
		return nil, err
	}
	if tok, ok := tk.next(); !ok || tok != "=" {
		return nil, toucherr.New(toucherr.SqlToAstConversion, "expected '=' after ENGINE")
	}
	engineTok, ok := tk.next()
	if !ok {
		return nil, toucherr.New(toucherr.SqlToAstConversion, "expected engine name")
	}
	engineName, err := schema.ParseEngineName(engineTok)
	if err != nil {
		return nil, err
	}
	if tok, ok := tk.peek(); ok && tok == '(' {
		tk.next()
		if tok, ok := tk.next(); !ok || tok != ")" {
			return nil, toucherr.Newf(toucherr.SqlToAstConversion, "expected ')' after engine name, got %q", tok)
		}
	}

	if err := expectIdent(tk, "ORDER"); err != nil {
		return nil, err
	}
	if err := expectIdent(tk, "BY"); err != nil {
		return nil, err
	}
	orderByNames, err := parseColumnTuple(tk)
	if err != nil {
		return nil, err
	}

	var primaryKeyNames []string
	if tok, ok := peekUpper(tk); ok && tok == "PRIMARY" {
		tk.next()
		if err := expectIdent(tk, "KEY"); err != nil {
			return nil, err
		}
		primaryKeyNames, err = parseColumnTuple(tk)
		if err != nil {
			return nil, err
		}
	} else {
		primaryKeyNames = orderByNames
	}

	settings := schema.TableSettings{Engine: engineName, IndexGranularity: schema.DefaultIndexGranularity}
	if tok, ok := peekUpper(tk); ok && tok == "SETTINGS" {
		tk.next()
		for {
			key, ok := tk.next()
			if !ok {
				break
			}
			if tok, ok := tk.next(); !ok || tok != "=" {
				return nil, toucherr.New(toucherr.SqlToAstConversion, "expected '=' in SETTINGS clause")
			}
			valTok, ok := tk.next()
			if !ok {
				return nil, toucherr.New(toucherr.SqlToAstConversion, "expected SETTINGS value")
			}
			switch strings.ToLower(key) {
			case "index_granularity":
				n, err := strconv.ParseUint(valTok, 10, 32)
				if err != nil {
					return nil, toucherr.Newf(toucherr.UnsupportedTableOption, "invalid index_granularity %q", valTok)
				}
				settings.IndexGranularity = uint32(n)
			default:
				return nil, toucherr.Newf(toucherr.UnsupportedTableOption, "unknown setting %q", key)
			}
			if tok, ok := tk.peek(); !ok || tok != ',' {
				break
			}
			tk.next()
		}
	}

	byName := make(map[string]schema.ColumnDef, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}
	resolve := func(names []string) ([]schema.ColumnDef, error) {
		defs := make([]schema.ColumnDef, len(names))
		for i, name := range names {
			c, ok := byName[name]
			if !ok {
				return nil, toucherr.Newf(toucherr.InvalidOrderBy, "unknown column %q in ORDER BY/PRIMARY KEY", name)
			}
			defs[i] = c
		}
		return defs, nil
	}
	orderBy, err := resolve(orderByNames)
	if err != nil {
		return nil, err
	}
	primaryKey, err := resolve(primaryKeyNames)
	if err != nil {
		return nil, err
	}

	tableSchema := schema.TableSchema{Columns: columns, OrderBy: orderBy, PrimaryKey: primaryKey}
	if err := tableSchema.Validate(); err != nil {
		return nil, err
	}

	return &Statement{Kind: StmtCreateTable, Table: def, Schema: tableSchema, Settings: settings}, nil
}

func parseTableDef(tk *tableTokenizer, first string) (schema.TableDef, error) {
	if tok, ok := tk.peek(); ok && tok == '.' {
		tk.next()
		table, ok := tk.next()
		if !ok {
			return schema.TableDef{}, toucherr.New(toucherr.InvalidTableName, "expected table name after '.'")
		}
		return schema.TableDef{Database: first, Table: table}, nil
	}
	return schema.TableDef{Table: first}, nil
}

func parseColumnTuple(tk *tableTokenizer) ([]string, error) {
	if tok, ok := tk.next(); !ok || tok != "(" {
		return nil, toucherr.New(toucherr.SqlToAstConversion, "expected '(' to open a column list")
	}
	var names []string
	for {
		name, ok := tk.next()
		if !ok {
			return nil, toucherr.New(toucherr.SqlToAstConversion, "unterminated column list")
		}
		names = append(names, name)
		punct, ok := tk.next()
		if !ok {
			return nil, toucherr.New(toucherr.SqlToAstConversion, "unterminated column list")
		}
		if punct == ")" {
			break
		}
		if punct != "," {
			return nil, toucherr.Newf(toucherr.SqlToAstConversion, "expected ',' or ')', got %q", punct)
		}
	}
	return names, nil
}

func parseColumnLiteral(tok string, typ value.Type) (value.Value, error) {
	switch typ {
	case value.TypeString:
		return value.String(tok), nil
	case value.TypeBool:
		b, err := strconv.ParseBool(tok)
		if err != nil {
			return value.Value{}, toucherr.Newf(toucherr.InvalidSource, "invalid bool literal %q", tok)
		}
		return value.Bool(b), nil
	case value.TypeUuid:
		id, err := value.ParseUuid(tok)
		if err != nil {
			return value.Value{}, toucherr.Newf(toucherr.InvalidSource, "invalid uuid literal %q", tok)
		}
		return value.Uuid(id), nil
	case value.TypeInt8, value.TypeInt16, value.TypeInt32, value.TypeInt64:
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return value.Value{}, toucherr.Newf(toucherr.InvalidSource, "invalid integer literal %q", tok)
		}
		switch typ {
		case value.TypeInt8:
			return value.Int8(int8(n)), nil
		case value.TypeInt16:
			return value.Int16(int16(n)), nil
		case value.TypeInt32:
			return value.Int32(int32(n)), nil
		default:
			return value.Int64(n), nil
		}
	case value.TypeUInt8, value.TypeUInt16, value.TypeUInt32, value.TypeUInt64:
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return value.Value{}, toucherr.Newf(toucherr.InvalidSource, "invalid integer literal %q", tok)
		}
		switch typ {
		case value.TypeUInt8:
			return value.UInt8(uint8(n)), nil
		case value.TypeUInt16:
			return value.UInt16(uint16(n)), nil
		case value.TypeUInt32:
			return value.UInt32(uint32(n)), nil
		default:
			return value.UInt64(n), nil
		}
	default:
		return value.Value{}, toucherr.Newf(toucherr.InvalidSource, "unsupported DEFAULT literal for type %v", typ)
	}
}

func expectIdent(tk *tableTokenizer, want string) error {
	tok, ok := tk.next()
	if !ok || strings.ToUpper(tok) != want {
		return toucherr.Newf(toucherr.SqlToAstConversion, "expected %q, got %q", want, tok)
	}
	return nil
}

func peekUpper(tk *tableTokenizer) (string, bool) {
	save := tk.pos
	tok, ok := tk.next()
	tk.pos = save
	if !ok {
		return "", false
	}
	return strings.ToUpper(tok), true
}
