package fonts

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	cssLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "AtKeyword", Pattern: `@[A-Za-z-]+`},
		{Name: "URL", Pattern: `url\([^)]*\)`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
		{Name: "Punct", Pattern: `[{}:;,]`},
		{Name: "Word", Pattern: `[^\s{}:;,"']+`},
	})

	sheetParser = participle.MustBuild[styleSheet](
		participle.Lexer(cssLexer),
		participle.Elide("Whitespace", "Comment"),
	)
)

// styleSheet 只关心规则块与其中的声明，足以覆盖字体样式表。
type styleSheet struct {
	Rules []*styleRule `parser:"@@*"`
}

type styleRule struct {
	Prelude []string       `parser:"@(AtKeyword | Word | String | ',' | ':')*"`
	Decls   []*declaration `parser:"'{' ( @@ | ';' )* '}'"`
}

type declaration struct {
	Property string   `parser:"@Word ':'"`
	Values   []string `parser:"@(Word | String | URL | ',' | ':')+"`
}

// Block 是一条 @font-face 规则。
type Block struct {
	Family string
	Decls  map[string]string
	URLs   []string // src 中引用的原始 url(...) 记号
	Raw    string
}

// ParseStylesheet 解析样式表并返回其中的 @font-face 块，其他规则被忽略。
func ParseStylesheet(css string) ([]Block, error) {
	sheet, err := sheetParser.ParseString("", css)
	if err != nil {
		return nil, fmt.Errorf("解析字体样式表失败: %w", err)
	}
	var blocks []Block
	for _, r := range sheet.Rules {
		if len(r.Prelude) != 1 || !strings.EqualFold(r.Prelude[0], "@font-face") {
			continue
		}
		blocks = append(blocks, newBlock(r))
	}
	return blocks, nil
}

func newBlock(r *styleRule) Block {
	b := Block{Decls: map[string]string{}}
	var sb strings.Builder
	sb.WriteString("@font-face {\n")
	for _, d := range r.Decls {
		prop := strings.ToLower(d.Property)
		value := joinValues(d.Values)
		b.Decls[prop] = value
		if prop == "font-family" {
			b.Family = unquote(value)
		}
		if prop == "src" {
			for _, v := range d.Values {
				if strings.HasPrefix(v, "url(") {
					b.URLs = append(b.URLs, v)
				}
			}
		}
		fmt.Fprintf(&sb, "  %s: %s;\n", prop, value)
	}
	sb.WriteString("}")
	b.Raw = sb.String()
	return b
}

func joinValues(values []string) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 && v != "," && v != ")" && !strings.HasSuffix(values[i-1], "(") {
			sb.WriteByte(' ')
		}
		sb.WriteString(v)
	}
	return sb.String()
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// urlTarget 取出 url(...) 记号中的地址。
func urlTarget(token string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(token, "url("), ")")
	return unquote(inner)
}
