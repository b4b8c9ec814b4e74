package generator

import (
	"fmt"
	"strings"
	"unicode"
)

// Two-letter acronyms stay upper case in PascalCase, as in System.IO.
// Longer ones are capitalized like words: Xml, Http.
var shortAcronyms = map[string]bool{"io": true, "ui": true, "db": true}

// keywords are C# reserved words; Identifier escapes them with '@'.
var keywords = map[string]bool{
	"abstract": true, "as": true, "base": true, "bool": true, "break": true, "case": true,
	"catch": true, "class": true, "const": true, "continue": true, "default": true,
	"delegate": true, "do": true, "else": true, "enum": true, "event": true, "false": true,
	"finally": true, "for": true, "foreach": true, "if": true, "in": true, "int": true,
	"interface": true, "internal": true, "is": true, "namespace": true, "new": true,
	"null": true, "object": true, "out": true, "override": true, "private": true,
	"protected": true, "public": true, "readonly": true, "ref": true, "return": true,
	"static": true, "string": true, "struct": true, "switch": true, "this": true,
	"throw": true, "true": true, "try": true, "typeof": true, "using": true, "void": true,
	"while": true,
}

// words splits s on separators and case changes:
// "HTTPServer" → [HTTP Server], "user_id" → [user id], "user1Name" → [user1 Name].
func words(s string) []string {
	var out []string
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	for _, field := range fields {
		runes := []rune(field)
		start := 0
		for i := 1; i < len(runes); i++ {
			prev, cur := runes[i-1], runes[i]
			if !unicode.IsUpper(cur) {
				continue
			}
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				out = append(out, string(runes[start:i]))
				start = i
			}
		}
		out = append(out, string(runes[start:]))
	}
	return out
}

func capitalize(word string) string {
	lower := strings.ToLower(word)
	if shortAcronyms[lower] {
		return strings.ToUpper(lower)
	}
	r := []rune(lower)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// PascalCase follows .NET naming: user_name → UserName, XMLReader → XmlReader,
// io_stream → IOStream.
func PascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// CamelCase is PascalCase with the first word lower-cased: HTTPServer → httpServer.
func CamelCase(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(ws[0]))
	for _, w := range ws[1:] {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// SnakeCase lower-cases every word and joins them with '_'.
func SnakeCase(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, "_")
}

// Identifier turns s into a valid C# identifier. Invalid characters become
// '_', a leading digit gets a '_' prefix and keywords an '@' prefix.
func Identifier(s string) string {
	if s == "" {
		return "_"
	}
	r := []rune(s)
	for i, c := range r {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			r[i] = '_'
		}
	}
	id := string(r)
	switch {
	case unicode.IsDigit(r[0]):
		return "_" + id
	case keywords[id]:
		return "@" + id
	}
	return id
}

// Quote renders s as a double-quoted string literal.
func Quote(s string) string {
	return fmt.Sprintf("%q", s)
}

// Dict builds a map from key/value pairs so named templates can take
// several arguments: {{emit $out "row" (dict "Name" .Name "Index" $i)}}
func Dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments (%d)", len(values))
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %d is %T, not a string", i/2, values[i])
		}
		m[key] = values[i+1]
	}
	return m, nil
}
