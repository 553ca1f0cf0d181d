package token

import "strings"

// Reserved variable keys configuring default-value syntax for placeholders.
const (
	// KeyEnableDefaultValue toggles ${key:default} support. Disabled unless
	// the variable table maps it to "true".
	KeyEnableDefaultValue = "placeholder.enable-default-value"
	// KeyDefaultValueSeparator overrides the separator between key and
	// default value. Defaults to ":".
	KeyDefaultValueSeparator = "placeholder.default-value-separator"
)

const defaultValueSeparator = ":"

// Handler maps the body of one token to its replacement text.
type Handler func(content string) string

// Parser scans text for delimited tokens and hands each token body to a
// handler. The scan is a single left-to-right pass; delimiters preceded by a
// backslash are emitted literally with the backslash consumed.
type Parser struct {
	open   string
	close  string
	handle Handler
}

// NewParser creates a Parser for the given open/close delimiter pair.
func NewParser(open, close string, handle Handler) *Parser {
	return &Parser{open: open, close: close, handle: handle}
}

// Parse substitutes every non-escaped token in text. An opening delimiter
// with no matching close emits the remainder verbatim. Text without
// delimiters is returned unchanged.
func (p *Parser) Parse(text string) string {
	if text == "" {
		return ""
	}
	start := strings.Index(text, p.open)
	if start == -1 {
		return text
	}

	var sb strings.Builder
	var expr strings.Builder
	offset := 0
	for start > -1 {
		if start > 0 && text[start-1] == '\\' {
			// Escaped open token: drop the backslash, keep the delimiter.
			sb.WriteString(text[offset : start-1])
			sb.WriteString(p.open)
			offset = start + len(p.open)
		} else {
			expr.Reset()
			sb.WriteString(text[offset:start])
			offset = start + len(p.open)
			end := indexFrom(text, p.close, offset)
			for end > -1 {
				if end > offset && text[end-1] == '\\' {
					// Escaped close token inside the body.
					expr.WriteString(text[offset : end-1])
					expr.WriteString(p.close)
					offset = end + len(p.close)
					end = indexFrom(text, p.close, offset)
					continue
				}
				expr.WriteString(text[offset:end])
				break
			}
			if end == -1 {
				// Close token was not found.
				sb.WriteString(text[start:])
				offset = len(text)
			} else {
				sb.WriteString(p.handle(expr.String()))
				offset = end + len(p.close)
			}
		}
		start = indexFrom(text, p.open, offset)
	}
	if offset < len(text) {
		sb.WriteString(text[offset:])
	}
	return sb.String()
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i == -1 {
		return -1
	}
	return from + i
}

// Expand substitutes ${name} placeholders in text against the variable table.
// Unresolved placeholders pass through literally. When default-value support
// is enabled via the reserved keys, ${name:fallback} resolves to the variable
// value or the fallback.
func Expand(text string, variables map[string]string) string {
	h := newVariableHandler(variables)
	return NewParser("${", "}", h.handle).Parse(text)
}

type variableHandler struct {
	variables     map[string]string
	enableDefault bool
	separator     string
}

func newVariableHandler(variables map[string]string) *variableHandler {
	h := &variableHandler{variables: variables, separator: defaultValueSeparator}
	if variables != nil {
		h.enableDefault = variables[KeyEnableDefaultValue] == "true"
		if sep, ok := variables[KeyDefaultValueSeparator]; ok && sep != "" {
			h.separator = sep
		}
	}
	return h
}

func (h *variableHandler) handle(content string) string {
	if h.variables != nil {
		key := content
		if h.enableDefault {
			if i := strings.Index(content, h.separator); i >= 0 {
				key = content[:i]
				def := content[i+len(h.separator):]
				if v, ok := h.variables[key]; ok {
					return v
				}
				return def
			}
		}
		if v, ok := h.variables[key]; ok {
			return v
		}
	}
	return "${" + content + "}"
}
