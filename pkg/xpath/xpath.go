// Package xpath builds XPath expressions by chaining relative fragments.
package xpath

import (
	"strings"
)

// locationPaths are axis prefixes that only need a single "/" separator.
var locationPaths = []string{
	"ancestor::",
	"ancestor-or-self::",
	"attribute::",
	"child::",
	"descendant::",
	"descendant-or-self::",
	"following",
	"following-sibling",
	"namespace::",
	"parent::",
	"preceding::",
	"preceding-sibling",
	"self::",
}

// abbreviations maps unabbreviated syntax to the short form.
var abbreviations = []struct{ long, short string }{
	{"attribute::", "@"},
	{"descendant::", "//"},
	{"parent::*", "/.."},
	{"self::*", "/."},
}

// IsLocationPath reports whether expr starts with an axis specifier.
func IsLocationPath(expr string) bool {
	for _, p := range locationPaths {
		if strings.HasPrefix(expr, p) {
			return true
		}
	}
	return false
}

// Append joins the expressions into one XPath.
//
// An axis step is joined with "/", a relative step starting with "." is
// joined as a child or descendant of what precedes it, and any other
// expression that is not absolute is treated as a descendant ("//").
func Append(exprs ...string) string {
	var sb strings.Builder
	for _, expr := range exprs {
		if expr == "" {
			continue
		}
		switch {
		case IsLocationPath(expr):
			sb.WriteString("/")
			sb.WriteString(expr)
		case strings.HasPrefix(expr, "./") && sb.Len() > 0:
			// ./td and .//td both search below the prefix.
			sb.WriteString("//")
			sb.WriteString(strings.TrimLeft(expr[1:], "/"))
		case strings.HasPrefix(expr, "./"):
			sb.WriteString(expr)
		case !strings.HasPrefix(expr, "/"):
			sb.WriteString("//")
			sb.WriteString(expr)
		default:
			sb.WriteString(expr)
		}
	}
	return sb.String()
}

// Abbreviate rewrites unabbreviated steps into their short form. Only whole
// steps are rewritten, so names that merely contain an axis are left alone.
func Abbreviate(expr string) string {
	for _, a := range abbreviations {
		if expr == a.long {
			return a.short
		}
	}

	steps := splitSteps(expr)
	for i, step := range steps {
		switch {
		case step == "parent::*" || step == "parent::node()":
			steps[i] = ".."
		case step == "self::*" || step == "self::node()":
			steps[i] = "."
		case strings.HasPrefix(step, "attribute::"):
			steps[i] = "@" + strings.TrimPrefix(step, "attribute::")
		case strings.HasPrefix(step, "descendant::") && i > 0 && steps[i-1] != "":
			// a/descendant::b is a//b.
			steps[i] = "/" + strings.TrimPrefix(step, "descendant::")
		case strings.HasPrefix(step, "descendant::") && i == 0:
			steps[i] = ".//" + strings.TrimPrefix(step, "descendant::")
		}
	}
	return strings.Join(steps, "/")
}

// splitSteps splits expr on the "/" separators that are outside predicates
// and string literals.
func splitSteps(expr string) []string {
	var (
		steps []string
		depth int
		quote rune
		start int
	)
	for i, r := range expr {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
		case r == '/' && depth == 0:
			steps = append(steps, expr[start:i])
			start = i + 1
		}
	}
	return append(steps, expr[start:])
}

// Literal quotes s so it can be embedded in an XPath expression.
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(`, "'", `)
		}
		sb.WriteString("'")
		sb.WriteString(p)
		sb.WriteString("'")
	}
	sb.WriteString(")")
	return sb.String()
}

// ClassContains returns the predicate body matching a whole class token.
func ClassContains(class string) string {
	return "contains(concat(' ', normalize-space(@class), ' '), " + Literal(" "+class+" ") + ")"
}
