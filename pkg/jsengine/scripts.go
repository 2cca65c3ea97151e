package jsengine

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// Script names a browser-side snippet shipped with basil. Every snippet is a
// WebDriver "execute/sync" body: it reads arguments[i] and may return a value.
type Script string

const (
	ScriptXPath           Script = "xpath"
	ScriptClick           Script = "click"
	ScriptParent          Script = "parent"
	ScriptPreviousSibling Script = "previous-sibling"
	ScriptNextSibling     Script = "next-sibling"
	ScriptChild           Script = "child"
	ScriptInnerHTML       Script = "inner-html"
)

//go:embed scripts/*.js
var scriptFS embed.FS

// Source returns the body of the named script.
func Source(s Script) string {
	data, err := scriptFS.ReadFile("scripts/" + string(s) + ".js")
	if err != nil {
		panic(fmt.Sprintf("jsengine: missing script %q", s))
	}
	return strings.TrimSpace(string(data))
}

// Scripts lists every embedded script, sorted by name.
func Scripts() []Script {
	entries, _ := scriptFS.ReadDir("scripts")
	out := make([]Script, 0, len(entries))
	for _, e := range entries {
		out = append(out, Script(strings.TrimSuffix(e.Name(), ".js")))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// wrap turns an execute/sync body into a function expression.
func wrap(body string) string {
	return "(function() {\n" + body + "\n})"
}

// Check parses a script body the way a browser would receive it.
func Check(body string) error {
	if _, err := goja.Compile("script", wrap(body), false); err != nil {
		return fmt.Errorf("script does not parse: %w", err)
	}
	return nil
}

// CheckAll parses every embedded script and returns the failures by name.
func CheckAll() map[Script]error {
	failed := make(map[Script]error)
	for _, s := range Scripts() {
		if err := Check(Source(s)); err != nil {
			failed[s] = err
		}
	}
	return failed
}
