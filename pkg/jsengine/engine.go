// Package jsengine holds basil's browser-side scripts and a goja runtime that
// can run them against an in-memory DOM.
package jsengine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Node is a DOM element that scripts run by an Engine can see.
type Node interface {
	NodeTag() string
	NodeAttribute(name string) (string, bool)
	NodeParent() Node
	NodeChildren() []Node
	NodeHTML() string
	NodeClick() error
}

// Engine runs execute/sync script bodies in a goja runtime.
type Engine struct {
	runtime  *goja.Runtime
	root     Node
	objects  map[Node]*goja.Object
	nodes    map[*goja.Object]Node
	document *goja.Object
	mu       sync.Mutex
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
		objects: make(map[Node]*goja.Object),
		nodes:   make(map[*goja.Object]Node),
	}
	e.document = e.runtime.NewDynamicObject(&documentObject{e: e})
	e.runtime.Set("document", e.document)
	e.runtime.Set("window", e.runtime.NewObject())
	return e
}

// SetDocument sets the root element (normally <html>).
func (e *Engine) SetDocument(root Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.root = root
}

// Run executes a script body with the given arguments. Node arguments are
// exposed as DOM elements and returned nodes come back as Node values.
func (e *Engine) Run(body string, args ...interface{}) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.runtime.RunString(wrap(body))
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("JS eval error: script is not callable")
	}

	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = e.toValue(a)
	}

	result, err := fn(goja.Undefined(), values...)
	if err != nil {
		return nil, fmt.Errorf("JS runtime error: %w", err)
	}
	return e.export(result), nil
}

func (e *Engine) toValue(v interface{}) goja.Value {
	if n, ok := v.(Node); ok && n != nil {
		return e.wrapNode(n)
	}
	return e.runtime.ToValue(v)
}

func (e *Engine) export(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if obj, ok := v.(*goja.Object); ok {
		if n, ok := e.nodes[obj]; ok {
			return n
		}
	}
	return v.Export()
}

func (e *Engine) wrapNode(n Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := e.objects[n]; ok {
		return obj
	}
	obj := e.runtime.NewDynamicObject(&nodeObject{e: e, n: n})
	e.objects[n] = obj
	e.nodes[obj] = n
	return obj
}

func (e *Engine) siblings(n Node) (prev, next Node) {
	parent := n.NodeParent()
	if parent == nil {
		return nil, nil
	}
	children := parent.NodeChildren()
	for i, c := range children {
		if c != n {
			continue
		}
		if i > 0 {
			prev = children[i-1]
		}
		if i < len(children)-1 {
			next = children[i+1]
		}
		break
	}
	return prev, next
}

func (e *Engine) goFunc(fn func(call goja.FunctionCall) (interface{}, error)) goja.Value {
	return e.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
		out, err := fn(call)
		if err != nil {
			panic(e.runtime.NewGoError(err))
		}
		return e.toValue(out)
	})
}

var nodeKeys = []string{
	"id", "className", "tagName", "nodeName", "nodeType", "parentNode", "parentElement",
	"childNodes", "children", "previousElementSibling", "nextElementSibling",
	"innerHTML", "click", "getAttribute",
}

// nodeObject exposes a Node as a DOM element.
type nodeObject struct {
	e *Engine
	n Node
}

func (o *nodeObject) Get(key string) goja.Value {
	e, n := o.e, o.n
	switch key {
	case "id", "className":
		name := key
		if key == "className" {
			name = "class"
		}
		v, _ := n.NodeAttribute(name)
		return e.runtime.ToValue(v)
	case "tagName", "nodeName":
		return e.runtime.ToValue(strings.ToUpper(n.NodeTag()))
	case "nodeType":
		return e.runtime.ToValue(1)
	case "parentNode":
		if n == e.root {
			return e.document
		}
		return e.wrapNode(n.NodeParent())
	case "parentElement":
		if n == e.root {
			return goja.Null()
		}
		return e.wrapNode(n.NodeParent())
	case "childNodes", "children":
		children := n.NodeChildren()
		items := make([]interface{}, len(children))
		for i, c := range children {
			items[i] = e.wrapNode(c)
		}
		return e.runtime.NewArray(items...)
	case "previousElementSibling":
		prev, _ := e.siblings(n)
		return e.wrapNode(prev)
	case "nextElementSibling":
		_, next := e.siblings(n)
		return e.wrapNode(next)
	case "innerHTML":
		return e.runtime.ToValue(n.NodeHTML())
	case "click":
		return e.goFunc(func(goja.FunctionCall) (interface{}, error) {
			return nil, n.NodeClick()
		})
	case "getAttribute":
		return e.goFunc(func(call goja.FunctionCall) (interface{}, error) {
			if v, ok := n.NodeAttribute(call.Argument(0).String()); ok {
				return v, nil
			}
			return nil, nil
		})
	}
	return goja.Undefined()
}

func (o *nodeObject) Set(string, goja.Value) bool { return false }
func (o *nodeObject) Delete(string) bool         { return false }
func (o *nodeObject) Keys() []string              { return nodeKeys }

func (o *nodeObject) Has(key string) bool {
	for _, k := range nodeKeys {
		if k == key {
			return true
		}
	}
	return false
}

// documentObject is the global document.
type documentObject struct {
	e *Engine
}

func (d *documentObject) Get(key string) goja.Value {
	root := d.e.root
	switch key {
	case "nodeType":
		return d.e.runtime.ToValue(9)
	case "documentElement":
		return d.e.wrapNode(root)
	case "body":
		if root == nil {
			return goja.Null()
		}
		for _, c := range root.NodeChildren() {
			if strings.EqualFold(c.NodeTag(), "body") {
				return d.e.wrapNode(c)
			}
		}
		return goja.Null()
	}
	return goja.Undefined()
}

func (d *documentObject) Set(string, goja.Value) bool { return false }
func (d *documentObject) Delete(string) bool         { return false }
func (d *documentObject) Keys() []string              { return []string{"nodeType", "documentElement", "body"} }

func (d *documentObject) Has(key string) bool {
	switch key {
	case "nodeType", "documentElement", "body":
		return true
	}
	return false
}
