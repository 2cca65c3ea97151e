package page

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
)

// Finder starts a search in a context.
type Finder struct {
	ctx core.SearchContext
}

// In returns a finder searching ctx.
func In(ctx core.SearchContext) Finder {
	return Finder{ctx: ctx}
}

// By runs the search for loc.
func (f Finder) By(loc by.Locator) *Result {
	els, err := f.ctx.FindElements(loc)
	if err == nil && len(els) == 0 {
		err = core.NoSuchElement("Unable to find elements with: %s", loc)
	}
	return &Result{els: els, err: err}
}

func (f Finder) ByID(id string) *Result                { return f.By(by.ID(id)) }
func (f Finder) ByName(name string) *Result            { return f.By(by.Name(name)) }
func (f Finder) ByTagName(tag string) *Result          { return f.By(by.TagName(tag)) }
func (f Finder) ByXPath(expr string) *Result           { return f.By(by.XPath(expr)) }
func (f Finder) ByClassName(class string) *Result      { return f.By(by.ClassName(class)) }
func (f Finder) ByCSSSelector(sel string) *Result      { return f.By(by.CSSSelector(sel)) }
func (f Finder) ByLinkText(text string) *Result        { return f.By(by.LinkText(text)) }
func (f Finder) ByPartialLinkText(text string) *Result { return f.By(by.PartialLinkText(text)) }

// Result holds the elements of a search. The first error is kept and
// returned by every accessor.
type Result struct {
	els []core.WebElement
	err error
}

// Get returns the first element.
func (r *Result) Get() (core.WebElement, error) {
	return r.GetAt(0)
}

// GetAt returns the i-th element.
func (r *Result) GetAt(i int) (core.WebElement, error) {
	if r.err != nil {
		return nil, r.err
	}
	if i < 0 || i >= len(r.els) {
		return nil, core.NoSuchElement("The search only resulted %d elements.", len(r.els))
	}
	return r.els[i], nil
}

// All returns every element.
func (r *Result) All() ([]core.WebElement, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.els, nil
}

// Len returns the number of elements, zero after an error.
func (r *Result) Len() int {
	if r.err != nil {
		return 0
	}
	return len(r.els)
}

// Err returns the search error.
func (r *Result) Err() error { return r.err }

// Filter keeps the elements f matches.
func (r *Result) Filter(f Filter) *Result {
	if r.err != nil {
		return r
	}
	var out []core.WebElement
	for _, el := range r.els {
		ok, err := f.Match(el)
		if err != nil {
			if core.IsStale(err) {
				continue
			}
			return &Result{err: err}
		}
		if ok {
			out = append(out, el)
		}
	}
	if len(out) == 0 {
		return &Result{err: core.NoSuchElement("Unable to find elements with: %s", f)}
	}
	return &Result{els: out}
}

// Filter decides whether an element stays in a result.
type Filter interface {
	fmt.Stringer
	Match(el core.WebElement) (bool, error)
}

type filter struct {
	desc  string
	match func(el core.WebElement) (bool, error)
}

func (f filter) String() string                         { return f.desc }
func (f filter) Match(el core.WebElement) (bool, error) { return f.match(el) }

// WithText keeps elements whose trimmed text equals text.
func WithText(text string) Filter {
	return filter{"Filter.withText: " + text, func(el core.WebElement) (bool, error) {
		got, err := el.Text()
		return strings.TrimSpace(got) == text, err
	}}
}

// WithPartialText keeps elements whose text contains text.
func WithPartialText(text string) Filter {
	return filter{"Filter.withPartialText: " + text, func(el core.WebElement) (bool, error) {
		got, err := el.Text()
		return strings.Contains(got, text), err
	}}
}

// WithAttribute keeps elements carrying the attribute.
func WithAttribute(name string) Filter {
	return filter{"Filter.withAttribute: " + name, func(el core.WebElement) (bool, error) {
		_, ok, err := el.LookupAttribute(name)
		return ok, err
	}}
}

// WithAttributeValue keeps elements whose attribute equals value.
func WithAttributeValue(name, value string) Filter {
	return filter{"Filter.withAttributeValue: " + name + "=" + value, func(el core.WebElement) (bool, error) {
		got, ok, err := el.LookupAttribute(name)
		return ok && got == value, err
	}}
}
