package page

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/basil/pkg/basil"
	"github.com/devicelab-dev/basil/pkg/by"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/wait"
	"github.com/devicelab-dev/basil/pkg/xpath"
)

// Lookup finds elements by their text, attributes and labels.
type Lookup interface {
	ByText(loc by.Locator, text string) (core.WebElement, error)
	ByPartialText(loc by.Locator, text string) (core.WebElement, error)
	ByTagAndText(tag, text string) (core.WebElement, error)
	ByClassAndText(class, text string) (core.WebElement, error)
	ByCSSSelectorAndText(selector, text string) (core.WebElement, error)
	ByAttribute(loc by.Locator, attr, value string) (core.WebElement, error)
	Label(text string) (core.WebElement, error)
	PartialLabel(text string) (core.WebElement, error)
	ByLabel(label core.WebElement) (core.WebElement, error)
	ByLabelText(text string) (core.WebElement, error)
	ByPartialLabel(text string) (core.WebElement, error)
	Link(text string) (core.WebElement, error)
	PartialLink(text string) (core.WebElement, error)
}

// textMatcher picks the first element whose trimmed text satisfies match.
type textMatcher func(els []core.WebElement, text string) (core.WebElement, error)

// BaseLookup queries the search context on every call.
type BaseLookup struct {
	ctx core.SearchContext
}

// NewBaseLookup returns a lookup searching ctx.
func NewBaseLookup(ctx core.SearchContext) *BaseLookup {
	return &BaseLookup{ctx: ctx}
}

func (l *BaseLookup) byText(loc by.Locator, text string, exact bool) (core.WebElement, error) {
	els, err := l.ctx.FindElements(loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		got, err := el.Text()
		if err != nil {
			if core.IsStale(err) {
				continue
			}
			return nil, err
		}
		if matchText(got, text, exact) {
			return el, nil
		}
	}
	return nil, textNotFound(loc, text, exact)
}

func matchText(got, want string, exact bool) bool {
	got = strings.TrimSpace(got)
	if exact {
		return got == want
	}
	return strings.Contains(got, want)
}

func textNotFound(loc by.Locator, text string, exact bool) error {
	if exact {
		return core.NoSuchElement("Unable to find element with text %q by: %s", text, loc)
	}
	return core.NoSuchElement("Unable to find element with partial text %q by: %s", text, loc)
}

func (l *BaseLookup) ByText(loc by.Locator, text string) (core.WebElement, error) {
	return l.byText(loc, text, true)
}

func (l *BaseLookup) ByPartialText(loc by.Locator, text string) (core.WebElement, error) {
	return l.byText(loc, text, false)
}

func (l *BaseLookup) ByTagAndText(tag, text string) (core.WebElement, error) {
	return l.ByText(by.TagName(tag), text)
}

func (l *BaseLookup) ByClassAndText(class, text string) (core.WebElement, error) {
	return l.ByText(by.ClassName(class), text)
}

func (l *BaseLookup) ByCSSSelectorAndText(selector, text string) (core.WebElement, error) {
	return l.ByText(by.CSSSelector(selector), text)
}

// ByAttribute returns the first match of loc whose attribute equals value.
func (l *BaseLookup) ByAttribute(loc by.Locator, attr, value string) (core.WebElement, error) {
	els, err := l.ctx.FindElements(loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if v, err := el.Attribute(attr); err == nil && v == value {
			return el, nil
		}
	}
	return nil, core.NoSuchElement("Unable to find element with %s=%q by: %s", attr, value, loc)
}

// Label returns the <label> reading text.
func (l *BaseLookup) Label(text string) (core.WebElement, error) {
	return l.ByText(by.TagName("label"), text)
}

// PartialLabel returns the first <label> containing text.
func (l *BaseLookup) PartialLabel(text string) (core.WebElement, error) {
	return l.ByPartialText(by.TagName("label"), text)
}

// ByLabel returns the element the label's "for" attribute names.
func (l *BaseLookup) ByLabel(label core.WebElement) (core.WebElement, error) {
	return labelTarget(l.ctx, label)
}

func (l *BaseLookup) ByLabelText(text string) (core.WebElement, error) {
	label, err := l.Label(text)
	if err != nil {
		return nil, err
	}
	return l.ByLabel(label)
}

func (l *BaseLookup) ByPartialLabel(text string) (core.WebElement, error) {
	label, err := l.PartialLabel(text)
	if err != nil {
		return nil, err
	}
	return l.ByLabel(label)
}

func (l *BaseLookup) Link(text string) (core.WebElement, error) {
	return l.ctx.FindElement(by.LinkText(text))
}

func (l *BaseLookup) PartialLink(text string) (core.WebElement, error) {
	return l.ctx.FindElement(by.PartialLinkText(text))
}

func labelTarget(ctx core.SearchContext, label core.WebElement) (core.WebElement, error) {
	if label == nil {
		return nil, core.NoSuchElement("The label is not available.")
	}
	forID, err := label.Attribute("for")
	if err != nil {
		return nil, err
	}
	if forID == "" {
		return nil, core.NoSuchElement("The label is not bound to an element.")
	}
	return ctx.FindElement(by.ID(forID))
}

type textEntry struct {
	text string
	el   core.WebElement
}

type textIndex struct {
	entries []textEntry
	byText  map[string]core.WebElement
}

// CachedLookup reads the text of every displayed match once per locator and
// answers text lookups from that snapshot.
type CachedLookup struct {
	ctx         core.SearchContext
	concurrency int

	mu    sync.Mutex
	cache map[string]*textIndex
}

// NewCachedLookup returns a cached lookup on ctx reading up to concurrency
// element texts at a time.
func NewCachedLookup(ctx core.SearchContext, concurrency int) *CachedLookup {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CachedLookup{ctx: ctx, concurrency: concurrency, cache: make(map[string]*textIndex)}
}

// Invalidate drops the snapshot of loc, or every snapshot when loc is zero.
func (l *CachedLookup) Invalidate(loc by.Locator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if loc.IsZero() {
		l.cache = make(map[string]*textIndex)
		return
	}
	delete(l.cache, loc.String())
}

func (l *CachedLookup) index(loc by.Locator) (*textIndex, error) {
	key := loc.String()
	l.mu.Lock()
	idx, ok := l.cache[key]
	l.mu.Unlock()
	if ok {
		return idx, nil
	}

	els, err := l.ctx.FindElements(loc)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(els))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(l.concurrency)
	for i, el := range els {
		i, el := i, el
		g.Go(func() error {
			shown, err := el.IsDisplayed()
			if core.IsStale(err) || (err == nil && !shown) {
				return nil
			}
			if err != nil {
				return err
			}
			text, err := el.Text()
			if core.IsStale(err) {
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx = &textIndex{byText: make(map[string]core.WebElement)}
	for i, text := range texts {
		if text == "" {
			continue
		}
		idx.entries = append(idx.entries, textEntry{text: text, el: els[i]})
		if _, seen := idx.byText[text]; !seen {
			idx.byText[text] = els[i]
		}
	}

	l.mu.Lock()
	l.cache[key] = idx
	l.mu.Unlock()
	return idx, nil
}

func (l *CachedLookup) ByText(loc by.Locator, text string) (core.WebElement, error) {
	idx, err := l.index(loc)
	if err != nil {
		return nil, err
	}
	if el, ok := idx.byText[text]; ok {
		return el, nil
	}
	return nil, textNotFound(loc, text, true)
}

func (l *CachedLookup) ByPartialText(loc by.Locator, text string) (core.WebElement, error) {
	idx, err := l.index(loc)
	if err != nil {
		return nil, err
	}
	for _, e := range idx.entries {
		if strings.Contains(e.text, text) {
			return e.el, nil
		}
	}
	return nil, textNotFound(loc, text, false)
}

func (l *CachedLookup) ByTagAndText(tag, text string) (core.WebElement, error) {
	return l.ByText(by.TagName(tag), text)
}

func (l *CachedLookup) ByClassAndText(class, text string) (core.WebElement, error) {
	return l.ByText(by.ClassName(class), text)
}

func (l *CachedLookup) ByCSSSelectorAndText(selector, text string) (core.WebElement, error) {
	return l.ByText(by.CSSSelector(selector), text)
}

func (l *CachedLookup) ByAttribute(loc by.Locator, attr, value string) (core.WebElement, error) {
	return NewBaseLookup(l.ctx).ByAttribute(loc, attr, value)
}

func (l *CachedLookup) Label(text string) (core.WebElement, error) {
	return l.ByText(by.TagName("label"), text)
}

func (l *CachedLookup) PartialLabel(text string) (core.WebElement, error) {
	return l.ByPartialText(by.TagName("label"), text)
}

func (l *CachedLookup) ByLabel(label core.WebElement) (core.WebElement, error) {
	return labelTarget(l.ctx, label)
}

func (l *CachedLookup) ByLabelText(text string) (core.WebElement, error) {
	label, err := l.Label(text)
	if err != nil {
		return nil, err
	}
	return l.ByLabel(label)
}

func (l *CachedLookup) ByPartialLabel(text string) (core.WebElement, error) {
	label, err := l.PartialLabel(text)
	if err != nil {
		return nil, err
	}
	return l.ByLabel(label)
}

func (l *CachedLookup) Link(text string) (core.WebElement, error) {
	return l.ByText(by.TagName("a"), text)
}

func (l *CachedLookup) PartialLink(text string) (core.WebElement, error) {
	return l.ByPartialText(by.TagName("a"), text)
}

// ElementLookup waits for elements under a basil context. Text lookups are
// served from a cache that is refreshed whenever it misses.
type ElementLookup struct {
	ctx   *basil.Context
	wait  wait.Wait
	cache *CachedLookup
}

// NewElementLookup returns a lookup on ctx polling with w.
func NewElementLookup(ctx *basil.Context, w wait.Wait, concurrency int) *ElementLookup {
	return &ElementLookup{ctx: ctx, wait: w.On(ctx), cache: NewCachedLookup(ctx, concurrency)}
}

// Wait returns the polling wait of the lookup.
func (l *ElementLookup) Wait() wait.Wait { return l.wait }

// VisibleElement waits for the first match of loc to be displayed.
func (l *ElementLookup) VisibleElement(loc by.Locator) (core.WebElement, error) {
	return wait.Until(context.Background(), l.wait, wait.VisibilityOfElementLocated(loc))
}

// FirstVisibleElement waits for any match of loc to be displayed.
func (l *ElementLookup) FirstVisibleElement(loc by.Locator) (core.WebElement, error) {
	el, err := wait.Until(context.Background(), l.wait, wait.VisibilityOfFirstVisibleElementLocated(loc))
	if err != nil {
		return nil, err
	}
	return basil.NewResolved(l.ctx, loc, el), nil
}

func (l *ElementLookup) cached(desc string, loc by.Locator, find func() (core.WebElement, error)) (core.WebElement, error) {
	return wait.Until(context.Background(), l.wait, wait.Condition[core.WebElement]{
		Description: desc,
		Apply: func(core.SearchContext) (core.WebElement, error) {
			el, err := find()
			if core.IsNotFound(err) {
				l.cache.Invalidate(loc)
			}
			return el, err
		},
	})
}

func (l *ElementLookup) ByText(loc by.Locator, text string) (core.WebElement, error) {
	return l.cached("text "+text+" by "+loc.String(), loc, func() (core.WebElement, error) {
		return l.cache.ByText(loc, text)
	})
}

func (l *ElementLookup) ByPartialText(loc by.Locator, text string) (core.WebElement, error) {
	return l.cached("partial text "+text+" by "+loc.String(), loc, func() (core.WebElement, error) {
		return l.cache.ByPartialText(loc, text)
	})
}

func (l *ElementLookup) ByTagAndText(tag, text string) (core.WebElement, error) {
	return l.ByText(by.TagName(tag), text)
}

func (l *ElementLookup) ByClassAndText(class, text string) (core.WebElement, error) {
	return l.ByText(by.ClassName(class), text)
}

func (l *ElementLookup) ByCSSSelectorAndText(selector, text string) (core.WebElement, error) {
	return l.ByText(by.CSSSelector(selector), text)
}

func (l *ElementLookup) ByAttribute(loc by.Locator, attr, value string) (core.WebElement, error) {
	return wait.Until(context.Background(), l.wait, wait.Condition[core.WebElement]{
		Description: attr + "=" + value + " by " + loc.String(),
		Apply: func(core.SearchContext) (core.WebElement, error) {
			return NewBaseLookup(l.ctx).ByAttribute(loc, attr, value)
		},
	})
}

// Label waits for the <label> reading text.
func (l *ElementLookup) Label(text string) (core.WebElement, error) {
	return l.ByText(by.TagName("label"), text)
}

// PartialLabel returns the first <label> containing text.
func (l *ElementLookup) PartialLabel(text string) (core.WebElement, error) {
	return l.FirstVisibleElement(by.XPath("//label[contains(text(), " + xpath.Literal(text) + ")]"))
}

// ByLabel returns a lazy element for the id the label's "for" names.
func (l *ElementLookup) ByLabel(label core.WebElement) (core.WebElement, error) {
	if label == nil {
		return nil, core.NoSuchElement("The label is not available.")
	}
	forID, err := label.Attribute("for")
	if err != nil {
		return nil, err
	}
	if forID == "" {
		return nil, core.NoSuchElement("The label is not bound to an element.")
	}
	return basil.New(l.ctx.DriverContext(), by.ID(forID)), nil
}

// ByLabelText returns a lazy element bound through the label reading text.
func (l *ElementLookup) ByLabelText(text string) (core.WebElement, error) {
	return basil.NewLabeled(l.ctx, text), nil
}

func (l *ElementLookup) ByPartialLabel(text string) (core.WebElement, error) {
	label, err := l.PartialLabel(text)
	if err != nil {
		return nil, err
	}
	return l.ByLabel(label)
}

func (l *ElementLookup) Link(text string) (core.WebElement, error) {
	return l.VisibleElement(by.LinkText(text))
}

func (l *ElementLookup) PartialLink(text string) (core.WebElement, error) {
	return l.VisibleElement(by.PartialLinkText(text))
}

var (
	_ Lookup = (*BaseLookup)(nil)
	_ Lookup = (*CachedLookup)(nil)
	_ Lookup = (*ElementLookup)(nil)
)
