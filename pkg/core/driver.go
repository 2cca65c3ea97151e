// Package core provides the driver abstraction and error model shared by every
// basil package.
package core

import (
	"github.com/devicelab-dev/basil/pkg/by"
)

// SearchContext is anything elements can be located from: a driver, an
// element, or one of basil's lazy wrappers around them.
type SearchContext interface {
	FindElement(loc by.Locator) (WebElement, error)
	FindElements(loc by.Locator) ([]WebElement, error)
}

// WebElement is a single DOM element as seen by a driver backend.
type WebElement interface {
	SearchContext

	Click() error
	Clear() error
	SendKeys(text string) error

	TagName() (string, error)
	Text() (string, error)
	// Attribute returns "" when the attribute is absent.
	Attribute(name string) (string, error)
	// LookupAttribute reports whether the attribute is present.
	LookupAttribute(name string) (string, bool, error)
	CSSValue(property string) (string, error)

	IsDisplayed() (bool, error)
	IsEnabled() (bool, error)
	IsSelected() (bool, error)

	Rect() (Bounds, error)
	Screenshot() ([]byte, error)
}

// WebDriver drives one browser session.
type WebDriver interface {
	SearchContext

	SessionID() string
	Navigate(url string) error
	CurrentURL() (string, error)
	Title() (string, error)
	PageSource() (string, error)
	Screenshot() ([]byte, error)

	// ExecuteScript runs a synchronous script whose arguments are available
	// as arguments[i]. Elements may be passed and returned.
	ExecuteScript(script string, args ...interface{}) (interface{}, error)

	// MoveTo hovers the pointer over the element.
	MoveTo(el WebElement) error
	// MouseClick clicks at the current pointer position.
	MouseClick() error

	SetWindowSize(width, height int) error
	MaximizeWindow() error

	Quit() error
}

// Wrapper is implemented by elements that decorate another element.
type Wrapper interface {
	WrappedElement() (WebElement, error)
}

// Unwrap follows Wrapper links down to the backend element.
func Unwrap(el WebElement) (WebElement, error) {
	for {
		w, ok := el.(Wrapper)
		if !ok {
			return el, nil
		}
		inner, err := w.WrappedElement()
		if err != nil {
			return nil, err
		}
		el = inner
	}
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}
