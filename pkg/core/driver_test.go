package core

import "github.com/devicelab-dev/basil/pkg/by"

type stubElement struct{}

func (s *stubElement) FindElement(by.Locator) (WebElement, error)          { return nil, ErrNoSuchElement }
func (s *stubElement) FindElements(by.Locator) ([]WebElement, error)       { return nil, nil }
func (s *stubElement) Click() error                                        { return nil }
func (s *stubElement) Clear() error                                        { return nil }
func (s *stubElement) SendKeys(string) error                               { return nil }
func (s *stubElement) TagName() (string, error)                            { return "div", nil }
func (s *stubElement) Text() (string, error)                               { return "", nil }
func (s *stubElement) Attribute(string) (string, error)                    { return "", nil }
func (s *stubElement) LookupAttribute(string) (string, bool, error)        { return "", false, nil }
func (s *stubElement) CSSValue(string) (string, error)                     { return "", nil }
func (s *stubElement) IsDisplayed() (bool, error)                          { return true, nil }
func (s *stubElement) IsEnabled() (bool, error)                            { return true, nil }
func (s *stubElement) IsSelected() (bool, error)                           { return false, nil }
func (s *stubElement) Rect() (Bounds, error)                               { return Bounds{}, nil }
func (s *stubElement) Screenshot() ([]byte, error)                         { return nil, nil }

type wrappingElement struct {
	stubElement
	inner WebElement
}

func (w *wrappingElement) WrappedElement() (WebElement, error) { return w.inner, nil }
