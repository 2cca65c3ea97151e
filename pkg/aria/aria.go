// Package aria enumerates WAI-ARIA attributes and tells states from
// properties.
package aria

import (
	"fmt"
	"strings"
)

// Attribute is an aria-* attribute name without the prefix.
type Attribute string

// States.
const (
	Busy     Attribute = "busy"
	Checked  Attribute = "checked"
	Disabled Attribute = "disabled"
	Expanded Attribute = "expanded"
	Grabbed  Attribute = "grabbed"
	Hidden   Attribute = "hidden"
	Invalid  Attribute = "invalid"
	Pressed  Attribute = "pressed"
	Selected Attribute = "selected"
)

// Properties.
const (
	ActiveDescendant Attribute = "activedescendant"
	Atomic           Attribute = "atomic"
	AutoComplete     Attribute = "autocomplete"
	Controls         Attribute = "controls"
	DescribedBy      Attribute = "describedby"
	DropEffect       Attribute = "dropeffect"
	FlowTo           Attribute = "flowto"
	HasPopup         Attribute = "haspopup"
	Label            Attribute = "label"
	LabelledBy       Attribute = "labelledby"
	Level            Attribute = "level"
	Live             Attribute = "live"
	MultiLine        Attribute = "multiline"
	MultiSelectable  Attribute = "multiselectable"
	Orientation      Attribute = "orientation"
	Owns             Attribute = "owns"
	PosInSet         Attribute = "posinset"
	ReadOnly         Attribute = "readonly"
	Relevant         Attribute = "relevant"
	Required         Attribute = "required"
	SetSize          Attribute = "setsize"
	Sort             Attribute = "sort"
	ValueMax         Attribute = "valuemax"
	ValueMin         Attribute = "valuemin"
	ValueNow         Attribute = "valuenow"
	ValueText        Attribute = "valuetext"
)

var states = map[Attribute]bool{
	Busy: true, Checked: true, Disabled: true, Expanded: true, Grabbed: true,
	Hidden: true, Invalid: true, Pressed: true, Selected: true,
}

var properties = map[Attribute]bool{
	ActiveDescendant: true, Atomic: true, AutoComplete: true, Controls: true,
	DescribedBy: true, DropEffect: true, FlowTo: true, HasPopup: true,
	Label: true, LabelledBy: true, Level: true, Live: true, MultiLine: true,
	MultiSelectable: true, Orientation: true, Owns: true, PosInSet: true,
	ReadOnly: true, Relevant: true, Required: true, SetSize: true, Sort: true,
	ValueMax: true, ValueMin: true, ValueNow: true, ValueText: true,
}

// IsState reports whether the attribute is an ARIA state.
func (a Attribute) IsState() bool { return states[a] }

// IsProperty reports whether the attribute is an ARIA property.
func (a Attribute) IsProperty() bool { return !states[a] }

// Name returns the DOM attribute name, such as "aria-checked".
func (a Attribute) Name() string { return "aria-" + string(a) }

func (a Attribute) String() string { return a.Name() }

// Parse accepts "checked", "aria-checked" or "CHECKED".
func Parse(s string) (Attribute, error) {
	a := Attribute(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "aria-"))
	if states[a] || properties[a] {
		return a, nil
	}
	return "", fmt.Errorf("unknown aria attribute %q", s)
}
