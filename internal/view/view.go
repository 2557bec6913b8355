// internal/view/view.go
//
// The dashboard shows exactly one view at a time. Entering a view is the only
// event that triggers loading its data; there is no polling.

package view

import (
	"errors"
	"fmt"
	"strings"
)

// View identifies one of the mutually exclusive dashboard display modes.
type View int

const (
	Inventory View = iota
	Alerts
	Forecast
	Insights
	Search
)

// ErrUnknownView is returned when a name or value does not map to a View.
var ErrUnknownView = errors.New("view: unknown view")

// All lists the views in tab order.
var All = []View{Inventory, Alerts, Forecast, Insights, Search}

// String returns the wire name used in config files and logs.
func (v View) String() string {
	switch v {
	case Inventory:
		return "inventory"
	case Alerts:
		return "alerts"
	case Forecast:
		return "forecast"
	case Insights:
		return "insights"
	case Search:
		return "search"
	default:
		return "unknown"
	}
}

// Title returns the tab label.
func (v View) Title() string {
	return strings.ToUpper(v.String())
}

// Valid reports whether v is one of the five views.
func (v View) Valid() bool {
	return v >= Inventory && v <= Search
}

// Parse maps a case-insensitive view name to its View.
func Parse(name string) (View, error) {
	target := strings.ToLower(strings.TrimSpace(name))
	for _, v := range All {
		if v.String() == target {
			return v, nil
		}
	}
	return Inventory, fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// Selector tracks the active view. The zero value starts on Inventory.
type Selector struct {
	active View
}

// NewSelector returns a selector positioned on initial, or Inventory when
// initial is not a valid view.
func NewSelector(initial View) *Selector {
	if !initial.Valid() {
		initial = Inventory
	}
	return &Selector{active: initial}
}

// Active returns the current view.
func (s *Selector) Active() View {
	if s == nil {
		return Inventory
	}
	return s.active
}

// Select enters v. Re-selecting the active view is still an entry.
func (s *Selector) Select(v View) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownView, int(v))
	}
	s.active = v
	return nil
}

// Next enters the view after the active one, wrapping around.
func (s *Selector) Next() View {
	s.active = All[(s.index()+1)%len(All)]
	return s.active
}

// Prev enters the view before the active one, wrapping around.
func (s *Selector) Prev() View {
	s.active = All[(s.index()+len(All)-1)%len(All)]
	return s.active
}

func (s *Selector) index() int {
	for i, v := range All {
		if v == s.active {
			return i
		}
	}
	return 0
}
