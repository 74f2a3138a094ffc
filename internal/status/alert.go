// internal/status/alert.go
package status

import (
	"fmt"

	"github.com/tamzrod/pmbus-engine/internal/command"
)

// SetMask stores the SMBAlert mask of one category on page, or on every page
// for PageAll.
func (a *Aggregator) SetMask(page command.PageID, cat Category, mask Flags) error {
	if cat >= NumCategories {
		return fmt.Errorf("status: category %d out of range", cat)
	}
	if page != command.PageAll && !page.Valid(a.pages) {
		return fmt.Errorf("status: page %v out of range", page)
	}
	a.forPages(page, func(p int) { a.masks[p][cat] = mask })
	return nil
}

// Mask returns the SMBAlert mask of one category on page.
func (a *Aggregator) Mask(page command.PageID, cat Category) Flags {
	if cat >= NumCategories || !page.Valid(a.pages) {
		return 0
	}
	return a.masks[page][cat]
}

// PageAlert reports whether page has an unmasked bit set.
func (a *Aggregator) PageAlert(page command.PageID) bool {
	if !page.Valid(a.pages) {
		return false
	}
	r := a.regs[page].Read()
	for c := Category(0); c < NumCategories; c++ {
		if r.Cat[c]&^a.masks[page][c] != 0 {
			return true
		}
	}
	return false
}

// EvaluateAlert recomputes the SMBAlert level: asserted when any page has an
// unmasked bit in any category. changed is true when the level moved.
func (a *Aggregator) EvaluateAlert() (asserted, changed bool) {
	var on bool
	for p := 0; p < a.pages; p++ {
		if a.PageAlert(command.PageID(p)) {
			on = true
			break
		}
	}
	changed = on != a.alert
	a.alert = on
	return on, changed
}

// Alert returns the last evaluated SMBAlert level.
func (a *Aggregator) Alert() bool { return a.alert }
