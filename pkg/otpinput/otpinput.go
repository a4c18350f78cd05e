// Package otpinput models the six-slot one-time-code entry ensemble: one
// conceptual 6-digit code split over independent single-character slots with
// auto-advance, backspace retreat, and paste distribution. It knows nothing
// about the login flow; callers read the concatenated code.
package otpinput

// SlotCount is the number of single-character slots.
const SlotCount = 6

// Widget tracks slot contents and the focused slot index.
type Widget struct {
	slots [SlotCount]rune
	focus int
}

// New returns an empty widget focused on the first slot.
func New() *Widget {
	return &Widget{}
}

// Focus returns the focused slot index.
func (widget *Widget) Focus() int {
	return widget.focus
}

// Type enters a character into the focused slot. Filling any slot before
// the last advances focus to the next slot.
func (widget *Widget) Type(character rune) {
	if character == 0 {
		return
	}
	widget.slots[widget.focus] = character
	if widget.focus < SlotCount-1 {
		widget.focus++
	}
}

// Backspace clears the focused slot; on an already-empty slot it retreats
// focus to the previous slot instead.
func (widget *Widget) Backspace() {
	if widget.slots[widget.focus] == 0 {
		if widget.focus > 0 {
			widget.focus--
		}
		return
	}
	widget.slots[widget.focus] = 0
}

// Paste distributes up to six characters across the slots starting at slot
// zero and focuses the last filled slot. Slots beyond the pasted text keep
// their previous contents.
func (widget *Widget) Paste(text string) {
	characters := []rune(text)
	if len(characters) > SlotCount {
		characters = characters[:SlotCount]
	}
	if len(characters) == 0 {
		return
	}
	for index, character := range characters {
		widget.slots[index] = character
	}
	widget.focus = len(characters) - 1
}

// Code returns the concatenation of the filled slots.
func (widget *Widget) Code() string {
	var characters []rune
	for _, slot := range widget.slots {
		if slot != 0 {
			characters = append(characters, slot)
		}
	}
	return string(characters)
}

// Complete reports whether all six slots are filled.
func (widget *Widget) Complete() bool {
	for _, slot := range widget.slots {
		if slot == 0 {
			return false
		}
	}
	return true
}

// Reset clears every slot and refocuses the first one.
func (widget *Widget) Reset() {
	widget.slots = [SlotCount]rune{}
	widget.focus = 0
}
