package controller

// PageStatus is the saved-state of the active page as far as the background
// process knows.
type PageStatus string

const (
	// StatusUnknown means no live cache judgement exists; it persists until a
	// UI context reports an authoritative result.
	StatusUnknown PageStatus = "unknown"
	// StatusNotSaved means the page is known not to be saved.
	StatusNotSaved PageStatus = "not_saved"
	// StatusSaved means the page is known to be saved.
	StatusSaved PageStatus = "saved"
	// StatusRestricted marks browser-internal pages where no action is
	// meaningful.
	StatusRestricted PageStatus = "restricted"
)

// BadgeState is the visible indicator text and color. It is derived, never
// stored: always a pure function of (authenticated, PageStatus).
type BadgeState struct {
	Text  string
	Color string
}

// badge palette
const (
	badgeSavedText     = "✓"
	badgeSavedColor    = "#0F9D58"
	badgeNotSavedText  = "+"
	badgeNotSavedColor = "#9E9E9E"
)

// BadgeFor derives the badge for a page status. Authentication gates the
// whole affordance: signed out, the badge is cleared regardless of cache
// contents.
func BadgeFor(authenticated bool, status PageStatus) BadgeState {
	if !authenticated {
		return BadgeState{}
	}

	switch status {
	case StatusSaved:
		return BadgeState{Text: badgeSavedText, Color: badgeSavedColor}
	case StatusNotSaved:
		return BadgeState{Text: badgeNotSavedText, Color: badgeNotSavedColor}
	default: // unknown, restricted
		return BadgeState{}
	}
}
