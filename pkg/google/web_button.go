package google

// HiddenButtonStrategy renders a Google button out of sight and clicks it when the
// one-tap prompt cannot be shown, so the user still gets the account chooser.
type HiddenButtonStrategy struct {
	ElementID string
	Selector  string
	Button    ButtonConfiguration
}

// DefaultHiddenButton targets the element with id "gid".
var DefaultHiddenButton = HiddenButtonStrategy{
	ElementID: "gid",
	Selector:  "div[role='button']",
	Button:    ButtonConfiguration{Type: "standard", Theme: "outline", Size: "large"},
}

// Render draws the button into ElementID.
func (h HiddenButtonStrategy) Render(ids IdentityServices) error {
	return ids.RenderButton(h.ElementID, h.Button)
}

// Handle clicks the button for skipped or not displayed moments.
// It reports whether the moment was handed off.
func (h HiddenButtonStrategy) Handle(doc Document, m PromptMoment) (bool, error) {
	if !m.Skipped && !m.NotDisplayed {
		return false, nil
	}
	return true, doc.ClickButton(h.ElementID, h.Selector)
}
