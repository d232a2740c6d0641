package controller

// DefaultSettingsKey is the well-known store key holding user settings.
const DefaultSettingsKey = "user_settings"

// Settings is the persisted user configuration. Like the session, it is
// replaced as a whole value, never field-mutated in place.
type Settings struct {
	StatusCategories []string `json:"status_categories"`
}

// DefaultSettings returns the settings applied when nothing is persisted yet.
func DefaultSettings() Settings {
	return Settings{
		StatusCategories: []string{"To Read", "Reading", "Read"},
	}
}
