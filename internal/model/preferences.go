package model

// PreferencesAggregateID is the fixed aggregate ID of the single
// user-preferences entity.
const PreferencesAggregateID = "user-preferences"

// UserPreferences holds journal-wide user settings.
type UserPreferences struct {
	Theme               string `json:"theme"`
	DefaultCollectionID string `json:"defaultCollectionId,omitempty"`
	ShowCompletedTasks  bool   `json:"showCompletedTasks"`
}

// DefaultPreferences returns the state before any PreferencesUpdated event.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Theme:              "system",
		ShowCompletedTasks: true,
	}
}

// Apply folds a partial update into the preferences.
func (u *UserPreferences) Apply(p PreferencesUpdatedPayload) {
	if p.Theme != nil {
		u.Theme = *p.Theme
	}
	if p.DefaultCollectionID != nil {
		u.DefaultCollectionID = *p.DefaultCollectionID
	}
	if p.ShowCompletedTasks != nil {
		u.ShowCompletedTasks = *p.ShowCompletedTasks
	}
}
