package command

import (
	"context"

	"github.com/minhvu/bujotrack/internal/model"
)

// UpdatePreferencesInput is a partial settings update; nil fields are left
// alone.
type UpdatePreferencesInput struct {
	Theme               *string `validate:"omitempty,oneof=system light dark"`
	DefaultCollectionID *string
	ShowCompletedTasks  *bool
}

// UpdatePreferences applies the changed fields to the user preferences
// aggregate. A call that would not change observable state appends nothing.
func (h *Handlers) UpdatePreferences(ctx context.Context, in UpdatePreferencesInput) error {
	if err := h.validate.Struct(in); err != nil {
		return err
	}
	if in.DefaultCollectionID != nil && *in.DefaultCollectionID != "" {
		if _, err := h.requireActiveCollection(*in.DefaultCollectionID); err != nil {
			return err
		}
	}

	current := h.prefs.Get()
	payload := model.PreferencesUpdatedPayload{}
	changed := false
	if in.Theme != nil && *in.Theme != current.Theme {
		payload.Theme = in.Theme
		changed = true
	}
	if in.DefaultCollectionID != nil && *in.DefaultCollectionID != current.DefaultCollectionID {
		payload.DefaultCollectionID = in.DefaultCollectionID
		changed = true
	}
	if in.ShowCompletedTasks != nil && *in.ShowCompletedTasks != current.ShowCompletedTasks {
		payload.ShowCompletedTasks = in.ShowCompletedTasks
		changed = true
	}
	if !changed {
		return nil
	}

	return h.log.Append(ctx, h.event(model.PreferencesUpdated, model.PreferencesAggregateID, payload))
}
