package controller_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/readmark/extsync/core/controller"
)

func TestBadgeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		authenticated bool
		status        controller.PageStatus
		wantCleared   bool
	}{
		{"saved while authenticated", true, controller.StatusSaved, false},
		{"not saved while authenticated", true, controller.StatusNotSaved, false},
		{"unknown while authenticated", true, controller.StatusUnknown, true},
		{"restricted while authenticated", true, controller.StatusRestricted, true},
		{"saved while signed out", false, controller.StatusSaved, true},
		{"not saved while signed out", false, controller.StatusNotSaved, true},
		{"restricted while signed out", false, controller.StatusRestricted, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			badge := controller.BadgeFor(tt.authenticated, tt.status)
			if tt.wantCleared {
				assert.Equal(t, controller.BadgeState{}, badge)
			} else {
				assert.NotEmpty(t, badge.Text)
				assert.NotEmpty(t, badge.Color)
			}
		})
	}
}

func TestBadgeFor_Deterministic(t *testing.T) {
	t.Parallel()

	// Same inputs, same badge: the badge never drifts from its inputs.
	first := controller.BadgeFor(true, controller.StatusSaved)
	second := controller.BadgeFor(true, controller.StatusSaved)
	assert.Equal(t, first, second)

	assert.NotEqual(t,
		controller.BadgeFor(true, controller.StatusSaved),
		controller.BadgeFor(true, controller.StatusNotSaved),
	)
}
