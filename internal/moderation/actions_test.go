package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/models"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		want     Action
		status   models.ReportStatus
		logType  models.ActionType
		karma    models.KarmaEventType
	}{
		{"warn", 0, Warn{}, models.StatusResolved, models.ActionWarn, models.KarmaWarning},
		{"WARN", 0, Warn{}, models.StatusResolved, models.ActionWarn, models.KarmaWarning},
		{"suspend", 3, Suspend{Days: 3}, models.StatusResolved, models.ActionSuspend, models.KarmaSuspended3d},
		{"suspend", 30, Suspend{Days: 30}, models.StatusResolved, models.ActionSuspend, models.KarmaSuspended30d},
		{"suspend_7d", 0, Suspend{Days: 7}, models.StatusResolved, models.ActionSuspend, models.KarmaSuspended7d},
		{"suspend_30d", 99, Suspend{Days: 30}, models.StatusResolved, models.ActionSuspend, models.KarmaSuspended30d},
		{"ban", 0, Ban{}, models.StatusResolved, models.ActionBan, models.KarmaBanned},
		{"dismiss", 0, Dismiss{}, models.StatusDismissed, models.ActionDismissReport, ""},
		{"no_action", 0, Dismiss{}, models.StatusDismissed, models.ActionDismissReport, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.name, tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.status, got.ReportStatus())
			assert.Equal(t, tt.logType, got.LogType())

			ev, ok := got.KarmaEvent()
			assert.Equal(t, tt.karma != "", ok)
			assert.Equal(t, tt.karma, ev)
		})
	}
}

func TestParseAction_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		duration int
	}{
		{"mute", 0},
		{"", 0},
		{"suspend", 0},
		{"suspend", 14},
		{"suspend_14d", 0},
	}

	for _, tt := range tests {
		_, err := ParseAction(tt.name, tt.duration)
		assert.True(t, apperr.Is(err, apperr.CodeValidation), "%q/%d: got %v", tt.name, tt.duration, err)
	}
}

func TestSuspend_Name(t *testing.T) {
	assert.Equal(t, "suspend_7d", Suspend{Days: 7}.Name())
}
