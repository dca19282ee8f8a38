package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStateMachine_Fire(t *testing.T) {
	m := NewWorkflowStateMachine()

	tests := []struct {
		name      string
		from      Status
		trigger   Trigger
		expected  Status
		expectErr bool
	}{
		{
			name:     "approve from in progress",
			from:     StatusInProgress,
			trigger:  TriggerApprove,
			expected: StatusApproved,
		},
		{
			name:     "reject from in progress",
			from:     StatusInProgress,
			trigger:  TriggerReject,
			expected: StatusRejected,
		},
		{
			name:     "cancel from in progress",
			from:     StatusInProgress,
			trigger:  TriggerCancel,
			expected: StatusCancelled,
		},
		{
			name:      "skip is not permitted for workflow states",
			from:      StatusInProgress,
			trigger:   TriggerSkip,
			expectErr: true,
		},
		{
			name:      "approve from approved",
			from:      StatusApproved,
			trigger:   TriggerApprove,
			expectErr: true,
		},
		{
			name:      "cancel from rejected",
			from:      StatusRejected,
			trigger:   TriggerCancel,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Fire(tt.from, tt.trigger)
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestTaskStateMachine_Fire(t *testing.T) {
	m := NewTaskStateMachine()

	tests := []struct {
		name      string
		from      Status
		trigger   Trigger
		expected  Status
		expectErr bool
	}{
		{
			name:     "approve from in progress",
			from:     StatusInProgress,
			trigger:  TriggerApprove,
			expected: StatusApproved,
		},
		{
			name:     "reject from in progress",
			from:     StatusInProgress,
			trigger:  TriggerReject,
			expected: StatusRejected,
		},
		{
			name:     "skip from in progress",
			from:     StatusInProgress,
			trigger:  TriggerSkip,
			expected: StatusSkipped,
		},
		{
			name:     "cancel from in progress",
			from:     StatusInProgress,
			trigger:  TriggerCancel,
			expected: StatusCancelled,
		},
		{
			name:      "approve from cancelled",
			from:      StatusCancelled,
			trigger:   TriggerApprove,
			expectErr: true,
		},
		{
			name:      "reject from skipped",
			from:      StatusSkipped,
			trigger:   TriggerReject,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Fire(tt.from, tt.trigger)
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMachine_CanFire(t *testing.T) {
	m := NewWorkflowStateMachine()

	assert.True(t, m.CanFire(StatusInProgress, TriggerApprove))
	assert.False(t, m.CanFire(StatusApproved, TriggerApprove))
	assert.False(t, m.CanFire(StatusInProgress, TriggerSkip))
}

func TestMachine_PermittedTriggers(t *testing.T) {
	m := NewTaskStateMachine()

	triggers := m.PermittedTriggers(StatusInProgress)
	assert.Len(t, triggers, 4)
	assert.ElementsMatch(t, []Trigger{TriggerApprove, TriggerReject, TriggerSkip, TriggerCancel}, triggers)

	assert.Empty(t, m.PermittedTriggers(StatusApproved))
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusSkipped.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}
