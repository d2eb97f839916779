package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransitionAllowedEdges(t *testing.T) {
	allowed := [][2]TicketStatus{
		{TicketStatusOpen, TicketStatusAssigned},
		{TicketStatusOpen, TicketStatusInProgress},
		{TicketStatusOpen, TicketStatusFalsePositive},
		{TicketStatusAssigned, TicketStatusInProgress},
		{TicketStatusAssigned, TicketStatusOpen},
		{TicketStatusAssigned, TicketStatusFalsePositive},
		{TicketStatusInProgress, TicketStatusResolved},
		{TicketStatusInProgress, TicketStatusAssigned},
		{TicketStatusInProgress, TicketStatusFalsePositive},
		{TicketStatusResolved, TicketStatusClosed},
		{TicketStatusResolved, TicketStatusInProgress},
	}
	for _, edge := range allowed {
		assert.NoError(t, ValidateTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestValidateTransitionRejectsIllegalEdges(t *testing.T) {
	illegal := [][2]TicketStatus{
		{TicketStatusOpen, TicketStatusResolved},
		{TicketStatusOpen, TicketStatusClosed},
		{TicketStatusAssigned, TicketStatusResolved},
		{TicketStatusAssigned, TicketStatusClosed},
		{TicketStatusInProgress, TicketStatusOpen},
		{TicketStatusInProgress, TicketStatusClosed},
		{TicketStatusResolved, TicketStatusOpen},
		{TicketStatusResolved, TicketStatusAssigned},
		{TicketStatusResolved, TicketStatusFalsePositive},
	}
	for _, edge := range illegal {
		err := ValidateTransition(edge[0], edge[1])
		var transitionErr *IllegalTransitionError
		require.ErrorAs(t, err, &transitionErr, "%s -> %s", edge[0], edge[1])
		assert.Equal(t, edge[0], transitionErr.Current)
		assert.Equal(t, edge[1], transitionErr.Requested)
	}
}

func TestValidateTransitionTerminalStates(t *testing.T) {
	for _, terminal := range []TicketStatus{TicketStatusClosed, TicketStatusFalsePositive} {
		require.True(t, terminal.IsTerminal())
		for _, next := range TicketStatuses() {
			if next == terminal {
				continue
			}
			var transitionErr *IllegalTransitionError
			assert.ErrorAs(t, ValidateTransition(terminal, next), &transitionErr)
		}
	}
}

func TestValidateTransitionSelfTransition(t *testing.T) {
	for _, status := range TicketStatuses() {
		err := ValidateTransition(status, status)
		var noopErr *NoOpTransitionError
		require.ErrorAs(t, err, &noopErr)
		assert.Equal(t, status, noopErr.Status)
	}
}

func TestParseTicketStatus(t *testing.T) {
	status, err := ParseTicketStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, TicketStatusInProgress, status)

	_, err = ParseTicketStatus("reopened")
	assert.Error(t, err)
}
