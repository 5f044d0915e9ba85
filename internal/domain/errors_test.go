package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesOnCode(t *testing.T) {
	specific := ErrPhase.Withf("donations closed at noon")
	wrapped := fmt.Errorf("donate: %w", specific)

	assert.ErrorIs(t, wrapped, ErrPhase)
	assert.NotErrorIs(t, wrapped, ErrInvalidAmount)
	assert.Equal(t, "donations closed at noon", specific.Error())

	// same kind, different code
	assert.NotErrorIs(t, ErrVoterCannotDonate, ErrVolunteerCannotDonate)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrVoterCannotVolunteer, KindRoleConflict},
		{ErrAlreadyRefunded, KindInvalidState},
		{ErrNoWinner, KindSettlementPath},
		{ErrWinnerExists, KindSettlementPath},
		{ErrNoVotingPower, KindNoVotingPower},
		{fmt.Errorf("wrapped: %w", ErrUnauthorized), KindUnauthorized},
	}
	for _, tt := range tests {
		kind, ok := KindOf(tt.err)
		assert.True(t, ok)
		assert.Equal(t, tt.want, kind)
	}

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
