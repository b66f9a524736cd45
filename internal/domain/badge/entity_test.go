package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

func TestRequirementSatisfied(t *testing.T) {
	tests := []struct {
		name     string
		op       Operation
		required int
		progress int
		want     bool
	}{
		{"gte below threshold", OpGreaterOrEqual, 100, 99, false},
		{"gte at threshold", OpGreaterOrEqual, 100, 100, true},
		{"gte above threshold", OpGreaterOrEqual, 100, 150, true},
		{"eq below threshold", OpEquals, 5, 4, false},
		{"eq exact match", OpEquals, 5, 5, true},
		{"eq overshoot does not award", OpEquals, 5, 6, false},
		{"gte zero threshold always met", OpGreaterOrEqual, 0, 0, true},
		{"unknown operation never awards", Operation("lt"), 5, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Requirement{
				EventType:     progression.EventTokenBalanceCheck,
				Operation:     tt.op,
				RequiredCount: tt.required,
			}
			assert.Equal(t, tt.want, r.Satisfied(tt.progress))
		})
	}
}

func TestRequirementValidate(t *testing.T) {
	valid := Requirement{
		EventType:     progression.EventReferralCreated,
		Operation:     OpGreaterOrEqual,
		RequiredCount: 3,
	}
	assert.NoError(t, valid.Validate())

	badOp := valid
	badOp.Operation = Operation("between")
	assert.ErrorIs(t, badOp.Validate(), shared.ErrInvalidOperation)

	badEvent := valid
	badEvent.EventType = progression.EventType(42)
	assert.ErrorIs(t, badEvent.Validate(), shared.ErrUnknownEventType)
}

func TestOperationIsValid(t *testing.T) {
	assert.True(t, OpEquals.IsValid())
	assert.True(t, OpGreaterOrEqual.IsValid())
	assert.False(t, Operation("").IsValid())
	assert.False(t, Operation("GTE").IsValid())
}
