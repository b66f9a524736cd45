package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/badge"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

type createFixture struct {
	*syncFixture
	handler *CreateApplicantHandler
}

func newCreateFixture(t *testing.T) *createFixture {
	t.Helper()

	sf := newSyncFixture(t)
	handler := NewCreateApplicantHandler(
		sf.applicants, sf.leaderboard, sf.recorder, sf.badges,
		sf.handler, sf.cache, nil)

	return &createFixture{syncFixture: sf, handler: handler}
}

func TestCreateApplicantRegistersAndSyncs(t *testing.T) {
	f := newCreateFixture(t)
	f.badges.addBadge(1, 10, badge.Requirement{
		EventType:     progression.EventRegistrationCompleted,
		Operation:     badge.OpGreaterOrEqual,
		RequiredCount: 1,
	})
	f.badges.addBadge(2, 50, badge.Requirement{
		EventType:     progression.EventTokenBalanceCheck,
		Operation:     badge.OpGreaterOrEqual,
		RequiredCount: 100,
	})
	f.balances.tokenBalance = 150

	result, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)
	require.NotNil(t, result.Applicant)
	assert.False(t, result.AlreadyExisted)
	assert.Len(t, result.Applicant.ReferralCode, 6)

	// The initial sync runs with a leaderboard refresh, so the new entry
	// already carries both badge scores.
	entry, err := f.leaderboard.GetUserEntry(context.Background(), result.Applicant.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, entry.TotalScore)
	assert.Equal(t, 1, entry.Rank)

	assert.Equal(t, 1, f.cache.countInvalidations)
	assert.Equal(t, 1, f.cache.pageInvalidations)
}

func TestCreateApplicantRanksNewcomerLast(t *testing.T) {
	f := newCreateFixture(t)

	first, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)
	second, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-2"})
	require.NoError(t, err)

	firstEntry, err := f.leaderboard.GetUserEntry(context.Background(), first.Applicant.ID)
	require.NoError(t, err)
	secondEntry, err := f.leaderboard.GetUserEntry(context.Background(), second.Applicant.ID)
	require.NoError(t, err)

	// Equal scores; earlier registration wins the tiebreak.
	assert.Equal(t, 1, firstEntry.Rank)
	assert.Equal(t, 2, secondEntry.Rank)
}

func TestCreateApplicantDuplicateReturnsExisting(t *testing.T) {
	f := newCreateFixture(t)

	first, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)

	again, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)

	assert.True(t, again.AlreadyExisted)
	assert.Equal(t, first.Applicant.ID, again.Applicant.ID)
	assert.Equal(t, first.Applicant.ReferralCode, again.Applicant.ReferralCode)

	count, err := f.applicants.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCreateApplicantUnknownReferralCodeWritesNothing(t *testing.T) {
	f := newCreateFixture(t)

	_, err := f.handler.Handle(context.Background(), CreateApplicantCommand{
		PublicKey:    "wallet-1",
		ReferralCode: "NOPE99",
	})
	assert.ErrorIs(t, err, shared.ErrReferralCodeNotFound)

	count, err := f.applicants.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestCreateApplicantCreditsReferrer(t *testing.T) {
	f := newCreateFixture(t)
	f.badges.addBadge(1, 20, badge.Requirement{
		EventType:     progression.EventReferralCreated,
		Operation:     badge.OpGreaterOrEqual,
		RequiredCount: 1,
	})

	referrer, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)

	referred, err := f.handler.Handle(context.Background(), CreateApplicantCommand{
		PublicKey:    "wallet-2",
		ReferralCode: referrer.Applicant.ReferralCode,
	})
	require.NoError(t, err)
	assert.Equal(t, referrer.Applicant.ID, referred.Applicant.ReferredByID)
	assert.True(t, referred.Applicant.WasReferred())

	// The referrer's counter moved and the referral badge landed without
	// waiting for the referrer's own sync.
	assert.Equal(t, 1, f.recorder.progress("wallet-1", progression.EventReferralCreated))
	assert.Equal(t, 1, f.badges.awardCount(referrer.Applicant.ID))
}

func TestCreateApplicantDuplicateDoesNotRecreditReferrer(t *testing.T) {
	f := newCreateFixture(t)

	referrer, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.handler.Handle(context.Background(), CreateApplicantCommand{
			PublicKey:    "wallet-2",
			ReferralCode: referrer.Applicant.ReferralCode,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.recorder.progress("wallet-1", progression.EventReferralCreated))
}

func TestCreateApplicantSurvivesBalanceSourceOutage(t *testing.T) {
	f := newCreateFixture(t)
	f.balances.tokenErr = shared.ErrBalanceSourceUnavailable
	f.balances.stakedErr = shared.ErrBalanceSourceUnavailable

	result, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err, "registration must succeed when balance sources are down")

	assert.Equal(t, 1, f.recorder.progress("wallet-1", progression.EventRegistrationCompleted))
	assert.Equal(t, 0, f.recorder.progress("wallet-1", progression.EventTokenBalanceCheck))

	_, err = f.leaderboard.GetUserEntry(context.Background(), result.Applicant.ID)
	assert.NoError(t, err)
}

func TestCreateApplicantEmptyPublicKeyRejected(t *testing.T) {
	f := newCreateFixture(t)

	_, err := f.handler.Handle(context.Background(), CreateApplicantCommand{})
	assert.ErrorIs(t, err, shared.ErrInvalidPublicKey)
}

func TestCreateApplicantResultCarriesCreationTime(t *testing.T) {
	f := newCreateFixture(t)

	before := time.Now().UTC()
	result, err := f.handler.Handle(context.Background(), CreateApplicantCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)

	assert.False(t, result.CreatedAt.Before(before.Add(-time.Second)))
	assert.Equal(t, result.Applicant.CreatedAt, result.CreatedAt)
}
