package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-hub/waitlist-backend/internal/domain/applicant"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/badge"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/progression"
	"github.com/catalyst-hub/waitlist-backend/internal/domain/shared"
)

const testTokenMint = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"

type syncFixture struct {
	handler     *SyncProgressionsHandler
	applicants  *fakeApplicantRepo
	recorder    *fakeRecorder
	badges      *fakeBadgeRepo
	leaderboard *fakeLeaderboardRepo
	balances    *fakeBalanceSource
	cache       *fakeCache
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	applicants := newFakeApplicantRepo()
	recorder := newFakeRecorder()
	badges := newFakeBadgeRepo()
	board := newFakeLeaderboardRepo(badges, applicants)
	balances := &fakeBalanceSource{}
	cache := &fakeCache{}

	handler := NewSyncProgressionsHandler(
		applicants, recorder, badges, board, balances, cache, nil,
		SyncProgressionsHandlerConfig{
			TokenAddress:  testTokenMint,
			SourceTimeout: 2 * time.Second,
		})

	return &syncFixture{
		handler:     handler,
		applicants:  applicants,
		recorder:    recorder,
		badges:      badges,
		leaderboard: board,
		balances:    balances,
		cache:       cache,
	}
}

// register seeds an applicant directly in the fake store and returns it.
func (f *syncFixture) register(t *testing.T, publicKey string) *applicant.Applicant {
	t.Helper()

	fresh, err := applicant.New(publicKey, 0)
	require.NoError(t, err)

	persisted, err := f.applicants.CreateOrFetch(context.Background(), fresh)
	require.NoError(t, err)

	require.NoError(t, f.leaderboard.AddUser(context.Background(), persisted.ID))
	return persisted
}

func TestSyncRecordsAllFourSources(t *testing.T) {
	f := newSyncFixture(t)
	f.register(t, "wallet-1")
	f.balances.tokenBalance = 150
	f.balances.stakedBalance = 40

	result, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 4)

	assert.Equal(t, 1, f.recorder.progress("wallet-1", progression.EventRegistrationCompleted))
	assert.Equal(t, 150, f.recorder.progress("wallet-1", progression.EventTokenBalanceCheck))
	assert.Equal(t, 40, f.recorder.progress("wallet-1", progression.EventStakedBalanceCheck))
	assert.Equal(t, 0, f.recorder.progress("wallet-1", progression.EventReferralCreated))
}

func TestSyncAwardsBadgeAtThreshold(t *testing.T) {
	f := newSyncFixture(t)
	a := f.register(t, "wallet-1")
	f.badges.addBadge(1, 50, badge.Requirement{
		EventType:     progression.EventTokenBalanceCheck,
		Operation:     badge.OpGreaterOrEqual,
		RequiredCount: 100,
	})
	f.balances.tokenBalance = 150

	_, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.badges.awardCount(a.ID))

	// A second sync must not duplicate the award or touch its timestamp.
	awards, err := f.badges.ReadAwards(context.Background(), a.ID)
	require.NoError(t, err)
	firstAwardedAt := awards[0].CreatedAt

	_, err = f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.badges.awardCount(a.ID))

	awards, err = f.badges.ReadAwards(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, firstAwardedAt, awards[0].CreatedAt)
}

func TestSyncExactMatchRequiresExactValue(t *testing.T) {
	f := newSyncFixture(t)
	a := f.register(t, "wallet-1")
	f.badges.addBadge(1, 25, badge.Requirement{
		EventType:     progression.EventTokenBalanceCheck,
		Operation:     badge.OpEquals,
		RequiredCount: 100,
	})

	// Overshooting an exact-match requirement never awards.
	f.balances.tokenBalance = 150
	_, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.badges.awardCount(a.ID))

	f.balances.tokenBalance = 100
	_, err = f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.badges.awardCount(a.ID))
}

func TestSyncSourceFailureRecordsZeroAndContinues(t *testing.T) {
	f := newSyncFixture(t)
	f.register(t, "wallet-1")
	f.balances.tokenErr = shared.ErrBalanceSourceUnavailable
	f.balances.stakedBalance = 40

	result, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err, "a failed source must not surface to the caller")

	var tokenOutcome *SourceOutcome
	for i := range result.Outcomes {
		if result.Outcomes[i].EventType == progression.EventTokenBalanceCheck {
			tokenOutcome = &result.Outcomes[i]
		}
	}
	require.NotNil(t, tokenOutcome)
	assert.True(t, tokenOutcome.Failed())
	assert.Equal(t, 0, tokenOutcome.Progress)

	// The other sources still landed.
	assert.Equal(t, 0, f.recorder.progress("wallet-1", progression.EventTokenBalanceCheck))
	assert.Equal(t, 1, f.recorder.progress("wallet-1", progression.EventRegistrationCompleted))
	assert.Equal(t, 40, f.recorder.progress("wallet-1", progression.EventStakedBalanceCheck))
}

func TestSyncMissingTokenAddressRecordsZero(t *testing.T) {
	f := newSyncFixture(t)
	f.register(t, "wallet-1")
	f.handler.tokenAddress = ""
	f.balances.tokenBalance = 150

	result, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)

	for _, o := range result.Outcomes {
		if o.EventType == progression.EventTokenBalanceCheck {
			assert.True(t, o.Failed())
			assert.ErrorIs(t, o.FetchErr, shared.ErrConfigurationMissing)
			assert.Equal(t, 0, o.Progress)
		}
	}
	assert.Equal(t, 0, f.balances.tokenCalls, "upstream must not be called without a configured mint")
}

func TestSyncUnknownApplicantFails(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "never-registered"})
	assert.ErrorIs(t, err, shared.ErrApplicantNotFound)
}

func TestSyncEmptyPublicKeyRejected(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{})
	assert.Error(t, err)
}

func TestSyncPersistenceFailureAborts(t *testing.T) {
	f := newSyncFixture(t)
	f.register(t, "wallet-1")
	f.recorder.failOn = progression.EventRegistrationCompleted
	f.recorder.failErr = errors.New("connection reset")

	_, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	assert.Error(t, err)
}

func TestSyncRefreshLeaderboardRecomputesRanks(t *testing.T) {
	f := newSyncFixture(t)
	first := f.register(t, "wallet-1")
	second := f.register(t, "wallet-2")
	f.badges.addBadge(1, 50, badge.Requirement{
		EventType:     progression.EventTokenBalanceCheck,
		Operation:     badge.OpGreaterOrEqual,
		RequiredCount: 100,
	})

	// Only the second wallet clears the threshold.
	f.balances.tokenBalance = 150
	_, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{
		PublicKey:          "wallet-2",
		RefreshLeaderboard: true,
	})
	require.NoError(t, err)

	entry, err := f.leaderboard.GetUserEntry(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Rank)
	assert.Equal(t, 50, entry.TotalScore)

	firstEntry, err := f.leaderboard.GetUserEntry(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, firstEntry.Rank)

	assert.Equal(t, 1, f.cache.pageInvalidations)
}

func TestSyncWithoutRefreshLeavesRanksAlone(t *testing.T) {
	f := newSyncFixture(t)
	a := f.register(t, "wallet-1")
	f.badges.addBadge(1, 50, badge.Requirement{
		EventType:     progression.EventTokenBalanceCheck,
		Operation:     badge.OpGreaterOrEqual,
		RequiredCount: 100,
	})
	f.balances.tokenBalance = 150

	_, err := f.handler.Handle(context.Background(), SyncProgressionsCommand{PublicKey: "wallet-1"})
	require.NoError(t, err)

	// The cached entry still shows the pre-sync score; only a rebuild moves it.
	entry, err := f.leaderboard.GetUserEntry(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.TotalScore)
	assert.Equal(t, 0, f.leaderboard.rebuilds)

	realtime, err := f.leaderboard.GetRealtimeEntry(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, realtime.TotalScore)
}
