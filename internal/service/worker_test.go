package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/ledger"
	"github.com/vanshika/icorewards/internal/logging"
	"github.com/vanshika/icorewards/internal/pricing"
)

func importUser(id, referrer string) ImportUser {
	return ImportUser{RegisterUserInput: RegisterUserInput{ID: id, Name: id}, ReferrerID: referrer}
}

func TestImportWaves(t *testing.T) {
	users := []ImportUser{
		importUser("G", "C"),
		importUser("C", "R"),
		importUser("R", ""),
		importUser("D", "R"),
		importUser("X", "OUTSIDE"),
	}
	waves := importWaves(users)
	require.Len(t, waves, 3)

	ids := func(wave []ImportUser) []string {
		out := make([]string, len(wave))
		for i, u := range wave {
			out[i] = u.ID
		}
		return out
	}
	assert.Equal(t, []string{"R", "X"}, ids(waves[0]))
	assert.Equal(t, []string{"C", "D"}, ids(waves[1]))
	assert.Equal(t, []string{"G"}, ids(waves[2]))
}

func TestImportWaves_Cycle(t *testing.T) {
	waves := importWaves([]ImportUser{importUser("A", "B"), importUser("B", "A")})
	total := 0
	for _, w := range waves {
		total += len(w)
	}
	assert.Equal(t, 2, total)
}

func TestBulkIngestor_IngestUsers(t *testing.T) {
	repo := newFakeRepo()
	referral := newReferralService(repo, nil, noActivityRules())
	ingestor := NewBulkIngestor(referral, nil, 3)

	err := ingestor.IngestUsers(context.Background(), []ImportUser{
		importUser("G1", "C1"),
		importUser("C1", "R"),
		importUser("C2", "R"),
		importUser("R", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"C1", "R"}, repo.user("G1").ReferralPath)
	assert.Equal(t, "R", repo.user("C2").ReferredBy)
	assert.Equal(t, []int{2, 1, 0, 0, 0, 0, 0, 0, 0}, repo.user("R").DownlineCounts())
}

func TestBulkIngestor_CollectsErrors(t *testing.T) {
	repo := newFakeRepo()
	referral := newReferralService(repo, nil, noActivityRules())
	ingestor := NewBulkIngestor(referral, nil, 2)

	err := ingestor.IngestUsers(context.Background(), []ImportUser{
		importUser("A", ""),
		importUser("B", "GHOST"),
		{RegisterUserInput: RegisterUserInput{ID: "C", ReferralCode: "ICONOPE"}},
	})
	require.Error(t, err)

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Len(t, taskErr.Errors, 2)
	assert.NotEmpty(t, repo.user("A").ReferralCode)
}

func TestBulkIngestor_IngestPurchases(t *testing.T) {
	repo := newFakeRepo()
	seedChain(repo, 0, 1)
	store := ledger.NewMemoryStore()
	referral := newReferralService(repo, nil, noActivityRules())
	purchases := NewPurchaseService(store, pricing.NewService(store, logging.Discard(), "ICOX", dec("10")), referral, logging.Discard())
	ingestor := NewBulkIngestor(referral, purchases, 4)

	err := ingestor.IngestPurchases(context.Background(), []PurchaseInput{
		{UserID: "B", SourceType: domain.SourceICO, SourceID: "p1", FiatAmount: dec("100")},
		{UserID: "B", SourceType: domain.SourceICO, SourceID: "p2", FiatAmount: dec("100")},
		{UserID: "B", SourceType: domain.SourceOrder, SourceID: "o1", FiatAmount: dec("100")},
		{UserID: "B", SourceType: domain.SourceICO, SourceID: "p1", FiatAmount: dec("100")},
	})
	require.NoError(t, err)
	assert.True(t, repo.user("P0").ReferralWalletBalance.Equal(dec("15")))
	assert.True(t, repo.user("P1").ReferralWalletBalance.Equal(dec("45")))
}

func TestBulkIngestor_PurchasesNotConfigured(t *testing.T) {
	ingestor := NewBulkIngestor(newReferralService(newFakeRepo(), nil, noActivityRules()), nil, 0)
	err := ingestor.IngestPurchases(context.Background(), []PurchaseInput{{UserID: "B"}})
	require.Error(t, err)
}
