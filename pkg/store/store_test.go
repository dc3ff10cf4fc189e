package store_test

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/bonding"
	"github.com/curvelabs/bondcurve/pkg/rewards"
	"github.com/curvelabs/bondcurve/pkg/store"
	storetesting "github.com/curvelabs/bondcurve/pkg/store/testing"
	bondtesting "github.com/curvelabs/bondcurve/utils/pkg/testing"
)

var sharedDB *storetesting.DB

func TestMain(m *testing.M) {
	flag.Parse()
	log := bondtesting.NewLogger()

	if !testing.Short() {
		var err error
		sharedDB, err = storetesting.NewDB(context.Background(), log, nil)
		if err != nil {
			log.Error("failed to create shared DB", "error", err)
			os.Exit(1)
		}
	}

	code := m.Run()
	if sharedDB != nil {
		sharedDB.Close()
	}
	os.Exit(code)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	if sharedDB == nil {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	log := bondtesting.NewLogger()
	pool := storetesting.NewTestPool(t, log, sharedDB)
	s, err := store.New(store.Config{Logger: log, Pool: pool})
	require.NoError(t, err)
	return s
}

func sampleSnapshot() bonding.Snapshot {
	return bonding.Snapshot{
		ID:                uuid.New(),
		Owner:             account.Derive("owner"),
		Beneficiary:       account.Derive("beneficiary"),
		ReservePercentage: 90,
		SplitOnPay:        10,
		PreMint:           uint256.NewInt(5000),
		MilestoneCap:      uint256.MustFromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639935"),
		ReserveBalance:    uint256.NewInt(123456),
		CurveBought:       uint256.NewInt(7000),
		CurveSold:         uint256.NewInt(2000),
		Paused:            true,
		Rewards: &rewards.Snapshot{
			TotalEligible: uint256.NewInt(3_000_000_000),
			PerUnit:       uint256.NewInt(450),
			Remainder:     uint256.NewInt(9),
			Participants: []rewards.ParticipantSnapshot{
				{
					Account: account.Derive("alice"),
					Stake:   uint256.NewInt(2_000_000_000),
					Credit:  uint256.NewInt(450),
					Pending: uint256.NewInt(900),
				},
				{
					Account: account.Derive("bob"),
					Stake:   uint256.NewInt(1_000_000_000),
					Credit:  uint256.NewInt(0),
					Pending: uint256.NewInt(0),
				},
			},
		},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := t.Context()
	s := newStore(t)
	snap := sampleSnapshot()

	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx, snap.ID)
	require.NoError(t, err)

	assert.Equal(t, snap.Owner, got.Owner)
	assert.Equal(t, snap.Beneficiary, got.Beneficiary)
	assert.Equal(t, snap.ReservePercentage, got.ReservePercentage)
	assert.Equal(t, snap.SplitOnPay, got.SplitOnPay)
	assert.Equal(t, snap.PreMint.Dec(), got.PreMint.Dec())
	require.NotNil(t, got.MilestoneCap)
	assert.Equal(t, snap.MilestoneCap.Dec(), got.MilestoneCap.Dec(), "the maximum 256-bit value survives NUMERIC(78,0)")
	assert.Equal(t, snap.ReserveBalance.Dec(), got.ReserveBalance.Dec())
	assert.Equal(t, snap.CurveBought.Dec(), got.CurveBought.Dec())
	assert.Equal(t, snap.CurveSold.Dec(), got.CurveSold.Dec())
	assert.True(t, got.Paused)

	require.NotNil(t, got.Rewards)
	assert.Equal(t, snap.Rewards.TotalEligible.Dec(), got.Rewards.TotalEligible.Dec())
	assert.Equal(t, snap.Rewards.PerUnit.Dec(), got.Rewards.PerUnit.Dec())
	assert.Equal(t, snap.Rewards.Remainder.Dec(), got.Rewards.Remainder.Dec())
	require.Len(t, got.Rewards.Participants, 2)
	assert.Equal(t, snap.Rewards.Participants[0].Account, got.Rewards.Participants[0].Account)
	assert.Equal(t, snap.Rewards.Participants[0].Pending.Dec(), got.Rewards.Participants[0].Pending.Dec())
}

func TestStore_SaveUpsertsAndReplacesStakes(t *testing.T) {
	ctx := t.Context()
	s := newStore(t)
	snap := sampleSnapshot()
	require.NoError(t, s.Save(ctx, snap))

	snap.Paused = false
	snap.MilestoneCap = nil
	snap.ReserveBalance = uint256.NewInt(999)
	snap.Rewards.Participants = snap.Rewards.Participants[:1]
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, got.Paused)
	assert.Nil(t, got.MilestoneCap, "a cleared cap round-trips as NULL")
	assert.Equal(t, "999", got.ReserveBalance.Dec())
	assert.Len(t, got.Rewards.Participants, 1, "stake rows are replaced, not accumulated")
}

func TestStore_LoadMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Load(t.Context(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := t.Context()
	s := newStore(t)

	a := sampleSnapshot()
	b := sampleSnapshot()
	require.NoError(t, s.Save(ctx, a))
	require.NoError(t, s.Save(ctx, b))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Load(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, a.ID), store.ErrNotFound)
}
