package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/journal"
)

func makeEvent(kind journal.Kind, amount uint64) journal.Event {
	return journal.Event{
		ID:      uuid.New(),
		At:      time.Now(),
		CurveID: uuid.New(),
		Kind:    kind,
		Actor:   account.Derive("trader"),
		Amount:  uint256.NewInt(amount),
	}
}

func TestMemory_RecentNewestFirst(t *testing.T) {
	ctx := t.Context()
	m := journal.NewMemory(8)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, m.Record(ctx, makeEvent(journal.KindBuy, i)))
	}

	recent := m.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(3), recent[0].Amount.Uint64())
	assert.Equal(t, uint64(1), recent[2].Amount.Uint64())
}

func TestMemory_RingEviction(t *testing.T) {
	ctx := t.Context()
	m := journal.NewMemory(4)

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, m.Record(ctx, makeEvent(journal.KindSell, i)))
	}

	assert.Equal(t, 4, m.Len())
	recent := m.Recent(4)
	require.Len(t, recent, 4)
	assert.Equal(t, uint64(10), recent[0].Amount.Uint64())
	assert.Equal(t, uint64(7), recent[3].Amount.Uint64())
}

func TestMemory_RecentEmpty(t *testing.T) {
	m := journal.NewMemory(4)
	assert.Nil(t, m.Recent(5))
	assert.Nil(t, m.Recent(0))
}

func TestTee_RecordsToAllAndReportsFirstError(t *testing.T) {
	ctx := t.Context()
	a := journal.NewMemory(4)
	b := journal.NewMemory(4)
	boom := errors.New("sink down")

	j := journal.Tee(a, failing{boom}, b)
	err := j.Record(ctx, makeEvent(journal.KindPay, 1))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.Len(), "failure in one sink must not skip the others")
	assert.Equal(t, 1, b.Len())
}

type failing struct{ err error }

func (f failing) Record(_ context.Context, _ journal.Event) error {
	return f.err
}
