package journal_test

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/clickhouse"
	clickhousetesting "github.com/curvelabs/bondcurve/pkg/clickhouse/testing"
	"github.com/curvelabs/bondcurve/pkg/journal"
	bondtesting "github.com/curvelabs/bondcurve/utils/pkg/testing"
)

var sharedDB *clickhousetesting.DB

func TestMain(m *testing.M) {
	flag.Parse()
	log := bondtesting.NewLogger()

	if !testing.Short() {
		var err error
		sharedDB, err = clickhousetesting.NewDB(context.Background(), log, nil)
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

func newSink(t *testing.T) (*journal.ClickHouse, clickhouse.Client) {
	t.Helper()
	if sharedDB == nil {
		t.Skip("skipping ClickHouse integration test in short mode")
	}
	client := clickhousetesting.NewTestClient(t, sharedDB)
	sink, err := journal.NewClickHouse(journal.ClickHouseConfig{
		Logger: bondtesting.NewLogger(),
		Client: client,
	})
	require.NoError(t, err)
	require.NoError(t, sink.EnsureSchema(t.Context()))
	return sink, client
}

func TestClickHouse_RecordAndReadBack(t *testing.T) {
	sink, client := newSink(t)
	ctx := clickhouse.ContextWithSyncInsert(t.Context())

	curveID := uuid.New()
	ev := journal.Event{
		ID:      uuid.New(),
		At:      time.Now(),
		CurveID: curveID,
		Kind:    journal.KindBuy,
		Actor:   account.Derive("buyer"),
		Amount:  uint256.NewInt(42),
		Price:   uint256.MustFromDecimal("123456789012345678901234567890"),
		Reserve: uint256.NewInt(1000),
	}
	require.NoError(t, sink.Record(ctx, ev))

	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.Query(ctx,
		"SELECT id, kind, actor, amount, price, reserve, beneficiary_amount FROM curve_events WHERE curve_id = ?", curveID)
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next(), "expected one event row")
	var (
		id, kind, actor, amount, price, reserve, beneficiary string
	)
	require.NoError(t, rows.Scan(&id, &kind, &actor, &amount, &price, &reserve, &beneficiary))

	assert.Equal(t, ev.ID.String(), id)
	assert.Equal(t, string(journal.KindBuy), kind)
	assert.Equal(t, ev.Actor.String(), actor)
	assert.Equal(t, "42", amount)
	assert.Equal(t, "123456789012345678901234567890", price, "amounts above 64 bits survive the round trip")
	assert.Equal(t, "1000", reserve)
	assert.Equal(t, "", beneficiary, "unset amounts stay empty")
	assert.False(t, rows.Next())
}

func TestClickHouse_EnsureSchemaIdempotent(t *testing.T) {
	sink, _ := newSink(t)
	require.NoError(t, sink.EnsureSchema(t.Context()))
	require.NoError(t, sink.EnsureSchema(t.Context()))
}
