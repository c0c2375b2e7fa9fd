//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setup(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cartified"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	url, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "migrations are repeatable")
	return pool
}

func purchase(tokenID uint64) domain.Purchase {
	return domain.Purchase{
		ID:            uuid.New(),
		Buyer:         "0x00000000000000000000000000000000000000B1",
		TokenID:       tokenID,
		TxHash:        "0xfeed",
		ContentURL:    "https://gateway.pinata.cloud/ipfs/QmOrder",
		Total:         decimal.RequireFromString("134.98"),
		NativePrice:   decimal.RequireFromString("0.044993"),
		PaymentMethod: domain.PaymentETH,
		Items: []domain.Item{
			{ID: 1, Name: "Minimalist Leather Wallet", Price: "49.99", Quantity: 1},
			{ID: 2, Name: "Wireless Earbuds", Price: "84.99", Quantity: 1},
		},
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLedgerAndOutbox(t *testing.T) {
	pool := setup(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger := NewLedger(log, pool)
	store := NewOutboxStore(log, pool)

	p := purchase(7)
	require.NoError(t, ledger.RecordPurchase(ctx, p))
	dup := purchase(7)
	require.NoError(t, ledger.RecordPurchase(ctx, dup), "second record of a token is ignored")

	got, err := ledger.Purchases(ctx, "0x00000000000000000000000000000000000000b1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.Equal(t, uint64(7), got[0].TokenID)
	assert.True(t, p.Total.Equal(got[0].Total))
	require.Len(t, got[0].Items, 2)
	assert.Equal(t, "49.99", got[0].Items[0].Price.String())

	require.NoError(t, ledger.RecordDelivery(ctx, 7, "0xdead"))
	require.NoError(t, ledger.RecordBurn(ctx, 99, "0xbeef"), "tokens placed elsewhere still queue events")

	events, err := store.LockBatch(ctx, "relay-1", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventOrderPlaced, events[0].Type)
	assert.Equal(t, domain.EventDeliveryConfirmed, events[1].Type)
	assert.Equal(t, domain.EventOrderBurned, events[2].Type)
	assert.Equal(t, "7", events[0].AggregateID)

	var placed domain.OrderPlaced
	require.NoError(t, json.Unmarshal(events[0].Payload, &placed))
	assert.Equal(t, "0xfeed", placed.TxHash)

	again, err := store.LockBatch(ctx, "relay-2", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "leased rows are not handed to another relay")

	require.NoError(t, store.MarkSent(ctx, []int64{events[0].ID, events[1].ID}))
	require.NoError(t, store.MarkFailed(ctx, events[2].ID, "broker down"))

	retry, err := store.LockBatch(ctx, "relay-2", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, events[2].ID, retry[0].ID)
	assert.Equal(t, 1, retry[0].RetryCount)
}

func TestOutboxReclaimsExpiredLease(t *testing.T) {
	pool := setup(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, NewLedger(log, pool).RecordPurchase(ctx, purchase(1)))
	store := NewOutboxStore(log, pool)

	first, err := store.LockBatch(ctx, "relay-1", 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(300 * time.Millisecond)

	second, err := store.LockBatch(ctx, "relay-2", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}
