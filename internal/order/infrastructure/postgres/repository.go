package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/dmehra2102/Cartified/pkg/outbox"
	"github.com/dmehra2102/Cartified/pkg/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

const (
	aggregatePurchase = "purchase"

	statusPlaced    = "placed"
	statusDelivered = "delivered"
	statusBurned    = "burned"
)

// Ledger records purchases and queues their events in the same transaction.
type Ledger struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool) *Ledger {
	return &Ledger{log: log, pool: pool, now: time.Now}
}

func (l *Ledger) RecordPurchase(ctx context.Context, p domain.Purchase) error {
	event, err := outbox.NewEvent(aggregatePurchase, tokenKey(p.TokenID), domain.EventOrderPlaced, domain.OrderPlaced{
		PurchaseID:    p.ID.String(),
		Buyer:         p.Buyer,
		TokenID:       p.TokenID,
		TxHash:        p.TxHash,
		ContentURL:    p.ContentURL,
		TotalPrice:    p.Total.StringFixed(2),
		NativePrice:   p.NativePrice.String(),
		PaymentMethod: p.PaymentMethod,
	}, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}

	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `INSERT INTO purchases (id, buyer, token_id, tx_hash, content_url, total, native_price, payment_method, status, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
				ON CONFLICT (token_id) DO NOTHING`,
		p.ID, p.Buyer, int64(p.TokenID), p.TxHash, p.ContentURL, p.Total, p.NativePrice, string(p.PaymentMethod), statusPlaced, p.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		l.log.Warn("purchase already recorded", "token_id", p.TokenID)
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range p.Items {
		batch.Queue(`INSERT INTO purchase_items (purchase_id, product_id, name, price, quantity)
            VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (purchase_id, product_id) DO UPDATE SET quantity=$5, price=$4`,
			p.ID, item.ID, item.Name, item.Price.String(), item.Quantity)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if err = enqueue(ctx, tx, event); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *Ledger) RecordDelivery(ctx context.Context, tokenID uint64, txHash string) error {
	event, err := outbox.NewEvent(aggregatePurchase, tokenKey(tokenID), domain.EventDeliveryConfirmed,
		domain.DeliveryConfirmed{TokenID: tokenID, TxHash: txHash}, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return l.transition(ctx, tokenID, statusDelivered, event)
}

func (l *Ledger) RecordBurn(ctx context.Context, tokenID uint64, txHash string) error {
	event, err := outbox.NewEvent(aggregatePurchase, tokenKey(tokenID), domain.EventOrderBurned,
		domain.OrderBurned{TokenID: tokenID, TxHash: txHash}, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return l.transition(ctx, tokenID, statusBurned, event)
}

// transition updates the purchase row when this instance placed it. The event
// is queued either way since the chain is authoritative.
func (l *Ledger) transition(ctx context.Context, tokenID uint64, status string, event outbox.Event) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE purchases SET status=$2, updated_at=$3 WHERE token_id=$1 AND status <> 'burned'`,
		int64(tokenID), status, l.now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		l.log.Debug("no local purchase for token", "token_id", tokenID, "status", status)
	}

	if err = enqueue(ctx, tx, event); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func enqueue(ctx context.Context, tx pgx.Tx, e outbox.Event) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.AggregateType, e.AggregateID, e.Type, e.Payload, e.Headers, e.Traceparent, string(e.Status))
	return err
}

func tokenKey(tokenID uint64) string {
	return strconv.FormatUint(tokenID, 10)
}

// Purchases lists the locally recorded purchases of buyer, newest first.
func (l *Ledger) Purchases(ctx context.Context, buyer string) ([]domain.Purchase, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, buyer, token_id, tx_hash, content_url, total, native_price, payment_method, created_at
		FROM purchases WHERE lower(buyer) = lower($1) ORDER BY created_at DESC`, buyer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		var tokenID int64
		var method string
		if err := rows.Scan(&p.ID, &p.Buyer, &tokenID, &p.TxHash, &p.ContentURL, &p.Total, &p.NativePrice, &method, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.TokenID = uint64(tokenID)
		p.PaymentMethod = domain.PaymentMethod(method)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := l.items(ctx, out[i].ID.String())
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (l *Ledger) items(ctx context.Context, purchaseID string) ([]domain.Item, error) {
	rows, err := l.pool.Query(ctx, `SELECT product_id, name, price::text, quantity FROM purchase_items WHERE purchase_id=$1 ORDER BY product_id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		var price string
		if err := rows.Scan(&it.ID, &it.Name, &price, &it.Quantity); err != nil {
			return nil, err
		}
		it.Price = json.Number(price)
		items = append(items, it)
	}
	return items, rows.Err()
}

type OutboxStore struct {
	log        *slog.Logger
	pool       *pgxpool.Pool
	maxRetries int
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool, maxRetries: outbox.DefaultMaxRetries}
}

// LockBatch claims pending rows and rows whose lease has expired.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, retry_count
		FROM outbox
		WHERE status = 'pending' OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &event.Traceparent, &event.CreatedAt, &event.RetryCount); err != nil {
			return nil, err
		}
		event.Headers = headers
		event.Status = outbox.StatusInProgress
		event.RelayID = relayID
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + make_interval(secs => $2) WHERE id = ANY($3)`, relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

// MarkFailed returns the row to pending until it has failed maxRetries times.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox
		SET status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    last_error=$2, retry_count=retry_count+1, lease_until=NULL
		WHERE id=$1`, id, errMsg, s.maxRetries)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + make_interval(secs => $1) WHERE id = ANY($2) AND relay_id=$3`, lease.Seconds(), ids, relayID)
	return err
}
