// Package postgres persists the exchange event journal.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/storage"
	"github.com/R3E-Network/nft_exchange/internal/app/system"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

// Journal records committed events in the exchange_events table.
type Journal struct {
	db     *sqlx.DB
	ownsDB bool
	log    *logger.Logger
}

var (
	_ storage.EventLog = (*Journal)(nil)
	_ system.Service   = (*Journal)(nil)
)

// New wraps an open handle. The caller keeps ownership of db.
func New(db *sqlx.DB, log *logger.Logger) *Journal {
	if log == nil {
		log = logger.NewDefault("postgres-journal")
	}
	return &Journal{db: db, log: log}
}

// Open connects to dsn. The journal closes the connection on Stop.
func Open(ctx context.Context, dsn string, log *logger.Logger) (*Journal, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect journal database: %w", err)
	}
	j := New(db, log)
	j.ownsDB = true
	return j, nil
}

func (j *Journal) Name() string { return "postgres-journal" }

// Start applies the schema.
func (j *Journal) Start(ctx context.Context) error {
	if err := Apply(ctx, j.db.DB); err != nil {
		return err
	}
	j.log.Info("event journal schema ready")
	return nil
}

func (j *Journal) Stop(ctx context.Context) error {
	if !j.ownsDB {
		return nil
	}
	return j.db.Close()
}

type eventRow struct {
	ID           string    `db:"id"`
	Type         string    `db:"type"`
	Collection   string    `db:"collection"`
	AssetID      int64     `db:"asset_id"`
	Actor        string    `db:"actor"`
	Counterparty string    `db:"counterparty"`
	Denomination string    `db:"denomination"`
	Amount       string    `db:"amount"`
	Attributes   []byte    `db:"attributes"`
	OccurredAt   time.Time `db:"occurred_at"`
}

func toRow(ev events.Event) (eventRow, error) {
	if ev.AssetID > math.MaxInt64 {
		return eventRow{}, fmt.Errorf("asset id %d out of range", ev.AssetID)
	}
	attrs := ev.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return eventRow{}, err
	}
	return eventRow{
		ID:           ev.ID,
		Type:         string(ev.Type),
		Collection:   ev.Collection.String(),
		AssetID:      int64(ev.AssetID),
		Actor:        ev.Actor.String(),
		Counterparty: ev.Counterparty.String(),
		Denomination: ev.Denomination.String(),
		Amount:       ev.Amount,
		Attributes:   attrsJSON,
		OccurredAt:   ev.OccurredAt.UTC(),
	}, nil
}

func (r eventRow) event() (events.Event, error) {
	ev := events.Event{
		ID:           r.ID,
		Type:         events.Type(r.Type),
		Collection:   chain.Address(r.Collection),
		AssetID:      uint64(r.AssetID),
		Actor:        chain.Address(r.Actor),
		Counterparty: chain.Address(r.Counterparty),
		Denomination: chain.Address(r.Denomination),
		Amount:       r.Amount,
		OccurredAt:   r.OccurredAt.UTC(),
	}
	if len(r.Attributes) > 0 {
		if err := json.Unmarshal(r.Attributes, &ev.Attributes); err != nil {
			return events.Event{}, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
		}
		if len(ev.Attributes) == 0 {
			ev.Attributes = nil
		}
	}
	return ev, nil
}

// Record inserts ev.
func (j *Journal) Record(ctx context.Context, ev events.Event) error {
	row, err := toRow(ev)
	if err != nil {
		return err
	}
	_, err = j.db.NamedExecContext(ctx, `
		INSERT INTO exchange_events (id, type, collection, asset_id, actor, counterparty, denomination, amount, attributes, occurred_at)
		VALUES (:id, :type, :collection, :asset_id, :actor, :counterparty, :denomination, :amount, :attributes, :occurred_at)
	`, row)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// List returns matching events oldest first. With a Limit the newest Limit
// matches are returned.
func (j *Journal) List(ctx context.Context, f events.Filter) ([]events.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Collection != "" {
		where = append(where, "collection = ?")
		args = append(args, f.Collection.String())
	}
	if f.AssetID != 0 {
		where = append(where, "asset_id = ?")
		args = append(args, int64(f.AssetID))
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}

	query := `SELECT id, type, collection, asset_id, actor, counterparty, denomination, amount, attributes, occurred_at FROM exchange_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Limit > 0 {
		query += " ORDER BY seq DESC LIMIT ?"
		args = append(args, f.Limit)
	} else {
		query += " ORDER BY seq ASC"
	}

	var rows []eventRow
	if err := j.db.SelectContext(ctx, &rows, j.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if f.Limit > 0 {
		for i, k := 0, len(rows)-1; i < k; i, k = i+1, k-1 {
			rows[i], rows[k] = rows[k], rows[i]
		}
	}

	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.event()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
