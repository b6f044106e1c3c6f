package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

// PostgresRepo grava a trilha de auditoria dos jogos na tabela game_events
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// InsertEvent é idempotente por event_id (reentrega do Kafka não duplica)
func (r *PostgresRepo) InsertEvent(ctx context.Context, e events.GameEvent, raw []byte) error {
	const q = `
		INSERT INTO game_events
		  (event_id, game_id, event_type, caller, payload, occurred_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (event_id) DO NOTHING
	`
	if raw == nil {
		var err error
		if raw, err = json.Marshal(e); err != nil {
			return err
		}
	}
	_, err := r.DB.ExecContext(ctx, q,
		e.EventID, e.GameID, e.Type, e.Caller, string(raw), time.UnixMilli(e.TsUnixMs).UTC(),
	)
	return err
}

// History retorna os eventos de um jogo em ordem
func (r *PostgresRepo) History(ctx context.Context, gameID string) ([]events.GameEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT payload FROM game_events WHERE game_id=$1 ORDER BY occurred_at, event_id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.GameEvent
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		var e events.GameEvent
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
