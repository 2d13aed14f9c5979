package archive

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourname/clockwork/internal"
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(dsn string, logger internal.Logger) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("archive: failed to connect to postgres: %v", err)
		return nil, err
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStorage) SaveSession(ctx context.Context, session *internal.Session) error {
	laps, err := json.Marshal(session.Laps)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO sessions (id, created_at, start_time, end_time, session_name, description, lap_count, total_seconds, total_amount, laps) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID, session.CreatedAt, session.StartTime, session.EndTime, session.SessionName, session.Description, session.LapCount, session.TotalSeconds, session.TotalAmount, laps)
	if err != nil {
		p.logger.Errorf("archive: failed to insert session: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) ListSessions(ctx context.Context) ([]internal.Session, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, created_at, start_time, end_time, session_name, description, lap_count, total_seconds, total_amount, laps FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		p.logger.Errorf("archive: failed to query sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var sessions []internal.Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			p.logger.Errorf("archive: failed to scan session: %v", err)
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

func (p *PostgresStorage) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, created_at, start_time, end_time, session_name, description, lap_count, total_seconds, total_amount, laps FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row.Scan)
	if err != nil {
		p.logger.Errorf("archive: session not found: %v", err)
		return nil, err
	}
	return s, nil
}

func (p *PostgresStorage) RenameSession(ctx context.Context, id, name, description string) error {
	_, err := p.pool.Exec(ctx, `UPDATE sessions SET session_name = $2, description = $3 WHERE id = $1`, id, name, description)
	if err != nil {
		p.logger.Errorf("archive: failed to rename session: %v", err)
	}
	return err
}

func (p *PostgresStorage) DeleteSession(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		p.logger.Errorf("archive: failed to delete session: %v", err)
	}
	return err
}

func (p *PostgresStorage) ClearSessions(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		p.logger.Errorf("archive: failed to clear sessions: %v", err)
	}
	return err
}

func scanSession(scan func(dest ...any) error) (*internal.Session, error) {
	var s internal.Session
	var laps []byte
	if err := scan(&s.ID, &s.CreatedAt, &s.StartTime, &s.EndTime, &s.SessionName, &s.Description, &s.LapCount, &s.TotalSeconds, &s.TotalAmount, &laps); err != nil {
		return nil, err
	}
	if len(laps) > 0 {
		if err := json.Unmarshal(laps, &s.Laps); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// --- Compile-time assertions ---
var _ SessionRepository = (*PostgresStorage)(nil)
