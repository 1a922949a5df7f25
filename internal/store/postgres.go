package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iwvelando/mro-estimator/internal/lead"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	first_name   TEXT NOT NULL,
	last_name    TEXT NOT NULL,
	email        TEXT NOT NULL UNIQUE,
	company      TEXT NOT NULL,
	job_function TEXT NOT NULL,
	crm_status   TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS calculations (
	id             TEXT PRIMARY KEY,
	lead_id        TEXT NOT NULL REFERENCES leads(id),
	schema_version INTEGER NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS calculations_lead_id_idx ON calculations (lead_id);
`

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL, verifies the connection and ensures
// the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres store requires a database URL")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) UpsertLead(ctx context.Context, l lead.Lead) (lead.Lead, bool, error) {
	var stored lead.Lead
	err := p.pool.QueryRow(ctx, `
		INSERT INTO leads (id, first_name, last_name, email, company, job_function, crm_status, created_at)
		VALUES ($1, $2, $3, lower($4), $5, $6, $7, $8)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, first_name, last_name, email, company, job_function, crm_status, created_at
	`, l.ID, l.FirstName, l.LastName, l.Email, l.Company, l.JobFunction, l.CRMStatus, l.CreatedAt,
	).Scan(&stored.ID, &stored.FirstName, &stored.LastName, &stored.Email, &stored.Company,
		&stored.JobFunction, &stored.CRMStatus, &stored.CreatedAt)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return lead.Lead{}, false, err
	}

	// The email already exists: reuse that lead.
	stored, err = p.scanLead(p.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, company, job_function, crm_status, created_at
		FROM leads WHERE email = lower($1)
	`, l.Email))
	if err != nil {
		return lead.Lead{}, false, err
	}
	return stored, false, nil
}

func (p *Postgres) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	return p.scanLead(p.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, company, job_function, crm_status, created_at
		FROM leads WHERE id = $1
	`, id))
}

func (p *Postgres) scanLead(row pgx.Row) (lead.Lead, error) {
	var l lead.Lead
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Company, &l.JobFunction, &l.CRMStatus, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.Lead{}, ErrNotFound
	}
	if err != nil {
		return lead.Lead{}, err
	}
	return l, nil
}

func (p *Postgres) SetCRMStatus(ctx context.Context, id, status string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE leads SET crm_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateCalculation(ctx context.Context, c lead.Calculation) (lead.Calculation, error) {
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return lead.Calculation{}, fmt.Errorf("failed to encode calculation: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO calculations (id, lead_id, schema_version, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.LeadID, c.Payload.SchemaVersion, payload, c.CreatedAt)
	if err != nil {
		return lead.Calculation{}, err
	}
	return c, nil
}

func (p *Postgres) CalculationsByLead(ctx context.Context, leadID string) ([]lead.Calculation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, lead_id, payload, created_at
		FROM calculations
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]lead.Calculation, 0)
	for rows.Next() {
		var (
			c   lead.Calculation
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.LeadID, &raw, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &c.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode calculation %s: %w", c.ID, err)
		}
		items = append(items, c)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
