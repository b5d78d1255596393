package repo

import (
	"HealthBot/model"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

func NewPostgresProfileStore(pool *pgxpool.Pool) *PostgresProfileStore {
	return &PostgresProfileStore{pool: pool}
}

func (r *PostgresProfileStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			telegram_id BIGINT NOT NULL UNIQUE,
			account_id TEXT NOT NULL DEFAULT '',
			variant TEXT NOT NULL,
			city TEXT NOT NULL,
			sex TEXT NOT NULL,
			age INT NOT NULL,
			marital_status TEXT NOT NULL DEFAULT '',
			has_family BOOLEAN NOT NULL DEFAULT FALSE,
			phone_number TEXT NOT NULL DEFAULT '',
			dob DATE,
			existing_conditions TEXT[] NOT NULL DEFAULT '{}',
			onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_phone ON profiles(phone_number) WHERE phone_number <> '';`,
	}

	for _, q := range queries {
		if _, err := r.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (r *PostgresProfileStore) CreateProfile(ctx context.Context, p model.Profile) (string, error) {
	const query = `
	INSERT INTO profiles (
		id, telegram_id, account_id, variant, city, sex, age, marital_status,
		has_family, phone_number, dob, existing_conditions, onboarding_completed,
		created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11::text, '')::date, $12, $13, $14, $15)
	ON CONFLICT (telegram_id) DO NOTHING
	RETURNING id::text;
	`
	conditions := p.ExistingConditions
	if conditions == nil {
		conditions = []string{}
	}

	var id string
	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.TelegramID,
		p.AccountID,
		string(p.Variant),
		p.City,
		p.Sex,
		p.Age,
		p.MaritalStatus,
		p.HasFamily,
		p.PhoneNumber,
		p.DOB,
		conditions,
		p.OnboardingCompleted,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrProfileExists
	}
	if err != nil {
		return "", fmt.Errorf("insert profile: %w", err)
	}
	return id, nil
}

func (r *PostgresProfileStore) FindProfile(ctx context.Context, telegramID int64) (model.Profile, bool, error) {
	const query = `
	SELECT id::text, telegram_id, account_id, variant, city, sex, age, marital_status,
		has_family, phone_number, COALESCE(to_char(dob, 'YYYY-MM-DD'), ''),
		existing_conditions, onboarding_completed, created_at, updated_at
	FROM profiles
	WHERE telegram_id = $1;
	`
	var (
		out     model.Profile
		variant string
	)
	if err := r.pool.QueryRow(ctx, query, telegramID).Scan(
		&out.ID,
		&out.TelegramID,
		&out.AccountID,
		&variant,
		&out.City,
		&out.Sex,
		&out.Age,
		&out.MaritalStatus,
		&out.HasFamily,
		&out.PhoneNumber,
		&out.DOB,
		&out.ExistingConditions,
		&out.OnboardingCompleted,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, false, nil
		}
		return model.Profile{}, false, err
	}
	out.Variant = model.Variant(variant)
	return out, true, nil
}
