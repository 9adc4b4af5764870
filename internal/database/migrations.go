package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		kind VARCHAR(20) NOT NULL DEFAULT 'external',
		provider VARCHAR(50),
		external_id VARCHAR(255),
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255),
		name VARCHAR(255) NOT NULL DEFAULT '',
		avatar_url VARCHAR(500),
		role VARCHAR(50) NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		wallet_address VARCHAR(44),
		last_seen_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_external_id_key UNIQUE (external_id),
		CONSTRAINT users_role_check CHECK (role IN ('user', 'token_issuer', 'admin')),
		CONSTRAINT users_kind_external_id_check CHECK (
			(kind = 'external' AND external_id IS NOT NULL)
			OR (kind = 'local_admin' AND external_id IS NULL)
		),
		CONSTRAINT users_external_password_check CHECK (
			kind = 'local_admin' OR password_hash IS NULL
		)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_wallet_address ON users(wallet_address)`,

	`CREATE TABLE IF NOT EXISTS tokens (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(100) NOT NULL,
		symbol VARCHAR(10) NOT NULL,
		total_supply BIGINT NOT NULL DEFAULT 0,
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CONSTRAINT tokens_total_supply_check CHECK (total_supply >= 0)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tokens_owner_id ON tokens(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_symbol ON tokens(symbol)`,

	`CREATE TABLE IF NOT EXISTS token_permissions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_id UUID NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
		can_manage BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CONSTRAINT token_permissions_user_token_key UNIQUE (user_id, token_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_token_permissions_token_id ON token_permissions(token_id)`,

	`CREATE TABLE IF NOT EXISTS token_transactions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		token_id UUID NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
		from_address VARCHAR(44) NOT NULL,
		from_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
		to_address VARCHAR(44) NOT NULL,
		to_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_token_transactions_token_id ON token_transactions(token_id)`,
	`CREATE INDEX IF NOT EXISTS idx_token_transactions_timestamp ON token_transactions(timestamp)`,

	`CREATE TABLE IF NOT EXISTS supply_adjustments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		token_id UUID NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
		actor_id UUID NOT NULL REFERENCES users(id),
		action VARCHAR(10) NOT NULL CHECK (action IN ('mint', 'burn')),
		amount BIGINT NOT NULL CHECK (amount > 0),
		total_supply_after BIGINT NOT NULL CHECK (total_supply_after >= 0),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_supply_adjustments_token_id ON supply_adjustments(token_id)`,

	`CREATE TABLE IF NOT EXISTS token_favorites (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_id UUID NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(user_id, token_id)
	)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(255) NOT NULL UNIQUE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
