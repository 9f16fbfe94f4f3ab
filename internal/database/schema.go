package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// schema is idempotent. users.location and sos_alerts.location are generated
// from the lat/lon columns so writers never touch PostGIS types directly.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,

	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY,
		email         text NOT NULL UNIQUE,
		name          text NOT NULL,
		role          text NOT NULL CHECK (role IN ('citizen', 'volunteer', 'admin')),
		push_token    text,
		latitude      double precision,
		longitude     double precision,
		location      geography(Point, 4326) GENERATED ALWAYS AS (
			CASE WHEN latitude IS NULL OR longitude IS NULL THEN NULL
			ELSE ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography END
		) STORED,
		token_version integer NOT NULL DEFAULT 0,
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS users_location_gist ON users USING GIST (location)`,
	`CREATE INDEX IF NOT EXISTS users_role_idx ON users (role)`,

	`CREATE TABLE IF NOT EXISTS sos_alerts (
		id                   uuid PRIMARY KEY,
		citizen_id           uuid NOT NULL REFERENCES users (id),
		citizen_name         text NOT NULL,
		latitude             double precision NOT NULL,
		longitude            double precision NOT NULL,
		location             geography(Point, 4326) GENERATED ALWAYS AS (
			ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)::geography
		) STORED,
		message              text,
		status               text NOT NULL,
		responded_volunteers jsonb NOT NULL DEFAULT '[]'::jsonb,
		version              integer NOT NULL DEFAULT 0,
		created_at           timestamptz NOT NULL DEFAULT now(),
		updated_at           timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS sos_alerts_citizen_idx ON sos_alerts (citizen_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS sos_alerts_responders_gin ON sos_alerts USING GIN (responded_volunteers jsonb_path_ops)`,
	`CREATE INDEX IF NOT EXISTS sos_alerts_location_gist ON sos_alerts USING GIST (location)`,
}

// EnsureSchema creates the PostGIS extension, tables and indexes if missing.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %d: %w", i+1, err)
		}
	}
	return nil
}
