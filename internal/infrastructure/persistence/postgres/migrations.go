package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE APPLICANTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create applicants table
-- Version: 001

CREATE TABLE IF NOT EXISTS applicants (
    id BIGSERIAL PRIMARY KEY,
    public_key VARCHAR(64) NOT NULL UNIQUE,
    email VARCHAR(255),
    referral_code VARCHAR(6) NOT NULL UNIQUE,
    referred_by_id BIGINT REFERENCES applicants(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_empty_public_key CHECK (public_key <> '')
);

CREATE INDEX IF NOT EXISTS idx_applicants_public_key ON applicants(public_key);
CREATE INDEX IF NOT EXISTS idx_applicants_referral_code ON applicants(referral_code);
CREATE INDEX IF NOT EXISTS idx_applicants_referred_by_id ON applicants(referred_by_id)
    WHERE referred_by_id IS NOT NULL;
`

const migration001Down = `
DROP TABLE IF EXISTS applicants;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PROGRESSION EVENT TYPES AND COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Progression event types and per-applicant counters
-- Version: 002

-- The identifiers are a wire contract with clients; never reassign them.
CREATE TABLE IF NOT EXISTS progression_event_types (
    id INTEGER PRIMARY KEY,
    name VARCHAR(50) NOT NULL UNIQUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

INSERT INTO progression_event_types (id, name) VALUES
    (1, 'registration_completed'),
    (2, 'token_balance_check'),
    (3, 'mining_season'),
    (4, 'level_up'),
    (5, 'staked_balance_check'),
    (6, 'referral_created')
ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS applicant_progressions (
    id BIGSERIAL PRIMARY KEY,
    applicant_id BIGINT NOT NULL REFERENCES applicants(id) ON DELETE CASCADE,
    event_type_id INTEGER NOT NULL REFERENCES progression_event_types(id),
    progress INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_applicant_event UNIQUE (applicant_id, event_type_id)
);

CREATE INDEX IF NOT EXISTS idx_progressions_applicant_id ON applicant_progressions(applicant_id);
`

const migration002Down = `
DROP TABLE IF EXISTS applicant_progressions;
DROP TABLE IF EXISTS progression_event_types;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: BADGE CATALOGUE AND AWARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Badge groups, badges, requirements, and awards
-- Version: 003

CREATE TABLE IF NOT EXISTS badge_groups (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS badges (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    score INTEGER NOT NULL DEFAULT 0,
    group_id BIGINT REFERENCES badge_groups(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_score CHECK (score >= 0)
);

CREATE TABLE IF NOT EXISTS badge_requirements (
    id BIGSERIAL PRIMARY KEY,
    badge_id BIGINT NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    event_type_id INTEGER NOT NULL REFERENCES progression_event_types(id),
    operation VARCHAR(10) NOT NULL,
    required_count INTEGER NOT NULL,

    CONSTRAINT valid_operation CHECK (operation IN ('eq', 'gte'))
);

CREATE INDEX IF NOT EXISTS idx_requirements_event_type ON badge_requirements(event_type_id);

-- Awards are append-only; the unique pair is the idempotency guarantee.
CREATE TABLE IF NOT EXISTS applicant_badges (
    id BIGSERIAL PRIMARY KEY,
    applicant_id BIGINT NOT NULL REFERENCES applicants(id) ON DELETE CASCADE,
    badge_id BIGINT NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_applicant_badge UNIQUE (applicant_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_applicant_badges_applicant_id ON applicant_badges(applicant_id);
`

const migration003Down = `
DROP TABLE IF EXISTS applicant_badges;
DROP TABLE IF EXISTS badge_requirements;
DROP TABLE IF EXISTS badges;
DROP TABLE IF EXISTS badge_groups;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: LEADERBOARD ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Cached leaderboard standings
-- Version: 004

CREATE TABLE IF NOT EXISTS leaderboard_entries (
    id BIGSERIAL PRIMARY KEY,
    applicant_id BIGINT NOT NULL UNIQUE REFERENCES applicants(id) ON DELETE CASCADE,
    total_score INTEGER NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,
    previous_rank INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON leaderboard_entries(rank);
CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard_entries(total_score DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS leaderboard_entries;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_applicants",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_progressions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_badges",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_leaderboard",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}
