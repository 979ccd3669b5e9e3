package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
const schema = `
CREATE TABLE IF NOT EXISTS proposals (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    created_by TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    voting_start INTEGER NOT NULL,
    voting_end INTEGER NOT NULL,
    required_majority REAL NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    proposal_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    weight REAL NOT NULL,
    choice TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (proposal_id, voter_id),
    FOREIGN KEY (proposal_id) REFERENCES proposals(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_funds (
    group_id TEXT PRIMARY KEY,
    total_balance REAL NOT NULL DEFAULT 0,
    reserve_balance REAL NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fund_transactions (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount REAL NOT NULL,
    balance_before REAL NOT NULL,
    balance_after REAL NOT NULL,
    status TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    initiated_by TEXT NOT NULL,
    approved_by TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES group_funds(group_id)
);

CREATE INDEX IF NOT EXISTS idx_proposals_group_id ON proposals(group_id);
CREATE INDEX IF NOT EXISTS idx_proposals_status_voting_end ON proposals(status, voting_end);
CREATE INDEX IF NOT EXISTS idx_votes_proposal_id ON votes(proposal_id);
CREATE INDEX IF NOT EXISTS idx_fund_transactions_group_created ON fund_transactions(group_id, created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
