package store

import (
	"database/sql"
	"fmt"
)

// Schema is applied on every Open. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
	tenant_id           TEXT PRIMARY KEY,
	email               TEXT NOT NULL DEFAULT '',
	industry            TEXT NOT NULL DEFAULT '',
	location            TEXT NOT NULL DEFAULT '',
	campaign_parameters TEXT NOT NULL DEFAULT '{}',
	created_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS industry_data (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source      TEXT NOT NULL,
	title       TEXT,
	content     TEXT NOT NULL DEFAULT '',
	pain_points TEXT NOT NULL DEFAULT '',
	tags        TEXT, -- JSON array of strings, NULL when untagged
	crawled_at  TEXT, -- ISO-8601
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name TEXT NOT NULL,
	website      TEXT,
	contact_info TEXT,
	details      TEXT,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_created ON leads(created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS solutions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id       INTEGER NOT NULL REFERENCES leads(id),
	solution_text TEXT NOT NULL,
	generated_at  INTEGER NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending','sent','reviewed','approved','rejected'))
);
CREATE INDEX IF NOT EXISTS idx_solutions_lead ON solutions(lead_id);

CREATE TABLE IF NOT EXISTS outreach_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id      INTEGER NOT NULL REFERENCES leads(id),
	message_sent TEXT NOT NULL,
	sent_at      INTEGER NOT NULL,
	response     TEXT,
	updated_at   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_outreach_lead ON outreach_log(lead_id);

CREATE TABLE IF NOT EXISTS ingest_log (
	id          TEXT PRIMARY KEY,
	batch_id    TEXT NOT NULL,
	url         TEXT NOT NULL,
	status      TEXT NOT NULL,
	entry_id    INTEGER,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_batch ON ingest_log(batch_id);
CREATE INDEX IF NOT EXISTS idx_ingest_created ON ingest_log(created_at DESC);
`

// Tenant files created before industry_data carried title, tags and
// crawled_at get those columns added in place.
var columnMigrations = []struct {
	table, column, decl string
}{
	{"industry_data", "title", "TEXT"},
	{"industry_data", "tags", "TEXT"},
	{"industry_data", "crawled_at", "TEXT"},
}

// migrate adds any column listed in columnMigrations that the file lacks,
// then creates the indexes that depend on them.
func migrate(db *sql.DB) error {
	for _, m := range columnMigrations {
		has, err := hasColumn(db, m.table, m.column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, m.table, m.column, m.decl)); err != nil {
			// Another opener may have added it first.
			if has, _ := hasColumn(db, m.table, m.column); has {
				continue
			}
			return fmt.Errorf("add %s.%s: %w", m.table, m.column, err)
		}
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_industry_created ON industry_data(created_at DESC, id DESC)`)
	return err
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}
