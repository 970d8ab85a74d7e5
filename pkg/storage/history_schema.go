package storage

// migrate applies pending schema versions, each in its own transaction.
func (s *SQLiteHistoryStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history_schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM history_schema_version").Scan(&current); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Artifacts},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO history_schema_version (version) VALUES (?)", m.version); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const migrationV1Artifacts = `
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	summary TEXT NOT NULL,
	payload TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind);
CREATE INDEX IF NOT EXISTS idx_artifacts_recorded_at ON artifacts(recorded_at);

CREATE VIRTUAL TABLE IF NOT EXISTS artifacts_fts USING fts5(
	summary,
	payload,
	content='artifacts',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS artifacts_ai AFTER INSERT ON artifacts BEGIN
	INSERT INTO artifacts_fts(rowid, summary, payload)
	VALUES (NEW.rowid, NEW.summary, NEW.payload);
END;

CREATE TRIGGER IF NOT EXISTS artifacts_ad AFTER DELETE ON artifacts BEGIN
	INSERT INTO artifacts_fts(artifacts_fts, rowid, summary, payload)
	VALUES ('delete', OLD.rowid, OLD.summary, OLD.payload);
END;
`
