// Package linkreg tracks every symlink/hardlink the Mapper materializes
// into an application's directory tree, so a model delete can cascade to
// every link it owns and self_heal can walk the registry looking for
// breakage. The registry itself is a thin wrapper over a SQLite table
// (registry.db), opened the same way the Index opens models.db.
package linkreg

import (
	"database/sql"
	"time"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS link_records (
	source_canonical_path TEXT NOT NULL,
	target_app_path       TEXT NOT NULL,
	link_kind             TEXT NOT NULL,
	app_id                TEXT NOT NULL,
	version_tag           TEXT NOT NULL,
	created_at            TEXT NOT NULL,
	PRIMARY KEY (target_app_path)
);
CREATE INDEX IF NOT EXISTS idx_link_records_source ON link_records(source_canonical_path);
`

// Registry is a SQLite-backed store of materialized link records.
type Registry struct {
	db *sql.DB
}

// Open creates the link registry schema (if absent) on db, an already-open
// SQLite handle, and returns a Registry over it.
func Open(db *sql.DB) (*Registry, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "creating link registry schema", err)
	}
	return &Registry{db: db}, nil
}

// Record persists one materialized link, replacing any existing record for
// the same target path (re-applying a mapping onto an already-linked
// target is idempotent).
func (r *Registry) Record(rec model.LinkRecord) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO link_records
			(source_canonical_path, target_app_path, link_kind, app_id, version_tag, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SourceCanonicalPath, rec.TargetAppPath, string(rec.LinkKind), rec.AppID, rec.VersionTag,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "recording link", err)
	}
	return nil
}

// ForSource returns every link record whose source is modelID, used by
// cascade_unlink on model delete.
func (r *Registry) ForSource(modelID string) ([]model.LinkRecord, error) {
	rows, err := r.db.Query(
		`SELECT source_canonical_path, target_app_path, link_kind, app_id, version_tag, created_at
		 FROM link_records WHERE source_canonical_path = ?`, modelID)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "querying links by source", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// All returns every link record in the registry, used by self_heal.
func (r *Registry) All() ([]model.LinkRecord, error) {
	rows, err := r.db.Query(
		`SELECT source_canonical_path, target_app_path, link_kind, app_id, version_tag, created_at
		 FROM link_records`)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "querying all links", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// Remove deletes the link record for a specific target path, ignoring
// already-absent rows (cascade_unlink tolerates targets that never existed).
func (r *Registry) Remove(targetAppPath string) error {
	if _, err := r.db.Exec(`DELETE FROM link_records WHERE target_app_path = ?`, targetAppPath); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "removing link record", err)
	}
	return nil
}

func scanLinks(rows *sql.Rows) ([]model.LinkRecord, error) {
	var out []model.LinkRecord
	for rows.Next() {
		var rec model.LinkRecord
		var kind, createdAt string
		if err := rows.Scan(&rec.SourceCanonicalPath, &rec.TargetAppPath, &kind, &rec.AppID, &rec.VersionTag, &createdAt); err != nil {
			return nil, liberr.Wrap(liberr.KindIndexError, "scanning link record", err)
		}
		rec.LinkKind = model.LinkKind(kind)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "iterating link records", err)
	}
	return out, nil
}
