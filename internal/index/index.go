// Package index implements the model library's rebuildable SQLite
// projection: an FTS5 virtual table for prefix search plus normalized
// tables for baselines, overlays, history, dependency profiles/bindings,
// and the classification rule tables. It is opened against
// modernc.org/sqlite (pure-Go, no cgo) in WAL mode, following the pattern
// the teacher's storage layer uses of opening a concrete backend behind a
// small Go-idiomatic API rather than exposing database/sql directly.
package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
)

const schema = `
PRAGMA journal_mode = WAL;

CREATE TABLE IF NOT EXISTS models (
	model_id      TEXT PRIMARY KEY,
	canonical_path TEXT NOT NULL,
	model_type    TEXT NOT NULL,
	total_size    INTEGER NOT NULL,
	metadata_blob TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS model_files (
	model_id TEXT NOT NULL,
	rel_path TEXT NOT NULL,
	size     INTEGER NOT NULL,
	sha256   TEXT NOT NULL,
	blake3   TEXT NOT NULL,
	PRIMARY KEY (model_id, rel_path)
);

CREATE VIRTUAL TABLE IF NOT EXISTS models_fts USING fts5(
	model_id UNINDEXED,
	name, family, tags, architecture_tokens,
	tokenize = 'unicode61 remove_diacritics 2',
	prefix = '2,3,4'
);

CREATE TABLE IF NOT EXISTS model_metadata_baselines (
	model_id TEXT PRIMARY KEY,
	baseline_json TEXT NOT NULL
);

CREATE TRIGGER IF NOT EXISTS baselines_immutable
BEFORE UPDATE ON model_metadata_baselines
BEGIN
	SELECT RAISE(ABORT, 'baseline metadata is immutable');
END;

CREATE TABLE IF NOT EXISTS model_metadata_overlays (
	overlay_id TEXT PRIMARY KEY,
	model_id TEXT NOT NULL,
	overlay_json TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_overlays_one_active
ON model_metadata_overlays(model_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS model_metadata_history (
	model_id TEXT NOT NULL,
	overlay_id TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	at TEXT NOT NULL,
	reviewer TEXT,
	reason TEXT,
	seq INTEGER PRIMARY KEY AUTOINCREMENT
);

CREATE TABLE IF NOT EXISTS dependency_profiles (
	profile_id TEXT NOT NULL,
	profile_version TEXT NOT NULL,
	profile_hash TEXT NOT NULL,
	spec_json TEXT NOT NULL,
	PRIMARY KEY (profile_id, profile_version)
);

CREATE TABLE IF NOT EXISTS model_dependency_bindings (
	binding_id TEXT PRIMARY KEY,
	model_id TEXT NOT NULL,
	profile_id TEXT NOT NULL,
	profile_version TEXT NOT NULL,
	binding_kind TEXT NOT NULL,
	backend_key TEXT,
	platform_selector TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT
);

CREATE TABLE IF NOT EXISTS task_signature_mappings (
	signature_key TEXT NOT NULL,
	raw_task TEXT NOT NULL,
	status TEXT NOT NULL,
	PRIMARY KEY (signature_key, raw_task)
);

CREATE TABLE IF NOT EXISTS model_type_arch_rules (
	rule_key TEXT PRIMARY KEY,
	model_type TEXT NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS model_type_config_rules (
	rule_key TEXT PRIMARY KEY,
	model_type TEXT NOT NULL,
	status TEXT NOT NULL
);
`

// DB is the index's handle onto models.db.
type DB struct {
	conn *sql.DB
}

// Open opens (and migrates) the index database at dsn, e.g.
// "shared-resources/models/models.db".
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "opening index database", err)
	}
	conn.SetMaxOpenConns(1) // single-writer discipline; WAL lets readers proceed elsewhere

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, liberr.Wrap(liberr.KindIndexError, "creating index schema", err)
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error { return d.conn.Close() }

// ModelSummary is the row shape returned by search and list operations.
type ModelSummary struct {
	ModelID            string
	ModelType          string
	CanonicalPath      string
	TotalSize          int64
	EffectiveMetadata  json.RawMessage
	DependencyBindings []model.DependencyBinding
	UpdatedAt          time.Time
}

// UpsertModel writes a model's files, baseline, and FTS row transactionally.
func (d *DB) UpsertModel(m model.Model, baseline model.Baseline, tags []string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "starting upsert transaction", err)
	}
	defer tx.Rollback()

	metaBlob, err := json.Marshal(m)
	if err != nil {
		return liberr.Wrap(liberr.KindMetadataError, "marshaling model metadata", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO models (model_id, canonical_path, model_type, total_size, metadata_blob, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(model_id) DO UPDATE SET
		   canonical_path=excluded.canonical_path, model_type=excluded.model_type,
		   total_size=excluded.total_size, metadata_blob=excluded.metadata_blob, updated_at=excluded.updated_at`,
		m.ModelID, m.ModelID, string(m.ModelType), m.TotalSizeBytes, string(metaBlob), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "upserting model row", err)
	}

	if _, err := tx.Exec(`DELETE FROM model_files WHERE model_id = ?`, m.ModelID); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "clearing prior file rows", err)
	}
	for _, f := range m.Files {
		if _, err := tx.Exec(
			`INSERT INTO model_files (model_id, rel_path, size, sha256, blake3) VALUES (?, ?, ?, ?, ?)`,
			m.ModelID, f.RelPath, f.Size, f.SHA256, f.BLAKE3,
		); err != nil {
			return liberr.Wrap(liberr.KindIndexError, "inserting file row", err)
		}
	}

	baselineJSON, err := json.Marshal(baseline)
	if err != nil {
		return liberr.Wrap(liberr.KindMetadataError, "marshaling baseline", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO model_metadata_baselines (model_id, baseline_json) VALUES (?, ?)
		 ON CONFLICT(model_id) DO NOTHING`,
		m.ModelID, string(baselineJSON),
	); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "inserting baseline row", err)
	}

	if _, err := tx.Exec(`DELETE FROM models_fts WHERE model_id = ?`, m.ModelID); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "clearing prior fts row", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO models_fts (model_id, name, family, tags, architecture_tokens) VALUES (?, ?, ?, ?, ?)`,
		m.ModelID, m.Name, m.Family, strings.Join(tags, " "), strings.Join(m.ArchitectureTokens, " "),
	); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "inserting fts row", err)
	}

	if err := tx.Commit(); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "committing upsert transaction", err)
	}
	return nil
}

// FindModelBySHA256 returns the model_id already owning a file with the
// given SHA-256, if any — the idempotence check the import algorithm runs
// before writing new bytes to the canonical tree.
func (d *DB) FindModelBySHA256(sha256 string) (modelID string, found bool, err error) {
	row := d.conn.QueryRow(`SELECT model_id FROM model_files WHERE sha256 = ? LIMIT 1`, sha256)
	if scanErr := row.Scan(&modelID); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, liberr.Wrap(liberr.KindIndexError, "looking up model by sha256", scanErr)
	}
	return modelID, true, nil
}

// ListAll returns every model row, ordered by model_id, for callers that
// need to evaluate rules against the whole catalog rather than running an
// FTS query — the Mapper's dry_run/apply_mapping model_rules evaluation.
func (d *DB) ListAll() ([]ModelSummary, error) {
	rows, err := d.conn.Query(`
		SELECT model_id, model_type, canonical_path, total_size, metadata_blob, updated_at
		FROM models ORDER BY model_id ASC`)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "listing all models", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var s ModelSummary
		var updatedAt, blob string
		if err := rows.Scan(&s.ModelID, &s.ModelType, &s.CanonicalPath, &s.TotalSize, &blob, &updatedAt); err != nil {
			return nil, liberr.Wrap(liberr.KindIndexError, "scanning model row", err)
		}
		s.EffectiveMetadata = json.RawMessage(blob)
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			s.UpdatedAt = t
		}
		bindings, err := d.bindingsForModel(s.ModelID)
		if err != nil {
			return nil, err
		}
		s.DependencyBindings = bindings
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "iterating model rows", err)
	}
	return out, nil
}

var ftsReserved = regexp.MustCompile(`["^*]`)

// escapeFTSQuery strips FTS5 syntax characters and appends a prefix
// wildcard to the last token, per the prefix-search rule.
func escapeFTSQuery(raw string) string {
	cleaned := ftsReserved.ReplaceAllString(raw, " ")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	for i, f := range fields {
		fields[i] = `"` + f + `"`
	}
	last := len(fields) - 1
	fields[last] = fields[last] + "*"
	return strings.Join(fields, " ")
}

// Search runs an FTS5 prefix query, sorted by (rank ASC, model_id ASC) for
// determinism, returning each hit's stored metadata_blob as its effective
// metadata; no overlay is merged into it.
func (d *DB) Search(query string, modelType string, limit, offset int) ([]ModelSummary, error) {
	ftsQuery := escapeFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	args := []interface{}{ftsQuery}
	typeFilter := ""
	if modelType != "" {
		typeFilter = "AND m.model_type = ?"
		args = append(args, modelType)
	}
	args = append(args, limit, offset)

	rows, err := d.conn.Query(fmt.Sprintf(`
		SELECT m.model_id, m.model_type, m.canonical_path, m.total_size, m.metadata_blob, m.updated_at
		FROM models_fts f
		JOIN models m ON m.model_id = f.model_id
		WHERE f MATCH ? %s
		ORDER BY bm25(models_fts) ASC, m.model_id ASC
		LIMIT ? OFFSET ?`, typeFilter), args...)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "running fts search", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var s ModelSummary
		var updatedAt string
		var blob string
		if err := rows.Scan(&s.ModelID, &s.ModelType, &s.CanonicalPath, &s.TotalSize, &blob, &updatedAt); err != nil {
			return nil, liberr.Wrap(liberr.KindIndexError, "scanning search row", err)
		}
		s.EffectiveMetadata = json.RawMessage(blob)
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			s.UpdatedAt = t
		}
		bindings, err := d.bindingsForModel(s.ModelID)
		if err != nil {
			return nil, err
		}
		s.DependencyBindings = bindings
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "iterating search rows", err)
	}
	return out, nil
}

func (d *DB) bindingsForModel(modelID string) ([]model.DependencyBinding, error) {
	rows, err := d.conn.Query(
		`SELECT binding_id, model_id, profile_id, profile_version, binding_kind, backend_key, platform_selector, priority, status
		 FROM model_dependency_bindings WHERE model_id = ?`, modelID)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "querying bindings", err)
	}
	defer rows.Close()

	var out []model.DependencyBinding
	for rows.Next() {
		var b model.DependencyBinding
		var kind string
		var backendKey, platformSelector, status sql.NullString
		if err := rows.Scan(&b.BindingID, &b.ModelID, &b.ProfileID, &b.ProfileVersion, &kind, &backendKey, &platformSelector, &b.Priority, &status); err != nil {
			return nil, liberr.Wrap(liberr.KindIndexError, "scanning binding row", err)
		}
		b.BindingKind = model.BindingKind(kind)
		b.BackendKey = backendKey.String
		b.PlatformSelector = platformSelector.String
		b.Status = status.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// RefreshBindingProjection re-denormalizes dependency_bindings into the
// model's metadata_blob. It runs directly on the DB connection, not inside
// a caller's transaction, so a binding write and the refresh that follows
// it are committed separately.
func (d *DB) RefreshBindingProjection(modelID string) error {
	bindings, err := d.bindingsForModel(modelID)
	if err != nil {
		return err
	}

	var blob string
	if err := d.conn.QueryRow(`SELECT metadata_blob FROM models WHERE model_id = ?`, modelID).Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return liberr.Wrap(liberr.KindIndexError, "loading model for binding projection refresh", err)
	}

	var m model.Model
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return liberr.Wrap(liberr.KindMetadataError, "parsing model metadata for projection refresh", err)
	}
	m.DependencyBindings = bindings

	updated, err := json.Marshal(m)
	if err != nil {
		return liberr.Wrap(liberr.KindMetadataError, "marshaling refreshed model metadata", err)
	}

	if _, err := d.conn.Exec(`UPDATE models SET metadata_blob = ? WHERE model_id = ?`, string(updated), modelID); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "writing refreshed projection", err)
	}
	return nil
}

// UpsertProfile writes a Dependency Profile revision. Profiles are
// immutable: writing an existing (profile_id, profile_version) again with
// the same profile_hash is a no-op, and with a different profile_hash
// fails with an error of kind ProfileImmutable.
func (d *DB) UpsertProfile(p model.DependencyProfile) error {
	var existingHash string
	err := d.conn.QueryRow(
		`SELECT profile_hash FROM dependency_profiles WHERE profile_id = ? AND profile_version = ?`,
		p.ProfileID, p.ProfileVersion,
	).Scan(&existingHash)
	switch {
	case err == nil && existingHash == p.ProfileHash:
		return nil
	case err == nil:
		return liberr.NewProfileImmutableError(p.ProfileID, p.ProfileVersion).Error
	case err != sql.ErrNoRows:
		return liberr.Wrap(liberr.KindIndexError, "loading existing dependency profile", err)
	}

	_, err = d.conn.Exec(
		`INSERT INTO dependency_profiles (profile_id, profile_version, profile_hash, spec_json)
		 VALUES (?, ?, ?, ?)`,
		p.ProfileID, p.ProfileVersion, p.ProfileHash, string(p.SpecJSON),
	)
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "upserting dependency profile", err)
	}
	return nil
}

// GetProfile loads one profile revision, returning found=false rather than
// an error when the (profile_id, profile_version) pair is unknown.
func (d *DB) GetProfile(profileID, profileVersion string) (profile model.DependencyProfile, found bool, err error) {
	row := d.conn.QueryRow(
		`SELECT profile_id, profile_version, profile_hash, spec_json
		 FROM dependency_profiles WHERE profile_id = ? AND profile_version = ?`,
		profileID, profileVersion,
	)
	var specJSON string
	if scanErr := row.Scan(&profile.ProfileID, &profile.ProfileVersion, &profile.ProfileHash, &specJSON); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return model.DependencyProfile{}, false, nil
		}
		return model.DependencyProfile{}, false, liberr.Wrap(liberr.KindIndexError, "loading dependency profile", scanErr)
	}
	profile.SpecJSON = []byte(specJSON)
	return profile, true, nil
}

// RebuildFromFilesystem deletes and recreates all derived rows from the
// baselines supplied by the caller (read from metadata.json files under the
// canonical tree) — idempotent, since every row is keyed by model_id.
func (d *DB) RebuildFromFilesystem(baselines []model.Baseline) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "starting rebuild transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"models", "model_files", "models_fts", "model_metadata_baselines"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return liberr.Wrap(liberr.KindIndexError, "clearing table "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return liberr.Wrap(liberr.KindIndexError, "committing rebuild clear", err)
	}

	for _, b := range baselines {
		if err := d.UpsertModel(b.Model, b, nil); err != nil {
			return err
		}
	}
	return nil
}
