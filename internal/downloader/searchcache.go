package downloader

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/hfhub"
)

// searchCacheTTL is the staleness window for cached search/repo-detail rows.
const searchCacheTTL = 24 * time.Hour

const searchCacheSchema = `
PRAGMA journal_mode = WAL;

CREATE TABLE IF NOT EXISTS search_cache (
	query       TEXT PRIMARY KEY,
	results_json TEXT NOT NULL,
	cached_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS repo_details (
	repo_id       TEXT PRIMARY KEY,
	last_modified TEXT NOT NULL,
	details_json  TEXT NOT NULL,
	cached_at     TEXT NOT NULL
);
`

// SearchCache wraps shared-resources/cache/search.sqlite, the TTL-bound
// cache of HuggingFace search results and repo details the spec requires
// so repeated searches don't hammer the Hub.
type SearchCache struct {
	conn *sql.DB
}

// OpenSearchCache opens (and migrates) the search cache at dsn.
func OpenSearchCache(dsn string) (*SearchCache, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIndexError, "opening search cache", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(searchCacheSchema); err != nil {
		conn.Close()
		return nil, liberr.Wrap(liberr.KindIndexError, "migrating search cache schema", err)
	}
	return &SearchCache{conn: conn}, nil
}

func (c *SearchCache) Close() error { return c.conn.Close() }

// Lookup returns a non-stale cached result set for query, or ok=false on
// miss/stale so the caller falls through to a live Hub search.
func (c *SearchCache) Lookup(query string) (results []hfhub.RepoInfo, ok bool, err error) {
	row := c.conn.QueryRow(`SELECT results_json, cached_at FROM search_cache WHERE query = ?`, query)

	var resultsJSON, cachedAtStr string
	if scanErr := row.Scan(&resultsJSON, &cachedAtStr); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, liberr.Wrap(liberr.KindIndexError, "reading search cache", scanErr)
	}

	cachedAt, parseErr := time.Parse(time.RFC3339Nano, cachedAtStr)
	if parseErr != nil || time.Since(cachedAt) > searchCacheTTL {
		return nil, false, nil
	}

	if jsonErr := json.Unmarshal([]byte(resultsJSON), &results); jsonErr != nil {
		return nil, false, liberr.Wrap(liberr.KindIndexError, "decoding cached search results", jsonErr)
	}
	return results, true, nil
}

// Store upserts query's result set, replacing any prior entry.
func (c *SearchCache) Store(query string, results []hfhub.RepoInfo) error {
	data, err := json.Marshal(results)
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "encoding search results", err)
	}
	_, err = c.conn.Exec(
		`INSERT INTO search_cache (query, results_json, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET results_json = excluded.results_json, cached_at = excluded.cached_at`,
		query, string(data), time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "writing search cache", err)
	}
	return nil
}

// RepoDetails returns a cached repo detail row invalidated by comparing its
// stored last_modified against liveLastModified (a fresh HEAD/metadata
// check the caller performs before trusting a stale-by-TTL row).
func (c *SearchCache) RepoDetails(repoID, liveLastModified string) (details hfhub.RepoInfo, ok bool, err error) {
	row := c.conn.QueryRow(`SELECT last_modified, details_json, cached_at FROM repo_details WHERE repo_id = ?`, repoID)

	var lastModified, detailsJSON, cachedAtStr string
	if scanErr := row.Scan(&lastModified, &detailsJSON, &cachedAtStr); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return hfhub.RepoInfo{}, false, nil
		}
		return hfhub.RepoInfo{}, false, liberr.Wrap(liberr.KindIndexError, "reading repo details cache", scanErr)
	}

	cachedAt, parseErr := time.Parse(time.RFC3339Nano, cachedAtStr)
	stale := parseErr != nil || time.Since(cachedAt) > searchCacheTTL
	if stale && lastModified != liveLastModified {
		return hfhub.RepoInfo{}, false, nil
	}

	if jsonErr := json.Unmarshal([]byte(detailsJSON), &details); jsonErr != nil {
		return hfhub.RepoInfo{}, false, liberr.Wrap(liberr.KindIndexError, "decoding cached repo details", jsonErr)
	}
	return details, true, nil
}

// StoreRepoDetails upserts repoID's detail row.
func (c *SearchCache) StoreRepoDetails(repoID, lastModified string, details hfhub.RepoInfo) error {
	data, err := json.Marshal(details)
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "encoding repo details", err)
	}
	_, err = c.conn.Exec(
		`INSERT INTO repo_details (repo_id, last_modified, details_json, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(repo_id) DO UPDATE SET last_modified = excluded.last_modified,
			details_json = excluded.details_json, cached_at = excluded.cached_at`,
		repoID, lastModified, string(data), time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return liberr.Wrap(liberr.KindIndexError, "writing repo details cache", err)
	}
	return nil
}
