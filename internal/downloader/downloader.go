// Package downloader wraps pkg/hfhub with the library's own Download
// Ticket state machine and a TTL-bound search cache, generalizing the
// teacher's HubClient (designed for a Kubernetes model-serving sidecar
// pulling one pinned revision) into a user-facing "search, queue, resume,
// cancel" workflow over an arbitrary number of concurrent repositories.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/hfhub"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

// breakerSettings trips after 3 consecutive connect/timeout failures and
// keeps the circuit open for 60s, per the spec's circuit-breaker policy.
func breakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "downloader",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

// Client is the library's HuggingFace downloader: search (cached),
// download (ticketed, resumable, cancellable), all guarded by a circuit
// breaker and a per-host rate limiter.
type Client struct {
	hub     *hfhub.HubClient
	tickets *TicketStore
	cache   *SearchCache
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     logging.Interface

	httpClient *http.Client
	endpoint   string

	cancelMu  sync.Mutex
	cancelled map[string]context.CancelFunc
}

// NewClient builds a downloader Client. endpoint defaults to
// hfhub.DefaultEndpoint when empty.
func NewClient(hub *hfhub.HubClient, tickets *TicketStore, cache *SearchCache, endpoint string, log logging.Interface) *Client {
	if endpoint == "" {
		endpoint = hfhub.DefaultEndpoint
	}
	return &Client{
		hub:        hub,
		tickets:    tickets,
		cache:      cache,
		breaker:    gobreaker.NewCircuitBreaker(breakerSettings()),
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		log:        log,
		httpClient: hfhub.GetHTTPClient(),
		endpoint:   endpoint,
		cancelled:  map[string]context.CancelFunc{},
	}
}

// SearchResult is one normalized row from search_hf_models.
type SearchResult struct {
	RepoID      string   `json:"repo_id"`
	PipelineTag string   `json:"pipeline_tag,omitempty"`
	LibraryName string   `json:"library_name,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Downloads   int      `json:"downloads,omitempty"`
	Likes       int      `json:"likes,omitempty"`
}

// SearchModels implements search_hf_models: normalized query against the
// 24h search cache, falling through to a live Hub search on miss/stale.
// When the circuit breaker is open it returns offline=true with whatever a
// second cache lookup yields; that lookup applies the same 24h freshness
// check as the first, so stale entries are not served and the result is
// empty whenever the first lookup missed.
func (c *Client) SearchModels(ctx context.Context, query, kind string, limit int) (results []SearchResult, offline bool, err error) {
	cacheKey := fmt.Sprintf("%s|%s|%d", query, kind, limit)

	if cached, ok, lookupErr := c.cache.Lookup(cacheKey); lookupErr == nil && ok {
		return repoInfosToResults(cached), false, nil
	}

	live, liveErr := c.liveSearch(ctx, query, kind, limit)
	if liveErr != nil {
		if errors.Is(liveErr, gobreaker.ErrOpenState) {
			cached, _, _ := c.cache.Lookup(cacheKey)
			return repoInfosToResults(cached), true, nil
		}
		return nil, false, liberr.Wrap(liberr.KindNetworkError, "searching HuggingFace", liveErr)
	}

	_ = c.cache.Store(cacheKey, live)
	return repoInfosToResults(live), false, nil
}

func (c *Client) liveSearch(ctx context.Context, query, kind string, limit int) ([]hfhub.RepoInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		u := fmt.Sprintf("%s/api/models?search=%s&limit=%d", c.endpoint, url.QueryEscape(query), limit)
		if kind != "" {
			u += "&pipeline_tag=" + url.QueryEscape(kind)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, liberr.NewRateLimitedError(int(retryAfter(resp).Seconds())).Error
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("hub search returned %d", resp.StatusCode)
		}

		var repos []hfhub.RepoInfo
		if decodeErr := json.NewDecoder(resp.Body).Decode(&repos); decodeErr != nil {
			return nil, decodeErr
		}
		return repos, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]hfhub.RepoInfo), nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 60 * time.Second
}

func repoInfosToResults(repos []hfhub.RepoInfo) []SearchResult {
	out := make([]SearchResult, 0, len(repos))
	for _, r := range repos {
		res := SearchResult{RepoID: r.ID, Tags: r.Tags}
		if r.PipelineTag != nil {
			res.PipelineTag = *r.PipelineTag
		}
		if r.LibraryName != nil {
			res.LibraryName = *r.LibraryName
		}
		if r.Downloads != nil {
			res.Downloads = *r.Downloads
		}
		if r.Likes != nil {
			res.Likes = *r.Likes
		}
		out = append(out, res)
	}
	return out
}

// StartDownload implements start_model_download_from_hf: lists repo
// files, mints a Download Ticket in the queued state, and launches the
// download in the background. family/officialName/modelType/subtype/quant
// are carried by the caller (the Importer) for post-download classification
// and placement; the ticket itself only tracks byte progress.
func (c *Client) StartDownload(ctx context.Context, repoID string) (ticket *model.DownloadTicket, totalBytes int64, err error) {
	cfgFiles, err := c.hub.ListFiles(ctx, repoID)
	if err != nil {
		return nil, 0, liberr.Wrap(liberr.KindNetworkError, "listing repository files", err)
	}

	files := make([]model.DownloadFile, 0, len(cfgFiles))
	for _, f := range cfgFiles {
		files = append(files, model.DownloadFile{Path: f.Path, TotalBytes: f.Size})
		totalBytes += f.Size
	}

	ticket, err = c.tickets.Create(repoID, files)
	if err != nil {
		return nil, 0, err
	}

	downloadCtx, cancel := context.WithCancel(context.Background())
	c.cancelMu.Lock()
	c.cancelled[ticket.DownloadID] = cancel
	c.cancelMu.Unlock()

	go c.runDownload(downloadCtx, ticket.DownloadID, repoID, files)

	return ticket, totalBytes, nil
}

func (c *Client) runDownload(ctx context.Context, downloadID, repoID string, files []model.DownloadFile) {
	if _, err := c.tickets.Update(downloadID, func(t *model.DownloadTicket) {
		t.State = model.DownloadInProgress
	}); err != nil {
		return
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			_, _ = c.tickets.Update(downloadID, func(t *model.DownloadTicket) {
				t.State = model.DownloadCancelled
			})
			return
		default:
		}

		localPath, err := c.hub.Download(ctx, repoID, f.Path)
		if err != nil {
			_, _ = c.tickets.Update(downloadID, func(t *model.DownloadTicket) {
				t.State = model.DownloadError
				t.ErrorDetail = err.Error()
			})
			if c.log != nil {
				c.log.WithError(err).WithField("repo_id", repoID).Warn("download failed")
			}
			return
		}

		_, _ = c.tickets.Update(downloadID, func(t *model.DownloadTicket) {
			for i := range t.Files {
				if t.Files[i].Path == f.Path {
					t.Files[i].PartialBytes = t.Files[i].TotalBytes
					t.Files[i].LocalPath = localPath
				}
			}
		})
	}

	_, _ = c.tickets.Update(downloadID, func(t *model.DownloadTicket) {
		t.State = model.DownloadComplete
	})
}

// GetDownloadStatus implements get_model_download_status.
func (c *Client) GetDownloadStatus(downloadID string) (*model.DownloadTicket, bool) {
	return c.tickets.Get(downloadID)
}

// DownloadedFiles returns the on-disk cache paths of every file belonging
// to a completed Download Ticket, for handing off to the Importer.
func (c *Client) DownloadedFiles(downloadID string) ([]string, bool) {
	ticket, ok := c.tickets.Get(downloadID)
	if !ok || ticket.State != model.DownloadComplete {
		return nil, false
	}
	paths := make([]string, 0, len(ticket.Files))
	for _, f := range ticket.Files {
		if f.LocalPath != "" {
			paths = append(paths, f.LocalPath)
		}
	}
	return paths, true
}

// CancelDownload implements cancel_model_download: marks the ticket
// cancelled and signals the running download goroutine to stop at the
// next chunk boundary.
func (c *Client) CancelDownload(downloadID string) error {
	c.cancelMu.Lock()
	if cancel, ok := c.cancelled[downloadID]; ok {
		cancel()
		delete(c.cancelled, downloadID)
	}
	c.cancelMu.Unlock()
	_, err := c.tickets.Update(downloadID, func(t *model.DownloadTicket) {
		t.State = model.DownloadCancelled
	})
	return err
}
