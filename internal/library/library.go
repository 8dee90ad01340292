// Package library assembles the Storage Layout, Index, Importer, Mapper,
// Resolver, Downloader, and Watcher into the single facade every outer
// surface (CLI, future RPC bridge) calls through, mirroring the teacher's
// practice of keeping one concrete, non-global entrypoint per subsystem
// (pkg/hfhub.HubClient) rather than package-level singletons.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	_ "modernc.org/sqlite"

	"github.com/MrScripty/Pumas-Library-sub004/internal/downloader"
	"github.com/MrScripty/Pumas-Library-sub004/internal/importer"
	"github.com/MrScripty/Pumas-Library-sub004/internal/index"
	"github.com/MrScripty/Pumas-Library-sub004/internal/layout"
	"github.com/MrScripty/Pumas-Library-sub004/internal/linkreg"
	"github.com/MrScripty/Pumas-Library-sub004/internal/mapper"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
	"github.com/MrScripty/Pumas-Library-sub004/internal/resolver"
	"github.com/MrScripty/Pumas-Library-sub004/internal/watcher"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/hfhub"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/zipper"
)

// Context is the library's single facade, holding every subsystem handle a
// caller needs. Construct one with New (or via fx using Module) and keep
// it alive for the process lifetime.
type Context struct {
	Layout   *layout.Layout
	Index    *index.DB
	Importer *importer.Importer
	Mapper   *mapper.Mapper
	Download *downloader.Client
	LinkReg  *linkreg.Registry
	Watcher  *watcher.Watcher
	log      logging.Interface

	installedApps []AppRef

	pendingMu      sync.Mutex
	pendingImports map[string]importer.Hints
}

// AppRef identifies one installed application version the Mapper fans
// link updates out to after every import.
type AppRef struct {
	AppID      string
	VersionTag string
}

// RegisterApp adds (or confirms) an installed application so future
// imports and RefreshModelMappings calls fan links out to it.
func (lc *Context) RegisterApp(appID, versionTag string) {
	for _, a := range lc.installedApps {
		if a.AppID == appID && a.VersionTag == versionTag {
			return
		}
	}
	lc.installedApps = append(lc.installedApps, AppRef{AppID: appID, VersionTag: versionTag})
}

// Config bundles the filesystem locations New needs to wire everything
// together; all paths are relative to a single shared-resources root.
type Config struct {
	SharedResourcesRoot string `mapstructure:"shared_resources_root"` // e.g. ".../shared-resources"
	AppConfigDir        string `mapstructure:"app_config_dir"`        // e.g. ".../launcher-data/config/model-library-translation"
	HFEndpoint          string `mapstructure:"hf_endpoint"`
}

// mapperFanout adapts Context into the importer.Mapper interface: every
// freshly imported model triggers apply_mapping for each installed
// application (spec step 8), with per-link failures reported, not fatal.
type mapperFanout struct{ lc *Context }

func (f mapperFanout) OnModelImported(modelID string) error {
	for _, app := range f.lc.installedApps {
		if _, err := f.lc.RefreshModelMappings(app.AppID, app.VersionTag); err != nil && f.lc.log != nil {
			f.lc.log.WithError(err).WithField("app_id", app.AppID).Warn("mapping fan-out failed for installed application")
		}
	}
	return nil
}

// New wires every subsystem against the real OS filesystem and opens the
// SQLite-backed index, link registry, and search cache under
// cfg.SharedResourcesRoot.
func New(cfg Config, log logging.Interface) (*Context, error) {
	fs := afero.NewOsFs()

	lay := layout.New(fs, cfg.SharedResourcesRoot+"/models", log)

	idx, err := index.Open(cfg.SharedResourcesRoot + "/index/models.db")
	if err != nil {
		return nil, errors.Wrap(err, "opening model index")
	}

	linkConn, err := sql.Open("sqlite", cfg.SharedResourcesRoot+"/index/registry.db")
	if err != nil {
		return nil, errors.Wrap(err, "opening link registry database")
	}
	registry, err := linkreg.Open(linkConn)
	if err != nil {
		return nil, errors.Wrap(err, "opening link registry")
	}

	mp := mapper.New(fs, cfg.SharedResourcesRoot+"/models", cfg.AppConfigDir, idx, registry, log)

	cache, err := downloader.OpenSearchCache(cfg.SharedResourcesRoot + "/cache/search.sqlite")
	if err != nil {
		return nil, errors.Wrap(err, "opening search cache")
	}
	tickets, err := downloader.NewTicketStore(fs, cfg.SharedResourcesRoot+"/downloads")
	if err != nil {
		return nil, errors.Wrap(err, "opening download ticket store")
	}
	hubOpts := []hfhub.HubOption{hfhub.WithLogger(log)}
	if cfg.HFEndpoint != "" {
		hubOpts = append(hubOpts, hfhub.WithEndpoint(cfg.HFEndpoint))
	}
	hubConfig, err := hfhub.NewHubConfig(hubOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "building HuggingFace hub config")
	}
	hub, err := hfhub.NewHubClient(hubConfig)
	if err != nil {
		return nil, errors.Wrap(err, "creating HuggingFace hub client")
	}
	dl := downloader.NewClient(hub, tickets, cache, cfg.HFEndpoint, log)

	lc := &Context{Layout: lay, Index: idx, Mapper: mp, Download: dl, LinkReg: registry, log: log,
		pendingImports: make(map[string]importer.Hints)}
	lc.Importer = importer.New(fs, lay, idx, mapperFanout{lc: lc}, log)

	w, err := watcher.New(cfg.SharedResourcesRoot+"/models", lc.onFilesystemChange, log)
	if err != nil {
		return nil, errors.Wrap(err, "creating filesystem watcher")
	}
	lc.Watcher = w

	return lc, nil
}

func (lc *Context) onFilesystemChange(modelIDs []string) {
	for _, id := range modelIDs {
		baseline, err := lc.Layout.ReadMetadata(id)
		if err != nil {
			if lc.log != nil {
				lc.log.WithError(err).WithField("model_id", id).Warn("skipping reindex for unreadable metadata")
			}
			continue
		}
		if err := lc.Index.UpsertModel(baseline.Model, baseline, nil); err != nil && lc.log != nil {
			lc.log.WithError(err).WithField("model_id", id).Warn("incremental reindex failed")
		}
	}
}

// ListModels returns a page of the catalog; sort/filter beyond model_type
// is left to callers composing over ListAll for now (the Index exposes
// FTS search for free-text queries via SearchModelsFTS).
func (lc *Context) ListModels(modelType string, limit, offset int) ([]index.ModelSummary, error) {
	all, err := lc.Index.ListAll()
	if err != nil {
		return nil, err
	}
	var filtered []index.ModelSummary
	for _, m := range all {
		if modelType != "" && m.ModelType != modelType {
			continue
		}
		filtered = append(filtered, m)
	}
	if offset >= len(filtered) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

// SearchModelsFTS runs a prefix search over name/family/tags/architecture.
func (lc *Context) SearchModelsFTS(query, modelType string, limit, offset int) ([]index.ModelSummary, error) {
	return lc.Index.Search(query, modelType, limit, offset)
}

// GetLibraryModelMetadata returns the immutable baseline alongside the
// Index's stored metadata_blob for the model as its effective view (nil
// when the model is not indexed); no overlay is merged into it.
func (lc *Context) GetLibraryModelMetadata(modelID string) (baseline model.Baseline, effective json.RawMessage, err error) {
	baseline, err = lc.Layout.ReadMetadata(modelID)
	if err != nil {
		return model.Baseline{}, nil, err
	}
	all, err := lc.Index.ListAll()
	if err != nil {
		return baseline, nil, err
	}
	for _, s := range all {
		if s.ModelID == modelID {
			return baseline, s.EffectiveMetadata, nil
		}
	}
	return baseline, nil, nil
}

// ImportModel runs the import algorithm over a set of local paths. Any
// path ending in .zip is transparently extracted to a scratch directory
// first and its contents substituted in, so a model distributed as a
// single archive (common for diffusion folder layouts) imports the same
// way as an already-unpacked directory.
func (lc *Context) ImportModel(paths []string, hints importer.Hints) ([]importer.FileOutcome, error) {
	expanded, cleanup, err := expandArchives(paths)
	defer cleanup()
	if err != nil {
		return nil, errors.Wrap(err, "extracting model archive")
	}
	return lc.Importer.ImportPaths(expanded, hints)
}

func expandArchives(paths []string) (expanded []string, cleanup func(), err error) {
	var scratchDirs []string
	cleanup = func() {
		for _, dir := range scratchDirs {
			_ = os.RemoveAll(dir)
		}
	}

	for _, p := range paths {
		if strings.ToLower(filepath.Ext(p)) != ".zip" {
			expanded = append(expanded, p)
			continue
		}

		extractDir, mkErr := os.MkdirTemp("", "modellib-import-*")
		if mkErr != nil {
			return nil, cleanup, mkErr
		}
		scratchDirs = append(scratchDirs, extractDir)

		if unzipErr := zipper.Unzip(p, extractDir); unzipErr != nil {
			return nil, cleanup, unzipErr
		}

		walkErr := filepath.Walk(extractDir, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !info.IsDir() {
				expanded = append(expanded, path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, cleanup, walkErr
		}
	}

	return expanded, cleanup, nil
}

// DeleteModel removes every link record pointing at modelID, then the
// canonical directory itself. If the link records cannot be listed it
// returns before touching the directory. It does not remove the model's
// rows from the Index.
func (lc *Context) DeleteModel(modelID string) ([]mapper.LinkOutcome, error) {
	outcomes, err := lc.Mapper.CascadeUnlink(modelID)
	if err != nil {
		return outcomes, err
	}
	if err := lc.Layout.Delete(modelID); err != nil {
		return outcomes, errors.Wrap(err, "removing canonical model directory")
	}
	return outcomes, nil
}

// ScanSharedStorage rebuilds the index from the canonical tree's
// metadata.json files, for recovering from index loss or corruption.
func (lc *Context) ScanSharedStorage() error {
	ids, err := lc.Layout.ListCanonical()
	if err != nil {
		return err
	}
	baselines := make([]model.Baseline, 0, len(ids))
	for _, id := range ids {
		b, err := lc.Layout.ReadMetadata(id)
		if err != nil {
			if lc.log != nil {
				lc.log.WithError(err).WithField("model_id", id).Warn("skipping unreadable metadata during scan")
			}
			continue
		}
		baselines = append(baselines, b)
	}
	return lc.Index.RebuildFromFilesystem(baselines)
}

// ResolveDependencies runs the resolve-only algorithm for a model against
// the bindings currently attached to it plus the execution context.
func (lc *Context) ResolveDependencies(rctx resolver.Context) (resolver.Response, error) {
	summaries, err := lc.Index.ListAll()
	if err != nil {
		return resolver.Response{}, err
	}
	var target index.ModelSummary
	for _, s := range summaries {
		if s.ModelID == rctx.ModelID {
			target = s
			break
		}
	}

	inputs := make([]resolver.BindingInput, 0, len(target.DependencyBindings))
	for _, b := range target.DependencyBindings {
		input := resolver.BindingInput{
			BindingID:        b.BindingID,
			ProfileID:        b.ProfileID,
			ProfileVersion:   b.ProfileVersion,
			BindingKind:      string(b.BindingKind),
			BackendKey:       b.BackendKey,
			PlatformSelector: b.PlatformSelector,
			Priority:         b.Priority,
		}
		if profile, found, err := lc.Index.GetProfile(b.ProfileID, b.ProfileVersion); err == nil && found {
			resolved, parseErr := parseProfile(profile)
			if parseErr == nil {
				input.Profile = &resolved
			}
		}
		inputs = append(inputs, input)
	}

	return resolver.Resolve(rctx, inputs), nil
}

func parseProfile(p model.DependencyProfile) (resolver.Profile, error) {
	var packages []resolver.PackageSpec
	if err := json.Unmarshal(p.SpecJSON, &packages); err != nil {
		return resolver.Profile{}, err
	}
	return resolver.Profile{
		ProfileID:      p.ProfileID,
		ProfileVersion: p.ProfileVersion,
		ProfileHash:    p.ProfileHash,
		PythonPackages: packages,
	}, nil
}

// SearchHFModels searches HuggingFace, transparently using the TTL cache.
func (lc *Context) SearchHFModels(ctx context.Context, query, kind string, limit int) ([]downloader.SearchResult, bool, error) {
	return lc.Download.SearchModels(ctx, query, kind, limit)
}

// StartModelDownloadFromHF begins a resumable download; family/official
// name are remembered against the Download Ticket and become the
// canonical path components once CompleteDownloadImport runs.
func (lc *Context) StartModelDownloadFromHF(ctx context.Context, repoID, family, officialName string) (downloadID string, totalBytes int64, err error) {
	ticket, total, err := lc.Download.StartDownload(ctx, repoID)
	if err != nil {
		return "", 0, err
	}

	lc.pendingMu.Lock()
	lc.pendingImports[ticket.DownloadID] = importer.Hints{Family: family, Name: officialName}
	lc.pendingMu.Unlock()

	return ticket.DownloadID, total, nil
}

// CompleteDownloadImport imports a finished Download Ticket's files into
// the canonical tree, using the family/official name captured at
// StartModelDownloadFromHF time. Callers poll GetModelDownloadStatus until
// DownloadComplete and then call this once; it is not safe to call before
// the ticket reaches that state.
func (lc *Context) CompleteDownloadImport(downloadID string) ([]importer.FileOutcome, error) {
	paths, ok := lc.Download.DownloadedFiles(downloadID)
	if !ok {
		return nil, errors.Errorf("download %s is not complete", downloadID)
	}

	lc.pendingMu.Lock()
	hints := lc.pendingImports[downloadID]
	delete(lc.pendingImports, downloadID)
	lc.pendingMu.Unlock()

	return lc.Importer.ImportPaths(paths, hints)
}

// GetModelDownloadStatus reports a Download Ticket's current state.
func (lc *Context) GetModelDownloadStatus(downloadID string) (*model.DownloadTicket, bool) {
	return lc.Download.GetDownloadStatus(downloadID)
}

// CancelModelDownload cooperatively cancels an in-flight download.
func (lc *Context) CancelModelDownload(downloadID string) error {
	return lc.Download.CancelDownload(downloadID)
}

// RefreshModelMappings applies the "default" mapping profile for one
// installed application version; the import fan-out calls it once per
// registered application.
func (lc *Context) RefreshModelMappings(appID, versionTag string) ([]mapper.LinkOutcome, error) {
	plan, err := lc.Mapper.DryRun(appID, versionTag, "default")
	if err != nil {
		return nil, err
	}
	return lc.Mapper.Apply(plan)
}

// DryRunMapping computes (without executing) the link plan for an app
// version, surfacing conflicts for the caller to resolve.
func (lc *Context) DryRunMapping(appID, versionTag string) (*mapper.Plan, error) {
	return lc.Mapper.DryRun(appID, versionTag, "default")
}

// SyncWithResolutions applies caller-provided conflict resolutions to a
// draft plan and then executes it.
func (lc *Context) SyncWithResolutions(plan *mapper.Plan, choices map[string]string) ([]mapper.LinkOutcome, error) {
	if err := lc.Mapper.ResolveConflicts(plan, choices); err != nil {
		return nil, err
	}
	return lc.Mapper.Apply(plan)
}

// GetCrossFilesystemWarning reports which planned links in a plan fell
// back to an absolute symlink because the target lives on a different
// filesystem than the canonical tree.
func (lc *Context) GetCrossFilesystemWarning(plan *mapper.Plan) []string {
	var warnings []string
	for _, link := range plan.Links {
		if link.LinkKind == model.LinkSymlinkAbsolute {
			warnings = append(warnings, fmt.Sprintf("%s: cross-filesystem link to %s", link.TargetAppPath, link.SourceCanonicalPath))
		}
	}
	return warnings
}

// GetLinkHealth runs self_heal and returns what it repaired or removed.
func (lc *Context) GetLinkHealth() ([]mapper.LinkOutcome, error) {
	return lc.Mapper.SelfHeal()
}

// GetLibraryStatus is a coarse health summary: model count and total
// bytes under management.
type LibraryStatus struct {
	ModelCount int   `json:"model_count"`
	TotalBytes int64 `json:"total_bytes"`
}

func (lc *Context) GetLibraryStatus() (LibraryStatus, error) {
	all, err := lc.Index.ListAll()
	if err != nil {
		return LibraryStatus{}, err
	}
	status := LibraryStatus{ModelCount: len(all)}
	for _, m := range all {
		status.TotalBytes += m.TotalSize
	}
	return status, nil
}

// Close stops the watcher and closes the Index connection. The link
// registry and search cache connections opened by New are not closed.
func (lc *Context) Close() error {
	if lc.Watcher != nil {
		_ = lc.Watcher.Stop()
	}
	return lc.Index.Close()
}
