// Package importer implements the import algorithm: grouping a local file
// set into candidate models (single files, sharded sets, diffusion
// folders), classifying each candidate, reading and hashing each file in
// full before writing it through the Storage Layout, and upserting the
// result into the Index —
// generalizing the teacher's reconcile-one-object loop
// (pkg/modelagent/gopher.go's task-channel worker pattern) from a
// Kubernetes CR to a filesystem path.
package importer

import (
	"bytes"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/MrScripty/Pumas-Library-sub004/internal/classify"
	"github.com/MrScripty/Pumas-Library-sub004/internal/hashing"
	"github.com/MrScripty/Pumas-Library-sub004/internal/index"
	"github.com/MrScripty/Pumas-Library-sub004/internal/layout"
	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/modelsig"
)

// shardPattern matches "name-00001-of-00004.ext" style shard filenames.
var shardPattern = regexp.MustCompile(`^(.+)-(\d{5})-of-(\d{5})(\.[A-Za-z0-9._]+)?$`)

// FileOutcome is one row of the structured per-file import report the
// caller receives; a single failed file never rolls back the others.
type FileOutcome struct {
	Path    string
	ModelID string
	Status  string // committed | duplicate | failed
	Reason  string
}

const (
	StatusCommitted = "committed"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
)

// Hints are caller-supplied overrides for a local import, mirroring the
// family/official_name/model_type parameters start_model_download_from_hf
// accepts for HuggingFace downloads.
type Hints struct {
	Family    string
	Name      string
	ModelType string
}

// Mapper is the fan-out hook run after every successful import, satisfied
// by internal/library's mapperFanout; kept as a narrow interface here so importer
// doesn't depend on mapper's mapping-config internals.
type Mapper interface {
	OnModelImported(modelID string) error
}

// Importer wires the Hasher/Classifier, Storage Layout, and Index into
// the import algorithm.
type Importer struct {
	sourceFs afero.Fs // filesystem candidate paths are read from (real OS fs in production)
	layout   *layout.Layout
	idx      *index.DB
	mapper   Mapper
	log      logging.Interface
}

func New(sourceFs afero.Fs, lay *layout.Layout, idx *index.DB, mapper Mapper, log logging.Interface) *Importer {
	return &Importer{sourceFs: sourceFs, layout: lay, idx: idx, mapper: mapper, log: log}
}

// candidate is one model-to-be: a set of source paths that will become a
// single Model's files[].
type candidate struct {
	layoutKind model.Layout
	files      []string // source paths, relative-name recoverable via filepath.Base
	incomplete bool
}

// ImportPaths runs the import algorithm over paths, returning an ordered
// per-file report. A failure on one candidate does not stop the others.
func (imp *Importer) ImportPaths(paths []string, hints Hints) ([]FileOutcome, error) {
	candidates := groupCandidates(paths)

	var outcomes []FileOutcome
	var errs *multierror.Error

	for _, cand := range candidates {
		candOutcomes, err := imp.importCandidate(cand, hints)
		outcomes = append(outcomes, candOutcomes...)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return outcomes, errs.ErrorOrNil()
}

// groupCandidates detects sharded sets (all N-of-N parts present) among
// paths; ungrouped files become single-file candidates.
func groupCandidates(paths []string) []candidate {
	type shardGroup struct {
		base  string
		ext   string
		total int
		parts map[int]string
	}

	groups := map[string]*shardGroup{}
	var singles []string

	for _, p := range paths {
		base := filepath.Base(p)
		m := shardPattern.FindStringSubmatch(base)
		if m == nil {
			singles = append(singles, p)
			continue
		}
		idx, _ := strconv.Atoi(m[2])
		total, _ := strconv.Atoi(m[3])
		key := m[1] + "|" + m[4] + "|" + strconv.Itoa(total)
		g, ok := groups[key]
		if !ok {
			g = &shardGroup{base: m[1], ext: m[4], total: total, parts: map[int]string{}}
			groups[key] = g
		}
		g.parts[idx] = p
	}

	var out []candidate
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		g := groups[k]
		files := make([]string, 0, len(g.parts))
		idxs := make([]int, 0, len(g.parts))
		for i := range g.parts {
			idxs = append(idxs, i)
		}
		sort.Ints(idxs)
		for _, i := range idxs {
			files = append(files, g.parts[i])
		}
		out = append(out, candidate{
			layoutKind: model.LayoutShardedSet,
			files:      files,
			incomplete: len(g.parts) != g.total,
		})
	}

	for _, p := range singles {
		out = append(out, candidate{layoutKind: model.LayoutSingleFile, files: []string{p}})
	}

	return out
}

func (imp *Importer) importCandidate(cand candidate, hints Hints) ([]FileOutcome, error) {
	var outcomes []FileOutcome

	var hintList []modelsig.Hint
	fileData := make(map[string][]byte, len(cand.files))
	fileHash := make(map[string]hashing.Result, len(cand.files))

	for _, src := range cand.files {
		data, err := afero.ReadFile(imp.sourceFs, src)
		if err != nil {
			outcomes = append(outcomes, FileOutcome{Path: src, Status: StatusFailed, Reason: err.Error()})
			continue
		}
		result, err := hashing.HashFile(bytes.NewReader(data))
		if err != nil {
			outcomes = append(outcomes, FileOutcome{Path: src, Status: StatusFailed, Reason: err.Error()})
			continue
		}
		fileData[src] = data
		fileHash[src] = result
		hintList = append(hintList, modelsig.Inspect(src)...)
	}

	if len(fileData) == 0 {
		return outcomes, liberr.New(liberr.KindIoError, "no readable files in candidate")
	}

	classified := classify.Classify(hintList)
	modelType := model.ModelType(classified.ModelType)
	if hints.ModelType != "" {
		modelType = model.ModelType(hints.ModelType)
	}

	family := hints.Family
	name := hints.Name
	if family == "" || name == "" {
		family, name = guessFamilyName(cand.files[0])
	}

	modelID := layout.CanonicalPath(modelType, family, name)

	firstPath := cand.files[0]
	if existingID, found, err := imp.idx.FindModelBySHA256(fileHash[firstPath].SHA256); err == nil && found {
		for _, src := range cand.files {
			outcomes = append(outcomes, FileOutcome{Path: src, ModelID: existingID, Status: StatusDuplicate})
		}
		return outcomes, nil
	}

	var files []model.FileRecord
	var totalSize int64
	var commitErrs *multierror.Error

	for _, src := range cand.files {
		data, ok := fileData[src]
		if !ok {
			continue
		}
		result := fileHash[src]
		relPath := filepath.Base(src)

		finalRel, err := imp.layout.Place(modelID, relPath, data, hashing.CollisionSuffix(result.SHA256))
		if err != nil {
			outcomes = append(outcomes, FileOutcome{Path: src, ModelID: modelID, Status: StatusFailed, Reason: err.Error()})
			commitErrs = multierror.Append(commitErrs, err)
			continue
		}

		files = append(files, model.FileRecord{
			RelPath: finalRel,
			Size:    result.Size,
			SHA256:  result.SHA256,
			BLAKE3:  result.BLAKE3,
		})
		totalSize += result.Size
		outcomes = append(outcomes, FileOutcome{Path: src, ModelID: modelID, Status: StatusCommitted})
	}

	if len(files) == 0 {
		return outcomes, commitErrs.ErrorOrNil()
	}

	reviewReasons := append([]string{}, classified.ReviewReasons...)
	if cand.incomplete {
		reviewReasons = append(reviewReasons, "incomplete_sharded_set")
	}
	sort.Strings(reviewReasons)

	m := model.Model{
		ModelID:             modelID,
		ModelType:           modelType,
		Family:              family,
		Name:                name,
		Layout:              cand.layoutKind,
		Files:               files,
		TotalSizeBytes:      totalSize,
		ArchitectureTokens:  classified.ArchitectureTokens,
		MetadataNeedsReview: classified.NeedsReview || cand.incomplete,
		ReviewReasons:       reviewReasons,
		UpdatedAt:           time.Now(),
	}

	baseline := model.Baseline{SchemaVersion: 1, Model: m}

	if err := imp.layout.WriteMetadata(modelID, baseline); err != nil {
		return outcomes, multierror.Append(commitErrs, err).ErrorOrNil()
	}

	if err := imp.idx.UpsertModel(m, baseline, nil); err != nil {
		return outcomes, multierror.Append(commitErrs, err).ErrorOrNil()
	}

	if err := imp.idx.RefreshBindingProjection(modelID); err != nil {
		return outcomes, multierror.Append(commitErrs, err).ErrorOrNil()
	}

	if imp.mapper != nil {
		if err := imp.mapper.OnModelImported(modelID); err != nil {
			if imp.log != nil {
				imp.log.WithError(err).WithField("model_id", modelID).Warn("mapper fan-out failed")
			}
		}
	}

	return outcomes, commitErrs.ErrorOrNil()
}

// guessFamilyName derives a (family, name) pair from a bare file path when
// the caller supplies no hints: the parent directory (if any) becomes the
// family, the file stem becomes the name.
func guessFamilyName(p string) (family, name string) {
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = shardPattern.ReplaceAllString(stem+ext, "$1")
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))

	dir := filepath.Base(filepath.Dir(p))
	if dir == "." || dir == "/" || dir == "" {
		return "unknown", stem
	}
	return dir, stem
}
