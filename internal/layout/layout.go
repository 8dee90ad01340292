// Package layout owns the canonical on-disk model tree
// ({model_type}/{family}/{name}/), the atomic-write protocol used for both
// model files and metadata.json, and the naming normalization rules. It is
// built on pkg/afero so tests run against an in-memory filesystem and
// production runs against the real one, following the teacher's pattern of
// threading an afero.Fs through every filesystem-touching component instead
// of calling the os package directly.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
	libafero "github.com/MrScripty/Pumas-Library-sub004/pkg/afero"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

const maxNameLen = 128

var disallowedChars = regexp.MustCompile(`[^a-z0-9._-]+`)
var runCollapse = regexp.MustCompile(`-{2,}`)

// Layout owns the canonical model tree rooted at Root, e.g.
// "<root>/shared-resources/models".
type Layout struct {
	fs   afero.Fs
	root string
	log  logging.Interface
}

func New(fs afero.Fs, root string, log logging.Interface) *Layout {
	return &Layout{fs: fs, root: root, log: log}
}

// NormalizeComponent applies the naming rules to a single path component
// (family or name): strip disallowed characters, collapse runs of '-',
// lowercase, and cap at maxNameLen.
func NormalizeComponent(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	cleaned := disallowedChars.ReplaceAllString(lower, "-")
	collapsed := runCollapse.ReplaceAllString(cleaned, "-")
	collapsed = strings.Trim(collapsed, "-")
	if len(collapsed) > maxNameLen {
		collapsed = collapsed[:maxNameLen]
	}
	if collapsed == "" {
		collapsed = "unnamed"
	}
	return collapsed
}

// CanonicalPath builds the model_id / relative directory for a model,
// normalizing each component independently.
func CanonicalPath(modelType model.ModelType, family, name string) string {
	return path.Join(string(modelType), NormalizeComponent(family), NormalizeComponent(name))
}

func (l *Layout) absPath(modelID string) string {
	return path.Join(l.root, modelID)
}

// Place writes data to {canonical}.tmp under the model directory, fsyncs,
// and renames onto the final relative path — rename is the only observable
// commit point. On a rename collision (case: pathname taken by an
// unrelated existing file) a "-<8-hex>" suffix derived from sha256Prefix is
// appended before the extension.
func (l *Layout) Place(modelID, relPath string, data []byte, sha256Prefix string) (string, error) {
	finalRel := relPath
	finalAbs := path.Join(l.absPath(modelID), finalRel)

	if exists, _ := libafero.Exists(l.fs, finalAbs); exists {
		ext := path.Ext(finalRel)
		base := strings.TrimSuffix(finalRel, ext)
		suffix := sha256Prefix
		if len(suffix) > 8 {
			suffix = suffix[:8]
		}
		finalRel = fmt.Sprintf("%s-%s%s", base, suffix, ext)
		finalAbs = path.Join(l.absPath(modelID), finalRel)
	}

	if err := l.fs.MkdirAll(path.Dir(finalAbs), 0o755); err != nil {
		return "", liberr.Wrap(liberr.KindIoError, "creating model directory", err)
	}

	if err := libafero.AtomicWriteFile(l.fs, finalAbs, data, 0o644); err != nil {
		return "", liberr.Wrap(liberr.KindIoError, "writing model file atomically", err)
	}

	return finalRel, nil
}

// WriteMetadata atomically writes the immutable metadata.json baseline for
// a model.
func (l *Layout) WriteMetadata(modelID string, baseline model.Baseline) error {
	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return liberr.Wrap(liberr.KindMetadataError, "marshaling baseline metadata", err)
	}

	metaPath := path.Join(l.absPath(modelID), "metadata.json")
	if err := l.fs.MkdirAll(path.Dir(metaPath), 0o755); err != nil {
		return liberr.Wrap(liberr.KindIoError, "creating model directory", err)
	}

	if err := libafero.AtomicWriteFile(l.fs, metaPath, data, 0o644); err != nil {
		return liberr.Wrap(liberr.KindIoError, "writing metadata.json atomically", err)
	}
	return nil
}

// ReadMetadata loads the baseline metadata.json for a model.
func (l *Layout) ReadMetadata(modelID string) (model.Baseline, error) {
	var baseline model.Baseline
	metaPath := path.Join(l.absPath(modelID), "metadata.json")

	data, err := libafero.ReadFile(l.fs, metaPath)
	if err != nil {
		return baseline, liberr.Wrap(liberr.KindMetadataError, "reading metadata.json", err)
	}
	if err := json.Unmarshal(data, &baseline); err != nil {
		return baseline, liberr.Wrap(liberr.KindMetadataError, "parsing metadata.json", err)
	}
	return baseline, nil
}

// Delete removes the canonical directory for modelID. Callers are
// responsible for unlinking Link Records first (the Mapper's
// cascade_unlink); Delete only removes the canonical tree itself. A
// failure is returned wrapped as a liberr.Error of kind IoError.
func (l *Layout) Delete(modelID string) error {
	if err := l.fs.RemoveAll(l.absPath(modelID)); err != nil {
		return liberr.Wrap(liberr.KindIoError, "removing canonical model directory", err)
	}
	return nil
}

// ListCanonical walks the canonical tree and returns every model_id found
// (a directory three levels deep containing metadata.json).
func (l *Layout) ListCanonical() ([]string, error) {
	var ids []string

	err := libafero.Walk(l.fs, l.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info == nil || info.IsDir() {
			return nil
		}
		if path.Base(p) != "metadata.json" {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, l.root), "/")
		modelID := path.Dir(rel)
		ids = append(ids, modelID)
		return nil
	})
	if err != nil {
		return nil, liberr.Wrap(liberr.KindIoError, "walking canonical model tree", err)
	}
	return ids, nil
}
