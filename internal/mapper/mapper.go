package mapper

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/MrScripty/Pumas-Library-sub004/internal/index"
	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/internal/linkreg"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
	"github.com/MrScripty/Pumas-Library-sub004/pkg/pep440"
)

// PlanStatus is the lifecycle state of a Mapping Plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanValidated PlanStatus = "validated"
	PlanApplied   PlanStatus = "applied"
	PlanAborted   PlanStatus = "aborted"
)

// PlannedLink is one link apply_mapping/dry_run would create.
type PlannedLink struct {
	ModelID             string
	SourceCanonicalPath string
	TargetAppPath       string
	LinkKind            model.LinkKind
	Conflict            bool
	ConflictReason      string
}

// Plan is the output of dry_run and the input to resolve_conflicts/apply.
type Plan struct {
	AppID      string
	VersionTag string
	Status     PlanStatus
	Links      []PlannedLink
}

// LinkOutcome is one row of the structured per-link report apply_mapping
// returns; per spec, a single failing link does not abort the plan.
type LinkOutcome struct {
	TargetAppPath string
	Status        string // applied | skipped | failed
	Reason        string
}

const (
	LinkApplied = "applied"
	LinkSkipped = "skipped"
	LinkFailed  = "failed"
)

// Mapper builds and executes Mapping Plans against the real filesystem,
// recording every materialized link in the Link Registry.
type Mapper struct {
	fs            afero.Fs // used for config reads and existence checks; symlink/hardlink creation always goes through os directly, since no filesystem abstraction in the corpus exposes link creation
	canonicalRoot string
	configDir     string
	idx           *index.DB
	registry      *linkreg.Registry
	log           logging.Interface
}

func New(fs afero.Fs, canonicalRoot, configDir string, idx *index.DB, registry *linkreg.Registry, log logging.Interface) *Mapper {
	return &Mapper{fs: fs, canonicalRoot: canonicalRoot, configDir: configDir, idx: idx, registry: registry, log: log}
}

func splitModelID(modelID string) (modelType, family, name string, ok bool) {
	parts := strings.Split(modelID, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// DryRun computes the same set of link operations apply_mapping would
// perform, without touching the filesystem, flagging any target path that
// already exists and is not a link this Mapper owns.
func (m *Mapper) DryRun(appID, versionTag, modelCfg string) (*Plan, error) {
	cfg, err := LoadConfig(m.fs, ConfigPath(m.configDir, appID, versionTag, modelCfg))
	if err != nil {
		return nil, err
	}

	models, err := m.idx.ListAll()
	if err != nil {
		return nil, err
	}

	owned, err := m.ownedTargets()
	if err != nil {
		return nil, err
	}

	plan := &Plan{AppID: appID, VersionTag: versionTag, Status: PlanDraft}

	for _, rule := range cfg.ModelRules {
		if rule.Match.VersionRange != "" && !versionInRange(rule.Match.VersionRange, versionTag) {
			continue
		}
		for _, summary := range models {
			modelType, family, name, ok := splitModelID(summary.ModelID)
			if !ok || !rule.Match.matchesComponents(modelType, family, name) {
				continue
			}
			for _, appDir := range cfg.AppDirectories {
				target := renderTarget(appDir, rule.TargetPathTemplate, modelType, family, name, summary.ModelID)
				link := PlannedLink{
					ModelID:             summary.ModelID,
					SourceCanonicalPath: summary.ModelID,
					TargetAppPath:       target,
					LinkKind:            linkKindFor(rule.LinkPreference, m.canonicalRoot, target),
				}
				if exists, _ := afero.Exists(m.fs, target); exists && owned[target] != summary.ModelID {
					link.Conflict = true
					link.ConflictReason = "target path exists and is not library-owned"
				}
				plan.Links = append(plan.Links, link)
			}
		}
	}

	plan.Status = PlanValidated
	return plan, nil
}

func (m *Mapper) ownedTargets() (map[string]string, error) {
	records, err := m.registry.All()
	if err != nil {
		return nil, err
	}
	owned := make(map[string]string, len(records))
	for _, rec := range records {
		owned[rec.TargetAppPath] = rec.SourceCanonicalPath
	}
	return owned, nil
}

func versionInRange(rangeSpec, versionTag string) bool {
	return pep440.MatchesVersionTag(rangeSpec, versionTag)
}

// linkKindFor chooses relative symlink, absolute symlink, or hardlink:
// relative symlinks are preferred whenever source and target live on the
// canonical root's filesystem; cross-filesystem targets fall back to an
// absolute symlink, and hardlink is used only when the rule explicitly
// asks for it (symlinks unavailable on the target platform/share).
func linkKindFor(preference, canonicalRoot, target string) model.LinkKind {
	if preference == "hardlink" {
		return model.LinkHardlink
	}
	if sameFilesystem(canonicalRoot, target) {
		return model.LinkSymlinkRelative
	}
	return model.LinkSymlinkAbsolute
}

func sameFilesystem(a, b string) bool {
	infoA, errA := os.Stat(filepath.Dir(a))
	infoB, errB := os.Stat(filepath.Dir(b))
	if errA != nil || errB != nil {
		return true
	}
	sysA, okA := infoA.Sys().(*syscall.Stat_t)
	sysB, okB := infoB.Sys().(*syscall.Stat_t)
	if okA && okB {
		return sysA.Dev == sysB.Dev
	}
	return true
}

// ResolveConflicts applies caller choices (skip/overwrite/rename) to every
// conflicted link in the plan, producing an applicable plan.
func (m *Mapper) ResolveConflicts(plan *Plan, choices map[string]string) error {
	for i := range plan.Links {
		link := &plan.Links[i]
		if !link.Conflict {
			continue
		}
		choice, ok := choices[link.TargetAppPath]
		if !ok {
			return liberr.New(liberr.KindValidationError, "no conflict resolution supplied for "+link.TargetAppPath)
		}
		switch choice {
		case "skip":
			link.Conflict = false
			link.ConflictReason = "skipped"
		case "overwrite":
			link.Conflict = false
		case "rename":
			link.TargetAppPath = renamedTarget(link.TargetAppPath, link.ModelID)
			link.Conflict = false
		default:
			return liberr.New(liberr.KindValidationError, "unrecognized conflict resolution: "+choice)
		}
	}
	return nil
}

func renamedTarget(target, modelID string) string {
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	suffix := strings.ReplaceAll(modelID, "/", "-")
	return base + "-" + suffix + ext
}

// Apply materializes every non-skipped link in plan and records it in the
// Link Registry. A failing link is reported but does not abort the rest.
func (m *Mapper) Apply(plan *Plan) ([]LinkOutcome, error) {
	var outcomes []LinkOutcome

	for _, link := range plan.Links {
		if link.Conflict && link.ConflictReason != "skipped" {
			outcomes = append(outcomes, LinkOutcome{TargetAppPath: link.TargetAppPath, Status: LinkSkipped, Reason: link.ConflictReason})
			continue
		}
		if link.ConflictReason == "skipped" {
			outcomes = append(outcomes, LinkOutcome{TargetAppPath: link.TargetAppPath, Status: LinkSkipped})
			continue
		}

		if err := m.materialize(link); err != nil {
			outcomes = append(outcomes, LinkOutcome{TargetAppPath: link.TargetAppPath, Status: LinkFailed, Reason: err.Error()})
			continue
		}

		rec := model.LinkRecord{
			SourceCanonicalPath: link.SourceCanonicalPath,
			TargetAppPath:       link.TargetAppPath,
			LinkKind:            link.LinkKind,
			AppID:               plan.AppID,
			VersionTag:          plan.VersionTag,
			CreatedAt:           time.Now(),
		}
		if err := m.registry.Record(rec); err != nil {
			outcomes = append(outcomes, LinkOutcome{TargetAppPath: link.TargetAppPath, Status: LinkFailed, Reason: err.Error()})
			continue
		}
		outcomes = append(outcomes, LinkOutcome{TargetAppPath: link.TargetAppPath, Status: LinkApplied})
	}

	plan.Status = PlanApplied
	return outcomes, nil
}

func (m *Mapper) materialize(link PlannedLink) error {
	sourceAbs := filepath.Join(m.canonicalRoot, link.SourceCanonicalPath)
	if err := os.MkdirAll(filepath.Dir(link.TargetAppPath), 0o755); err != nil {
		return liberr.Wrap(liberr.KindIoError, "creating app directory", err)
	}
	_ = os.Remove(link.TargetAppPath)

	switch link.LinkKind {
	case model.LinkHardlink:
		if err := os.Link(sourceAbs, link.TargetAppPath); err != nil {
			return liberr.Wrap(liberr.KindIoError, "creating hardlink", err)
		}
	case model.LinkSymlinkRelative:
		rel, err := filepath.Rel(filepath.Dir(link.TargetAppPath), sourceAbs)
		if err != nil {
			rel = sourceAbs
		}
		if err := os.Symlink(rel, link.TargetAppPath); err != nil {
			return liberr.Wrap(liberr.KindIoError, "creating relative symlink", err)
		}
	default: // LinkSymlinkAbsolute
		if m.log != nil {
			m.log.WithField("target", link.TargetAppPath).Warn("creating cross-filesystem absolute symlink")
		}
		if err := os.Symlink(sourceAbs, link.TargetAppPath); err != nil {
			return liberr.Wrap(liberr.KindIoError, "creating absolute symlink", err)
		}
	}
	return nil
}

// SelfHeal walks every Link Record; each broken link is re-created from
// the canonical source path its record names (no other copy is looked up
// by SHA-256), and entries whose link cannot be re-created are removed
// from the registry and reported.
func (m *Mapper) SelfHeal() ([]LinkOutcome, error) {
	records, err := m.registry.All()
	if err != nil {
		return nil, err
	}

	var outcomes []LinkOutcome
	for _, rec := range records {
		if _, err := os.Lstat(rec.TargetAppPath); err == nil {
			if _, err := os.Stat(rec.TargetAppPath); err == nil {
				continue // link present and resolves
			}
		}

		link := PlannedLink{
			ModelID:             rec.SourceCanonicalPath,
			SourceCanonicalPath: rec.SourceCanonicalPath,
			TargetAppPath:       rec.TargetAppPath,
			LinkKind:            rec.LinkKind,
		}
		if err := m.materialize(link); err != nil {
			_ = m.registry.Remove(rec.TargetAppPath)
			outcomes = append(outcomes, LinkOutcome{TargetAppPath: rec.TargetAppPath, Status: LinkFailed, Reason: "unrepairable: " + err.Error()})
			continue
		}
		outcomes = append(outcomes, LinkOutcome{TargetAppPath: rec.TargetAppPath, Status: LinkApplied, Reason: "healed"})
	}
	return outcomes, nil
}

// CascadeUnlink removes every Link Record for modelID and unlinks each
// target, tolerating targets that are already absent.
func (m *Mapper) CascadeUnlink(modelID string) ([]LinkOutcome, error) {
	records, err := m.registry.ForSource(modelID)
	if err != nil {
		return nil, err
	}

	var outcomes []LinkOutcome
	for _, rec := range records {
		if err := os.Remove(rec.TargetAppPath); err != nil && !os.IsNotExist(err) {
			outcomes = append(outcomes, LinkOutcome{TargetAppPath: rec.TargetAppPath, Status: LinkFailed, Reason: err.Error()})
			continue
		}
		if err := m.registry.Remove(rec.TargetAppPath); err != nil {
			outcomes = append(outcomes, LinkOutcome{TargetAppPath: rec.TargetAppPath, Status: LinkFailed, Reason: err.Error()})
			continue
		}
		outcomes = append(outcomes, LinkOutcome{TargetAppPath: rec.TargetAppPath, Status: LinkApplied})
	}
	return outcomes, nil
}
