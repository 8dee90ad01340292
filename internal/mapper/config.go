// Package mapper translates canonical library models into the directory
// layout a host application expects, by materializing symlinks (or
// hardlinks where symlinks are unavailable) described by a per-application
// JSON mapping config — generalizing the teacher's single hardcoded
// "models/<name>" layout assumption into a data-driven fan-out rule set.
package mapper

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
)

// Config is the on-disk shape of
// launcher-data/config/model-library-translation/{app}_{appver}_{modelcfg}.json.
type Config struct {
	SchemaVersion  int         `json:"schema_version"`
	ModelRules     []ModelRule `json:"model_rules"`
	AppDirectories []string    `json:"app_directories"`
}

// ModelRule matches a subset of the catalog and describes where matching
// models should be linked to within the application's tree.
type ModelRule struct {
	Match              MatchSpec `json:"match"`
	TargetPathTemplate string    `json:"target_path_template"`
	LinkPreference     string    `json:"link_preference"` // "symlink" (default) or "hardlink"
}

// MatchSpec selects models by canonical-path component globs (path.Match
// syntax; "*" matches everything) and, optionally, restricts the rule to
// application versions satisfying a PEP 440 constraint.
type MatchSpec struct {
	ModelType    string `json:"model_type,omitempty"`
	Family       string `json:"family,omitempty"`
	Name         string `json:"name,omitempty"`
	VersionRange string `json:"version_range,omitempty"`
}

func (s MatchSpec) matchesComponents(modelType, family, name string) bool {
	return globOrEmpty(s.ModelType, modelType) &&
		globOrEmpty(s.Family, family) &&
		globOrEmpty(s.Name, name)
}

func globOrEmpty(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}

// ConfigPath builds the translation config path for an app/version.
// modelCfg selects between alternate rule sets for the same app version
// (e.g. "default" vs. a user-customized set); callers that don't
// distinguish configs should pass "default".
func ConfigPath(configDir, appID, versionTag, modelCfg string) string {
	if modelCfg == "" {
		modelCfg = "default"
	}
	return path.Join(configDir, fmt.Sprintf("%s_%s_%s.json", appID, versionTag, modelCfg))
}

// LoadConfig reads and parses a translation config from fs.
func LoadConfig(fs afero.Fs, configPath string) (Config, error) {
	var cfg Config
	data, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return cfg, liberr.Wrap(liberr.KindIoError, "reading mapping config "+configPath, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, liberr.Wrap(liberr.KindMetadataError, "parsing mapping config "+configPath, err)
	}
	return cfg, nil
}

// renderTarget substitutes {model_type}/{family}/{name}/{model_id} tokens
// in a rule's target_path_template with a matched model's components and
// joins the result under appDir.
func renderTarget(appDir, tmpl, modelType, family, name, modelID string) string {
	replacer := strings.NewReplacer(
		"{model_type}", modelType,
		"{family}", family,
		"{name}", name,
		"{model_id}", modelID,
	)
	return path.Join(appDir, replacer.Replace(tmpl))
}
