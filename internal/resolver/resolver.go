// Package resolver implements the Dependency Resolver: given a model and
// execution context, it produces a deterministic declarative requirements
// report. It never executes installs — resolve-only, per the spec's
// resolve-only contract — and every error is carried inside a successful
// response rather than returned as a transport error.
package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/pep440"
)

// ValidationState is the top-level or per-binding resolution outcome.
type ValidationState string

const (
	StateResolved                   ValidationState = "resolved"
	StateUnknownProfile             ValidationState = "unknown_profile"
	StateInvalidProfile             ValidationState = "invalid_profile"
	StateProfileConflict            ValidationState = "profile_conflict"
	StateManualInterventionRequired ValidationState = "manual_intervention_required"
)

// ValidationError is one structured complaint attached to a response or
// binding.
type ValidationError struct {
	Code      string `json:"code"`
	Scope     string `json:"scope"`
	BindingID string `json:"binding_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

// Requirement is one resolved python package pin.
type Requirement struct {
	Kind                string   `json:"kind"`
	Name                string   `json:"name"`
	ExactPin            string   `json:"exact_pin"`
	IndexURL            string   `json:"index_url,omitempty"`
	ExtraIndexURLs      []string `json:"extra_index_urls,omitempty"`
	Markers             string   `json:"markers,omitempty"`
	PythonRequires      string   `json:"python_requires,omitempty"`
	PlatformConstraints []string `json:"platform_constraints,omitempty"`
	Hashes              []string `json:"hashes,omitempty"`
	Source              string   `json:"source,omitempty"`
}

// PinSummary tallies how many required pins a binding has and how many of
// those are actually pinned.
type PinSummary struct {
	Pinned        bool `json:"pinned"`
	RequiredCount int  `json:"required_count"`
	PinnedCount   int  `json:"pinned_count"`
	MissingCount  int  `json:"missing_count"`
}

// RequiredPin names one package required for a binding along with why.
type RequiredPin struct {
	Name    string   `json:"name"`
	Reasons []string `json:"reasons"`
}

// BindingResult is one resolved binding within a ResolverResponse.
type BindingResult struct {
	BindingID        string            `json:"binding_id"`
	ProfileID        string            `json:"profile_id"`
	ProfileVersion   string            `json:"profile_version"`
	ProfileHash      string            `json:"profile_hash,omitempty"`
	BackendKey       string            `json:"backend_key,omitempty"`
	PlatformSelector string            `json:"platform_selector,omitempty"`
	EnvironmentKind  string            `json:"environment_kind,omitempty"`
	EnvID            string            `json:"env_id,omitempty"`
	ValidationState  ValidationState   `json:"validation_state"`
	ValidationErrors []ValidationError `json:"validation_errors"`
	PinSummary       PinSummary        `json:"pin_summary"`
	RequiredPins     []RequiredPin     `json:"required_pins"`
	MissingPins      []string          `json:"missing_pins"`
	Requirements     []Requirement     `json:"requirements"`

	BindingKind string `json:"-"`
	Priority    int    `json:"-"`
}

// Response is the normative Resolver Contract.
type Response struct {
	ModelID                   string            `json:"model_id"`
	PlatformKey               string            `json:"platform_key"`
	BackendKey                *string           `json:"backend_key"`
	DependencyContractVersion int               `json:"dependency_contract_version"`
	ValidationState           ValidationState   `json:"validation_state"`
	ValidationErrors          []ValidationError `json:"validation_errors"`
	MissingPins               []string          `json:"missing_pins"`
	Bindings                  []BindingResult   `json:"bindings"`
}

// Profile is the subset of a DependencyProfile the resolver needs.
type Profile struct {
	ProfileID                 string
	ProfileVersion            string
	ProfileHash               string
	DependencyContractVersion int
	PythonPackages            []PackageSpec
}

// PackageSpec is one pin declaration from a profile's spec_json.
type PackageSpec struct {
	Name                string
	VersionSpec         string // e.g. "==2.5.0" or ">=2.5" (non-exact -> unpinned)
	IndexURL            string
	ExtraIndexURLs      []string
	Markers             string
	PythonRequires      string
	PlatformConstraints []string
	Hashes              []string
}

// Context is the input a resolve call needs beyond the model's bindings.
type Context struct {
	ModelID            string
	PlatformKey        string
	BackendKey         string
	Modalities         []string // image/audio/... present on the model, for backend-required pins
	SelectedBindingIDs []string
}

// BindingInput is one active binding candidate, joined with its profile.
type BindingInput struct {
	BindingID        string
	ProfileID        string
	ProfileVersion   string
	BindingKind      string
	BackendKey       string
	PlatformSelector string
	Priority         int
	Profile          *Profile // nil when the profile_id/version is unknown
}

// backendRequiredPins maps a backend_key to the packages it always needs.
var backendRequiredPins = map[string][]string{
	"pytorch": {"torch"},
}

// modalityRequiredPins maps a modality token to an additional required
// package when that modality is present on the model.
var modalityRequiredPins = map[string]string{
	"image": "torchvision",
	"audio": "torchaudio",
}

// Resolve runs the resolve-only algorithm over a set of active bindings
// already filtered to the given context (platform selector / backend key
// filtering is the caller's responsibility, mirroring step 2 of the
// algorithm, since that filtering depends on the Index's stored rows).
func Resolve(ctx Context, bindings []BindingInput) Response {
	resp := Response{
		ModelID:                   ctx.ModelID,
		PlatformKey:               ctx.PlatformKey,
		DependencyContractVersion: 1,
	}
	if ctx.BackendKey != "" {
		bk := ctx.BackendKey
		resp.BackendKey = &bk
	}

	if len(bindings) == 0 {
		resp.ValidationState = StateResolved
		return resp
	}

	results := make([]BindingResult, 0, len(bindings))
	for _, b := range bindings {
		results = append(results, resolveBinding(b, ctx))
	}

	sort.Slice(results, func(i, j int) bool {
		a, c := results[i], results[j]
		if a.BindingKind != c.BindingKind {
			return a.BindingKind < c.BindingKind
		}
		if a.BackendKey != c.BackendKey {
			return a.BackendKey < c.BackendKey
		}
		if a.PlatformSelector != c.PlatformSelector {
			return a.PlatformSelector < c.PlatformSelector
		}
		if a.ProfileID != c.ProfileID {
			return a.ProfileID < c.ProfileID
		}
		if a.ProfileVersion != c.ProfileVersion {
			return a.ProfileVersion < c.ProfileVersion
		}
		if a.Priority != c.Priority {
			return a.Priority < c.Priority
		}
		return a.BindingID < c.BindingID
	})

	resp.Bindings = results
	resp.ValidationState = aggregateState(results)

	missing := map[string]bool{}
	for _, r := range results {
		for _, m := range r.MissingPins {
			missing[m] = true
		}
	}
	resp.MissingPins = sortedKeys(missing)

	// env_id conflict detection: group by every env_id component except
	// profile_hash, flag if hashes differ within a group.
	byEnv := map[string][]string{} // env_id without hash -> profile_hashes seen
	for _, r := range results {
		if r.EnvID == "" {
			continue
		}
		backendKey := "any"
		if r.BackendKey != "" {
			backendKey = r.BackendKey
		}
		envKey := fmt.Sprintf("%s:%s:%s:%s:%s", r.EnvironmentKind, r.ProfileID, r.ProfileVersion, ctx.PlatformKey, backendKey)
		byEnv[envKey] = append(byEnv[envKey], r.ProfileHash)
	}
	for _, hashes := range byEnv {
		if !allEqual(hashes) {
			resp.ValidationState = StateProfileConflict
			break
		}
	}

	return resp
}

func resolveBinding(b BindingInput, ctx Context) BindingResult {
	result := BindingResult{
		BindingID:        b.BindingID,
		ProfileID:        b.ProfileID,
		ProfileVersion:   b.ProfileVersion,
		BackendKey:       b.BackendKey,
		PlatformSelector: b.PlatformSelector,
		BindingKind:      b.BindingKind,
		Priority:         b.Priority,
	}

	if b.Profile == nil {
		result.ValidationState = StateUnknownProfile
		result.ValidationErrors = []ValidationError{{
			Code: "declared_bindings_unresolved", Scope: "binding", BindingID: b.BindingID,
			Message: fmt.Sprintf("profile %s@%s not found", b.ProfileID, b.ProfileVersion),
		}}
		return result
	}

	profile := b.Profile
	result.ProfileHash = profile.ProfileHash
	result.EnvironmentKind = "python"
	backendKey := "any"
	if b.BackendKey != "" {
		backendKey = b.BackendKey
	}
	result.EnvID = fmt.Sprintf("%s:%s:%s:%s:%s:%s", result.EnvironmentKind, b.ProfileID, b.ProfileVersion, profile.ProfileHash, ctx.PlatformKey, backendKey)

	if profile.DependencyContractVersion != 1 {
		result.ValidationState = StateInvalidProfile
		result.ValidationErrors = []ValidationError{{
			Code: "unsupported_contract_version", Scope: "profile", BindingID: b.BindingID,
			Message: fmt.Sprintf("expected dependency_contract_version 1, got %d", profile.DependencyContractVersion),
		}}
		return result
	}

	required := requiredPinsFor(b, ctx)
	requiredNames := map[string]bool{}
	for _, rp := range required {
		requiredNames[rp.Name] = true
	}

	var missing []string
	var reqs []Requirement
	manualIntervention := false
	var errs []ValidationError

	bySpec := map[string]PackageSpec{}
	for _, pkg := range profile.PythonPackages {
		bySpec[pkg.Name] = pkg
	}

	for name := range requiredNames {
		pkg, found := bySpec[name]
		if !found {
			missing = append(missing, name)
			continue
		}
		exact, ok := pep440.IsExactPin(pkg.VersionSpec)
		if !ok {
			manualIntervention = true
			errs = append(errs, ValidationError{
				Code: "unpinned_dependency", Scope: "requirement", BindingID: b.BindingID, Field: name,
				Message: fmt.Sprintf("%s version %q is not an exact PEP 440 pin", name, pkg.VersionSpec),
			})
			missing = append(missing, name)
			continue
		}
		reqs = append(reqs, Requirement{
			Kind: "python_package", Name: name, ExactPin: exact,
			IndexURL: pkg.IndexURL, ExtraIndexURLs: pkg.ExtraIndexURLs,
			Markers: pkg.Markers, PythonRequires: pkg.PythonRequires,
			PlatformConstraints: pkg.PlatformConstraints, Hashes: pkg.Hashes,
		})
	}

	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Kind != reqs[j].Kind {
			return reqs[i].Kind < reqs[j].Kind
		}
		if reqs[i].Name != reqs[j].Name {
			return reqs[i].Name < reqs[j].Name
		}
		return reqs[i].ExactPin < reqs[j].ExactPin
	})
	sort.Strings(missing)

	result.RequiredPins = required
	result.MissingPins = missing
	result.Requirements = reqs
	result.PinSummary = PinSummary{
		Pinned:        len(missing) == 0,
		RequiredCount: len(requiredNames),
		PinnedCount:   len(requiredNames) - len(missing),
		MissingCount:  len(missing),
	}
	result.ValidationErrors = errs

	switch {
	case manualIntervention:
		result.ValidationState = StateManualInterventionRequired
	default:
		result.ValidationState = StateResolved
	}

	return result
}

// requiredPinsFor computes the required-pin set from backend/modality
// precedence: binding-level override (backend_key) first, then metadata
// modalities, falling through to an empty set if nothing applies.
func requiredPinsFor(b BindingInput, ctx Context) []RequiredPin {
	seen := map[string][]string{}

	if b.BackendKey != "" {
		for _, pkg := range backendRequiredPins[b.BackendKey] {
			seen[pkg] = append(seen[pkg], "backend_required")
		}
	}
	for _, modality := range ctx.Modalities {
		if pkg, ok := modalityRequiredPins[modality]; ok {
			seen[pkg] = append(seen[pkg], "modality_required")
		}
	}

	var out []RequiredPin
	for name, reasons := range seen {
		out = append(out, RequiredPin{Name: name, Reasons: reasons})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func aggregateState(results []BindingResult) ValidationState {
	hasConflict := false
	hasInvalid := false
	hasUnknown := false
	hasManual := false

	for _, r := range results {
		switch r.ValidationState {
		case StateProfileConflict:
			hasConflict = true
		case StateInvalidProfile:
			hasInvalid = true
		case StateUnknownProfile:
			hasUnknown = true
		case StateManualInterventionRequired:
			hasManual = true
		}
	}

	switch {
	case hasConflict:
		return StateProfileConflict
	case hasInvalid:
		return StateInvalidProfile
	case hasUnknown:
		return StateUnknownProfile
	case hasManual:
		return StateManualInterventionRequired
	default:
		return StateResolved
	}
}

func allEqual(in []string) bool {
	for i := 1; i < len(in); i++ {
		if in[i] != in[0] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HashProfileSpec computes a profile's canonical content hash from its
// normalized spec_json, used to enforce the immutable-profile-identity
// invariant when a profile is written.
func HashProfileSpec(specJSON []byte) (string, error) {
	var normalized interface{}
	if err := json.Unmarshal(specJSON, &normalized); err != nil {
		return "", fmt.Errorf("parsing profile spec for hashing: %w", err)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("re-marshaling profile spec for hashing: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
