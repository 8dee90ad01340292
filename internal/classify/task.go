package classify

import (
	"regexp"
	"sort"
	"strings"
)

// canonicalOrder fixes the sort order used when multiple modalities appear
// on one side of a signature, so the same set always normalizes to the same
// string regardless of input ordering.
var canonicalOrder = []string{
	"text", "image", "audio", "video", "document", "mask", "keypoints",
	"action", "3d", "embedding", "tabular", "timeseries", "rl-state",
	"any", "unknown",
}

var canonicalRank = func() map[string]int {
	m := make(map[string]int, len(canonicalOrder))
	for i, t := range canonicalOrder {
		m[t] = i
	}
	return m
}()

// modalityAliases maps loose raw tokens onto the canonical modality set.
var modalityAliases = map[string]string{
	"txt":     "text",
	"speech":  "audio",
	"sound":   "audio",
	"photo":   "image",
	"picture": "image",
	"pic":     "image",
	"img":     "image",
	"vid":     "video",
	"movie":   "video",
	"doc":     "document",
	"pdf":     "document",
	"pose":    "keypoints",
	"3d-mesh": "3d",
	"mesh":    "3d",
	"table":   "tabular",
	"ts":      "timeseries",
	"state":   "rl-state",
	"vector":  "embedding",
	"emb":     "embedding",
}

var arrowSeparator = regexp.MustCompile(`\s*(->|–>|—>|\bto\b)\s*`)
var tokenSplitter = regexp.MustCompile(`[,\s/&+]+`)

// TaskSignature is the result of normalizing a raw HuggingFace-style task
// tag into the library's canonical form.
type TaskSignature struct {
	Key    string // "<inputs>-><outputs>"
	Status string // "ok" or "error"
	Reason string // review reason when Status == "error"
}

// NormalizeTaskSignature canonicalizes a raw task string into
// signature_key = <inputs>-><outputs>, applying aliasing, sorting, and
// dedup. A string with no directional separator, or whose two sides both
// normalize to no known modality, yields unknown->unknown with status
// "error". It is idempotent: NormalizeTaskSignature(s.Key) == s for any
// previously normalized s.
func NormalizeTaskSignature(raw string) TaskSignature {
	raw = strings.TrimSpace(raw)
	if raw == "" || !arrowSeparator.MatchString(raw) {
		return TaskSignature{Key: "unknown->unknown", Status: "error", Reason: "invalid-task-signature"}
	}

	parts := arrowSeparator.Split(raw, 2)
	if len(parts) != 2 {
		return TaskSignature{Key: "unknown->unknown", Status: "error", Reason: "invalid-task-signature"}
	}

	inputs := normalizeModalitySet(parts[0])
	outputs := normalizeModalitySet(parts[1])

	if len(inputs) == 0 {
		inputs = []string{"unknown"}
	}
	if len(outputs) == 0 {
		outputs = []string{"unknown"}
	}

	key := strings.Join(inputs, ",") + "->" + strings.Join(outputs, ",")
	if key == "unknown->unknown" {
		return TaskSignature{Key: key, Status: "error", Reason: "invalid-task-signature"}
	}
	return TaskSignature{Key: key, Status: "ok"}
}

func normalizeModalitySet(raw string) []string {
	tokens := tokenSplitter.Split(strings.ToLower(strings.TrimSpace(raw)), -1)

	seen := map[string]bool{}
	var out []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if alias, ok := modalityAliases[tok]; ok {
			tok = alias
		}
		if _, known := canonicalRank[tok]; !known {
			tok = "unknown"
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}

	sort.Slice(out, func(i, j int) bool { return canonicalRank[out[i]] < canonicalRank[out[j]] })
	return out
}
