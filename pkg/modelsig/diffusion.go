package modelsig

import (
	"encoding/json"
	"fmt"
	"os"
)

// DiffusionPipelineSpec is the pipeline identity pulled from a diffusers
// model_index.json: the pipeline class name, which is the only field
// Inspect treats as a hard signal. model_index.json also enumerates each
// pipeline component (scheduler, text_encoder, unet/transformer, vae) with
// its own library/class pair, but nothing downstream of Inspect consumes
// that detail, so it isn't parsed here.
type DiffusionPipelineSpec struct {
	ClassName string
}

// LoadDiffusionPipelineSpec loads and parses a diffusers model_index.json file.
func LoadDiffusionPipelineSpec(modelIndexPath string) (*DiffusionPipelineSpec, error) {
	data, err := os.ReadFile(modelIndexPath)
	if err != nil {
		return nil, fmt.Errorf("reading model index %q: %w", modelIndexPath, err)
	}

	data = SanitizeJSONBytes(data)
	return ParseDiffusionPipelineSpec(data)
}

// ParseDiffusionPipelineSpec parses a diffusers model_index.json payload.
func ParseDiffusionPipelineSpec(data []byte) (*DiffusionPipelineSpec, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing model index: %w", err)
	}

	className := parseJSONStringField(raw, "_class_name", "class_name", "className")
	if className == "" {
		return nil, fmt.Errorf("model index did not contain a pipeline _class_name")
	}

	return &DiffusionPipelineSpec{ClassName: className}, nil
}

func parseJSONStringField(values map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := values[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil && value != "" {
			return value
		}
	}
	return ""
}
