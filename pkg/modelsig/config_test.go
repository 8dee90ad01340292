package modelsig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadModelConfig(t *testing.T) {
	path := writeConfig(t, `{
		"model_type": "llama",
		"architectures": ["LlamaForCausalLM"],
		"torch_dtype": "bfloat16"
	}`)

	cfg, err := LoadModelConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "llama", cfg.GetModelType())
	assert.Equal(t, "LlamaForCausalLM", cfg.GetArchitecture())
	assert.False(t, cfg.HasVision())
}

func TestLoadModelConfig_VisionModelType(t *testing.T) {
	path := writeConfig(t, `{"model_type": "llava", "architectures": ["LlavaForConditionalGeneration"]}`)

	cfg, err := LoadModelConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.HasVision())
}

func TestLoadModelConfig_VisionConfigKey(t *testing.T) {
	// llama4 has no dedicated vision model_type; the vision_config key
	// bolted onto an otherwise text model_type is the only signal.
	path := writeConfig(t, `{
		"model_type": "llama4",
		"architectures": ["Llama4ForConditionalGeneration"],
		"vision_config": {"hidden_size": 1408}
	}`)

	cfg, err := LoadModelConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.HasVision())
}

func TestLoadModelConfig_MissingModelType(t *testing.T) {
	path := writeConfig(t, `{"architectures": ["SomeForCausalLM"]}`)

	_, err := LoadModelConfig(path)
	assert.Error(t, err)
}

func TestSanitizeJSONBytes(t *testing.T) {
	in := []byte(`{"a": Infinity, "b": -Infinity, "c": NaN}`)
	out := SanitizeJSONBytes(in)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &parsed))
	assert.Equal(t, 1e308, parsed["a"])
	assert.Equal(t, -1e308, parsed["b"])
	assert.Nil(t, parsed["c"])
}
