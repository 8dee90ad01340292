package modelsig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiffusionPipelineSpec(t *testing.T) {
	data := []byte(`{
  "_class_name": "StableDiffusionPipeline",
  "_diffusers_version": "0.24.0",
  "scheduler": ["diffusers", "EulerDiscreteScheduler"],
  "unet": ["diffusers", "UNet2DConditionModel"],
  "vae": {"_class_name": "AutoencoderKL", "_library": "diffusers"}
}`)

	parsed, err := ParseDiffusionPipelineSpec(data)
	require.NoError(t, err)
	assert.Equal(t, "StableDiffusionPipeline", parsed.ClassName)
}

func TestParseDiffusionPipelineSpec_NoClassName(t *testing.T) {
	parsed, err := ParseDiffusionPipelineSpec([]byte(`{"scheduler": ["diffusers", "EulerDiscreteScheduler"]}`))
	assert.Error(t, err)
	assert.Nil(t, parsed)
}

func TestLoadDiffusionPipelineSpec(t *testing.T) {
	payload := []byte(`{
  "_class_name": "StableDiffusionPipeline",
  "scheduler": ["diffusers", "EulerDiscreteScheduler"]
}`)
	path := filepath.Join(t.TempDir(), "model_index.json")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	parsed, err := LoadDiffusionPipelineSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "StableDiffusionPipeline", parsed.ClassName)
}

func TestLoadDiffusionPipelineSpec_MissingFile(t *testing.T) {
	parsed, err := LoadDiffusionPipelineSpec(filepath.Join(t.TempDir(), "model_index.json"))
	assert.Error(t, err)
	assert.Nil(t, parsed)
}
