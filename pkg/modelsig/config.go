package modelsig

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the subset of a transformers-style config.json that
// classification actually consumes: the model_type discriminator, the
// primary architecture class, and a best-effort vision signal. Earlier
// drafts of this package carried a full per-architecture parameter-count
// and context-length surface; none of it survived contact with the
// classifier, which only ever asks for these three fields, so Config
// stops here rather than growing one struct per HuggingFace architecture.
type Config struct {
	ModelType    string
	Architecture string
	Vision       bool
}

func (c *Config) GetModelType() string    { return c.ModelType }
func (c *Config) GetArchitecture() string { return c.Architecture }
func (c *Config) HasVision() bool         { return c.Vision }

// visionModelTypes are model_type discriminators that are always
// multimodal, regardless of what other keys the rest of config.json
// carries (DeepSeek-VL/Janus, Gemma 3, LLaVA, mLlama, the Qwen-VL family).
var visionModelTypes = map[string]bool{
	"deepseek_vl_v2": true,
	"janus":          true,
	"multi_modality": true,
	"gemma3":         true,
	"llava":          true,
	"mllama":         true,
	"qwen2_vl":       true,
	"qwen2_5_vl":     true,
	"qwen3_vl_moe":   true,
}

// visionConfigKeys are config.json keys whose mere presence signals a
// vision tower bolted onto an otherwise text-only architecture, e.g.
// Llama 4's vision_config or Phi-3-Vision's img_processor.
var visionConfigKeys = []string{"vision_config", "img_processor"}

var (
	infinityRegex    = regexp.MustCompile(`([:,\[]\s*)Infinity(\s*[,\]\}])`)
	negInfinityRegex = regexp.MustCompile(`([:,\[]\s*)-Infinity(\s*[,\]\}])`)
	nanRegex         = regexp.MustCompile(`([:,\[]\s*)NaN(\s*[,\]\}])`)
)

// SanitizeJSONBytes rewrites the JavaScript/Python-only float literals
// (Infinity, -Infinity, NaN) that some published config.json files
// contain — NVIDIA's Nemotron family among them — into values Go's
// encoding/json will actually parse.
func SanitizeJSONBytes(data []byte) []byte {
	s := string(data)
	s = infinityRegex.ReplaceAllString(s, "${1}1e308${2}")
	s = negInfinityRegex.ReplaceAllString(s, "${1}-1e308${2}")
	s = nanRegex.ReplaceAllString(s, "${1}null${2}")
	return []byte(s)
}

// LoadModelConfig reads a transformers-style config.json and extracts the
// fields a classification Hint needs. It never tries to resolve
// architecture-specific detail beyond that: the model_type string and
// architectures[0] class name are already the hard signal the classifier
// scores on.
func LoadModelConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", configPath, err)
	}
	data = SanitizeJSONBytes(data)

	var fields struct {
		ModelType     string   `json:"model_type"`
		Architectures []string `json:"architectures"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", configPath, err)
	}
	if fields.ModelType == "" {
		return nil, fmt.Errorf("config %q has no model_type field", configPath)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", configPath, err)
	}

	cfg := &Config{ModelType: fields.ModelType}
	if len(fields.Architectures) > 0 {
		cfg.Architecture = fields.Architectures[0]
	}
	cfg.Vision = visionModelTypes[fields.ModelType] || hasVisionKey(raw)
	return cfg, nil
}

func hasVisionKey(raw map[string]json.RawMessage) bool {
	for _, key := range visionConfigKeys {
		v, ok := raw[key]
		if ok && string(v) != "null" {
			return true
		}
	}
	return false
}
