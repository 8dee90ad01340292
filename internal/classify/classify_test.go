package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/modelsig"
)

func TestClassifyPrimaryHardAutoAccept(t *testing.T) {
	hints := []modelsig.Hint{
		{Kind: modelsig.SignalHard, ModelTypeGuess: "llm", ArchitectureToken: "llama", Source: "gguf:general.architecture"},
		{Kind: modelsig.SignalHard, ModelTypeGuess: "llm", ArchitectureToken: "Q4_K_M", Source: "gguf:general.file_type"},
	}

	result := Classify(hints)
	require.Equal(t, "llm", result.ModelType)
	require.GreaterOrEqual(t, result.Score, thresholdAutoAccept)
	require.False(t, result.NeedsReview)
}

func TestClassifyConflictingHardYieldsUnknown(t *testing.T) {
	hints := []modelsig.Hint{
		{Kind: modelsig.SignalHard, ModelTypeGuess: "llm", Source: "config.json:model_type"},
		{Kind: modelsig.SignalHard, ModelTypeGuess: "vision", Source: "config.json:vision"},
	}

	result := Classify(hints)
	require.Equal(t, "unknown", result.ModelType)
	require.Contains(t, result.ReviewReasons, "model-type-conflict")
	require.True(t, result.NeedsReview)
}

func TestClassifyConflictingSoftLowersScoreBelowThreshold(t *testing.T) {
	hints := []modelsig.Hint{
		{Kind: modelsig.SignalHard, ModelTypeGuess: "llm", Source: "config.json:model_type"},
		{Kind: modelsig.SignalSoft, ModelTypeGuess: "vision", Source: "repo-tag"},
	}

	result := Classify(hints)
	// 0.70 - 0.20 = 0.50, below the unknown threshold
	require.Equal(t, "unknown", result.ModelType)
	require.Contains(t, result.ReviewReasons, "model-type-unresolved")
}

func TestClassifyNoHardSignalIsUnresolved(t *testing.T) {
	hints := []modelsig.Hint{
		{Kind: modelsig.SignalSoft, ModelTypeGuess: "llm", Source: "safetensors:presence"},
	}

	result := Classify(hints)
	require.Equal(t, "unknown", result.ModelType)
	require.Contains(t, result.ReviewReasons, "model-type-unresolved")
}

func TestNormalizeTaskSignatureIdempotent(t *testing.T) {
	cases := []string{
		"Text to Image",
		"text,image -> image",
		"galactic-to-cosmic",
		"",
	}

	for _, raw := range cases {
		first := NormalizeTaskSignature(raw)
		second := NormalizeTaskSignature(first.Key)
		require.Equal(t, first, second, "not idempotent for input %q", raw)
	}
}

func TestNormalizeTaskSignatureUnknownFallback(t *testing.T) {
	sig := NormalizeTaskSignature("galactic-to-cosmic")
	require.Equal(t, "unknown->unknown", sig.Key)
	require.Equal(t, "error", sig.Status)
	require.Equal(t, "invalid-task-signature", sig.Reason)
}

func TestNormalizeTaskSignatureAliasesAndSorting(t *testing.T) {
	sig := NormalizeTaskSignature("speech,txt -> img")
	require.Equal(t, "text,audio->image", sig.Key)
	require.Equal(t, "ok", sig.Status)
}
