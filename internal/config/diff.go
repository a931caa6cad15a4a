package config

import (
	"slices"

	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
)

// ConfigDiff lists the hot-reloadable settings that differ between two
// configs. Anything else requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	WeightsChanged bool
	NewWeights     scoring.Weights

	ThresholdChanged bool
	NewThreshold     float64

	// RestartRequired is set when a setting that cannot be applied at
	// runtime changed (providers, cache, events, keyword handling).
	RestartRequired bool
}

// Changed reports whether any hot-reloadable setting differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.WeightsChanged || d.ThresholdChanged
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if ow, nw := old.Evaluation.EffectiveWeights(), new.Evaluation.EffectiveWeights(); ow != nw {
		d.WeightsChanged = true
		d.NewWeights = nw
	}
	if ot, nt := old.Evaluation.EffectiveThreshold(), new.Evaluation.EffectiveThreshold(); ot != nt {
		d.ThresholdChanged = true
		d.NewThreshold = nt
	}

	d.RestartRequired = !sameProviders(old.Providers, new.Providers) ||
		old.Cache != new.Cache ||
		old.Events != new.Events ||
		old.Server.ListenAddr != new.Server.ListenAddr ||
		!sameKeywordHandling(old.Evaluation, new.Evaluation)
	return d
}

func sameProviders(a, b ProvidersConfig) bool {
	if len(a.EmbeddingsFallback) != len(b.EmbeddingsFallback) || !sameEntry(a.Embeddings, b.Embeddings) {
		return false
	}
	for i := range a.EmbeddingsFallback {
		if !sameEntry(a.EmbeddingsFallback[i], b.EmbeddingsFallback[i]) {
			return false
		}
	}
	return true
}

// sameEntry ignores Options, which only tune transport details.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.Model == b.Model && a.BaseURL == b.BaseURL && a.APIKey == b.APIKey
}

func sameKeywordHandling(a, b EvaluationConfig) bool {
	if a.Normalizer != b.Normalizer || a.KeywordMinLength != b.KeywordMinLength || a.KeywordExtractor != b.KeywordExtractor {
		return false
	}
	if len(a.Synonyms) != len(b.Synonyms) {
		return false
	}
	for k, av := range a.Synonyms {
		bv, ok := b.Synonyms[k]
		if !ok || !slices.Equal(av, bv) {
			return false
		}
	}
	return true
}

