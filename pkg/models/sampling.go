package models

import "strings"

// SamplingOptions are optional decoding parameters. Nil fields are not sent.
type SamplingOptions struct {
	Temperature      *float32
	TopP             *float32
	PresencePenalty  *float32
	FrequencyPenalty *float32
}

// IsZero reports whether no sampling parameter is set.
func (s SamplingOptions) IsZero() bool {
	return s.Temperature == nil && s.TopP == nil && s.PresencePenalty == nil && s.FrequencyPenalty == nil
}

// reasoning model families reject temperature/top_p/penalties.
var noSamplingPrefixes = []string{"o1", "o3", "o4", "gpt-5", "deepseek-reasoner"}

// SupportsSampling reports whether the model accepts sampling parameters.
func SupportsSampling(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	for _, p := range noSamplingPrefixes {
		if m == p || strings.HasPrefix(m, p+"-") || strings.HasPrefix(m, p+".") {
			return false
		}
	}
	return true
}

// ForModel strips every sampling parameter when the model does not support them.
func (s SamplingOptions) ForModel(model string) SamplingOptions {
	if !SupportsSampling(model) {
		return SamplingOptions{}
	}
	return s
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }
