// Copyright (c) Microsoft. All rights reserved.

package agentframework

// UsageDetails holds token counts for a model response.
type UsageDetails struct {
	InputTokens  int `json:"inputTokenCount,omitempty"`
	OutputTokens int `json:"outputTokenCount,omitempty"`
	TotalTokens  int `json:"totalTokenCount,omitempty"`
}

// Add returns the element-wise sum of u and o.
func (u UsageDetails) Add(o UsageDetails) UsageDetails {
	return UsageDetails{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.TotalTokens + o.TotalTokens,
	}
}

// IsZero reports whether no tokens were recorded.
func (u UsageDetails) IsZero() bool {
	return u == UsageDetails{}
}
