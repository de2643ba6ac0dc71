package convert

import (
	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/wilhg/parlor/pkg/chat"
)

// TokenEstimator estimates token usage of text content.
type TokenEstimator func(text string) int

// RuneEstimator is the fallback estimator: one token per rune.
func RuneEstimator(text string) int { return len([]rune(text)) }

// NewTikTokenEstimator returns a TokenEstimator backed by tiktoken-go for the
// given model. If the model is unknown, EncodingForModel returns an error.
func NewTikTokenEstimator(model string) (TokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// Budget trims a chronological item list to a token budget, preferring the
// newest items. Hidden-context items are pinned: they carry state tags
// (<CAT_NAME_SELECTED> and friends) later turns depend on, so they are
// included before anything else. Result stays in chronological order.
func Budget(items []chat.ThreadItem, maxTokens int, est TokenEstimator) []chat.ThreadItem {
	if est == nil {
		est = RuneEstimator
	}
	if maxTokens <= 0 {
		return items
	}

	keep := make(map[string]bool, len(items))
	used := 0
	for _, item := range items {
		if item.Type != chat.ItemHiddenContext {
			continue
		}
		keep[item.ID] = true
		used += est(item.Text)
	}
	// Newest first for the remaining budget.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if keep[item.ID] {
			continue
		}
		cost := est(item.Text)
		if used+cost > maxTokens {
			continue
		}
		keep[item.ID] = true
		used += cost
	}

	out := make([]chat.ThreadItem, 0, len(items))
	for _, item := range items {
		if keep[item.ID] {
			out = append(out, item)
		}
	}
	return out
}
