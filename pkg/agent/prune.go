package agent

import (
	"sort"

	"github.com/cexll/claudesdk-go/pkg/types"
)

// PrunePolicy selects which messages survive when history outgrows the
// token target.
type PrunePolicy int

const (
	// PruneRecentFirst keeps the newest messages.
	PruneRecentFirst PrunePolicy = iota
	// PrunePreferToolUse keeps tool traffic over plain text.
	PrunePreferToolUse
	// PrunePreferUserMessages keeps user turns over assistant turns.
	PrunePreferUserMessages
	// PruneSmart scores messages by role and content kind.
	PruneSmart
)

// PruneConfig bounds conversation history carried with a query.
type PruneConfig struct {
	// TargetTokens is the soft limit that triggers pruning.
	TargetTokens int
	// MaxTokens is the hard budget kept messages must fit. Zero means the
	// target doubles as the hard budget.
	MaxTokens int
	Policy    PrunePolicy
	// AlwaysKeep lists message ids retained unconditionally.
	AlwaysKeep []string
}

const (
	charsPerToken    = 4
	perMessageTokens = 10
)

// estimateMessage approximates a message's token footprint.
func estimateMessage(m ChatMessage) int {
	chars := 0
	for _, block := range m.Content {
		switch b := block.(type) {
		case types.TextBlock:
			chars += len(b.Text)
		case types.ToolUseBlock:
			chars += len(b.Name) + len(b.Input)
		case types.ToolResultBlock:
			chars += len(b.Content)
		case types.ThinkingBlock:
			chars += len(b.Thinking)
		case types.ImageBlock:
			chars += len(b.Source.Data)
		}
	}
	return chars/charsPerToken + perMessageTokens
}

// EstimateTokens approximates the token footprint of a history slice.
// Adding a message never decreases the estimate.
func EstimateTokens(history []ChatMessage) int {
	total := 0
	for _, m := range history {
		total += estimateMessage(m)
	}
	return total
}

func hasBlock(m ChatMessage, blockType string) bool {
	for _, block := range m.Content {
		switch block.(type) {
		case types.ToolUseBlock:
			if blockType == "tool_use" {
				return true
			}
		case types.ToolResultBlock:
			if blockType == "tool_result" {
				return true
			}
		}
	}
	return false
}

func score(policy PrunePolicy, index int, m ChatMessage) float64 {
	switch policy {
	case PruneRecentFirst:
		return float64(index)
	case PrunePreferToolUse:
		if hasBlock(m, "tool_use") || hasBlock(m, "tool_result") {
			return 10
		}
		return 1
	case PrunePreferUserMessages:
		if m.Role == types.RoleUser {
			return 10
		}
		return 1
	default: // PruneSmart
		if m.Role == types.RoleUser {
			if hasBlock(m, "tool_result") || hasBlock(m, "tool_use") {
				return 10
			}
			return 5
		}
		switch {
		case hasBlock(m, "tool_use"):
			return 8
		case hasBlock(m, "tool_result"):
			return 6
		default:
			return 1
		}
	}
}

// PruneHistory drops low-value messages until the kept set fits the hard
// budget. Always-keep ids survive unconditionally and are charged against
// the budget before candidates are considered. The result preserves the
// original message order.
func PruneHistory(history []ChatMessage, cfg PruneConfig) (kept []ChatMessage, removed, freed int) {
	before := EstimateTokens(history)
	if cfg.TargetTokens <= 0 || before <= cfg.TargetTokens {
		return history, 0, 0
	}
	budget := cfg.MaxTokens
	if budget <= 0 {
		budget = cfg.TargetTokens
	}

	pinned := make(map[string]bool, len(cfg.AlwaysKeep))
	for _, id := range cfg.AlwaysKeep {
		pinned[id] = true
	}

	keep := make([]bool, len(history))
	remaining := budget
	for i, m := range history {
		if pinned[m.ID] {
			keep[i] = true
			remaining -= estimateMessage(m)
		}
	}

	candidates := make([]int, 0, len(history))
	for i := range history {
		if !keep[i] {
			candidates = append(candidates, i)
		}
	}
	// Ties fall back to original order: stable sort on score only.
	sort.SliceStable(candidates, func(a, b int) bool {
		return score(cfg.Policy, candidates[a], history[candidates[a]]) >
			score(cfg.Policy, candidates[b], history[candidates[b]])
	})
	for _, i := range candidates {
		cost := estimateMessage(history[i])
		if cost <= remaining {
			keep[i] = true
			remaining -= cost
		}
	}

	kept = make([]ChatMessage, 0, len(history))
	for i, m := range history {
		if keep[i] {
			kept = append(kept, m)
		}
	}
	removed = len(history) - len(kept)
	freed = before - EstimateTokens(kept)
	return kept, removed, freed
}
