package agent

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cexll/claudesdk-go/pkg/types"
)

func textMsg(id string, role types.Role, chars int) ChatMessage {
	return ChatMessage{ID: id, Role: role, Content: types.Text(strings.Repeat("x", chars))}
}

func TestEstimateTokensMonotonic(t *testing.T) {
	history := []ChatMessage{}
	prev := 0
	for i := 0; i < 20; i++ {
		history = append(history, textMsg("m", types.RoleUser, i*7))
		got := EstimateTokens(history)
		if got < prev {
			t.Fatalf("estimate decreased: %d -> %d at %d messages", prev, got, len(history))
		}
		prev = got
	}
}

func TestEstimateTokensFormula(t *testing.T) {
	// 40 chars -> 10 tokens, plus 10 per-message overhead.
	if got := EstimateTokens([]ChatMessage{textMsg("a", types.RoleUser, 40)}); got != 20 {
		t.Fatalf("estimate = %d, want 20", got)
	}
}

func TestPruneNoopUnderTarget(t *testing.T) {
	history := []ChatMessage{textMsg("a", types.RoleUser, 40)}
	kept, removed, freed := PruneHistory(history, PruneConfig{TargetTokens: 100})
	if removed != 0 || freed != 0 || len(kept) != 1 {
		t.Fatalf("unexpected prune: kept=%d removed=%d freed=%d", len(kept), removed, freed)
	}
}

func TestPruneInvariants(t *testing.T) {
	// Four 20-token messages, 80 total. Budget fits two.
	history := []ChatMessage{
		textMsg("m1", types.RoleUser, 40),
		textMsg("m2", types.RoleAssistant, 40),
		textMsg("m3", types.RoleUser, 40),
		textMsg("m4", types.RoleAssistant, 40),
	}
	cfg := PruneConfig{
		TargetTokens: 50,
		MaxTokens:    50,
		Policy:       PruneRecentFirst,
		AlwaysKeep:   []string{"m1"},
	}
	kept, removed, freed := PruneHistory(history, cfg)

	found := false
	for _, m := range kept {
		if m.ID == "m1" {
			found = true
		}
	}
	if !found {
		t.Fatal("always-keep id was pruned")
	}
	if got := EstimateTokens(kept); got > cfg.MaxTokens {
		t.Fatalf("kept history %d tokens exceeds budget %d", got, cfg.MaxTokens)
	}
	// Original relative order.
	for i := 1; i < len(kept); i++ {
		if indexOf(history, kept[i-1].ID) > indexOf(history, kept[i].ID) {
			t.Fatalf("order not preserved: %v", kept)
		}
	}
	if removed != len(history)-len(kept) {
		t.Fatalf("removed = %d, want %d", removed, len(history)-len(kept))
	}
	if freed != EstimateTokens(history)-EstimateTokens(kept) {
		t.Fatalf("freed = %d", freed)
	}
}

func indexOf(history []ChatMessage, id string) int {
	for i, m := range history {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func TestPruneRecentFirstKeepsNewest(t *testing.T) {
	history := []ChatMessage{
		textMsg("old", types.RoleUser, 40),
		textMsg("mid", types.RoleUser, 40),
		textMsg("new", types.RoleUser, 40),
	}
	kept, _, _ := PruneHistory(history, PruneConfig{TargetTokens: 30, MaxTokens: 45, Policy: PruneRecentFirst})
	if len(kept) != 2 || kept[0].ID != "mid" || kept[1].ID != "new" {
		t.Fatalf("kept = %v", kept)
	}
}

func TestPruneSmartPrefersToolTraffic(t *testing.T) {
	toolResult := ChatMessage{
		ID:   "tool",
		Role: types.RoleUser,
		Content: types.Content{types.ToolResultBlock{
			ToolUseID: "toolu_1",
			Content:   json.RawMessage(`"0123456789012345678901234567890123456789"`),
		}},
	}
	history := []ChatMessage{
		textMsg("chat1", types.RoleAssistant, 40),
		toolResult,
		textMsg("chat2", types.RoleAssistant, 40),
	}
	kept, _, _ := PruneHistory(history, PruneConfig{TargetTokens: 30, MaxTokens: 30, Policy: PruneSmart})
	if len(kept) != 1 || kept[0].ID != "tool" {
		t.Fatalf("smart pruning kept %v", kept)
	}
}

func TestPrunePreferUserMessages(t *testing.T) {
	history := []ChatMessage{
		textMsg("assistant1", types.RoleAssistant, 40),
		textMsg("user1", types.RoleUser, 40),
		textMsg("assistant2", types.RoleAssistant, 40),
	}
	kept, _, _ := PruneHistory(history, PruneConfig{TargetTokens: 30, MaxTokens: 30, Policy: PrunePreferUserMessages})
	if len(kept) != 1 || kept[0].ID != "user1" {
		t.Fatalf("kept %v", kept)
	}
}
