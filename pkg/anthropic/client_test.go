package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	t.Parallel()

	r := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "first "},
		{Type: "thinking", Text: "ignored"},
		{Type: "text", Text: "second"},
	}}
	assert.Equal(t, "first second", r.Text())

	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.Text())
}

func TestMessageResponse_Refused(t *testing.T) {
	t.Parallel()

	r := &MessageResponse{StopReason: "end_turn"}
	assert.False(t, r.Refused())

	r.StopReason = "refusal"
	assert.True(t, r.Refused())

	var nilResp *MessageResponse
	assert.True(t, nilResp.Refused())
}

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 100, OutputTokens: 50}
	u.Add(TokenUsage{InputTokens: 20, OutputTokens: 10, CacheCreationInputTokens: 5, CacheReadInputTokens: 3})

	assert.Equal(t, int64(120), u.InputTokens)
	assert.Equal(t, int64(60), u.OutputTokens)
	assert.Equal(t, int64(5), u.CacheCreationInputTokens)
	assert.Equal(t, int64(3), u.CacheReadInputTokens)
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	t.Parallel()

	u := TokenUsage{
		InputTokens:              1_000_000,
		OutputTokens:             1_000_000,
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}

	// haiku: 0.80 in + 4.00 out + 0.80*1.25 cache write + 0.80*0.10 cache read
	assert.InDelta(t, 0.80+4.00+1.00+0.08, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)

	assert.Zero(t, u.EstimateCost("some-unknown-model"))
	assert.Zero(t, TokenUsage{}.EstimateCost("claude-haiku-4-5-20251001"))
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	t.Parallel()

	blocks := BuildCachedSystemBlocks("extract listings")
	assert.Len(t, blocks, 1)
	assert.Equal(t, "extract listings", blocks[0].Text)
	assert.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}
