package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbed maps known words onto fixed orthogonal-ish vectors so similarity
// ordering is deterministic without a live embeddings endpoint.
func fakeEmbed(ctx context.Context, text string) ([]float32, error) {
	vec := []float32{0.01, 0.01, 0.01}
	for i, word := range []string{"passport", "pension", "tax"} {
		if containsFold(text, word) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func containsFold(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := 0; j < len(sub); j++ {
			c, d := s[i+j], sub[j]
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != d {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestStoreQuery(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore("services", fakeEmbed)
	require.NoError(t, err)

	require.NoError(t, store.Add(ctx,
		Document{ID: "d1", Content: "Passport renewal requires an in-person appointment."},
		Document{ID: "d2", Content: "Pension accounts can be checked online."},
		Document{ID: "d3", Content: "Tax returns are filed before the yearly deadline."},
	))

	hits, err := store.Query(ctx, "how do I renew my passport", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "d1", hits[0].ID)
}

func TestStoreQueryEmpty(t *testing.T) {
	store, err := NewStore("empty", fakeEmbed)
	require.NoError(t, err)
	hits, err := store.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRenderContext(t *testing.T) {
	out := RenderContext([]Result{
		{Document: Document{Content: "a"}},
		{Document: Document{Content: "b"}},
	})
	assert.Equal(t, "- a\n- b", out)
	assert.Empty(t, RenderContext(nil))
}
