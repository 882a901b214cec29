package backend

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashEmbedder is a deterministic bag-of-words embedder
type hashEmbedder struct {
	fail bool
}

func (e hashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedder unavailable")
	}
	vec := make([]float32, 32)
	vec[0] = 1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[1+h.Sum32()%31]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("should return nothing from an empty collection", func(t *testing.T) {
		mem, err := NewMemory(hashEmbedder{}, "chat_memory", 3)
		require.NoError(t, err)

		found, err := mem.Search(ctx, "anything")
		require.NoError(t, err)
		assert.Empty(t, found)
		assert.NotNil(t, found)
		assert.Equal(t, 0, mem.Count())
	})

	t.Run("should cap results at the collection size", func(t *testing.T) {
		mem, err := NewMemory(hashEmbedder{}, "chat_memory", 3)
		require.NoError(t, err)

		require.NoError(t, mem.Add(ctx, "my favourite colour is blue"))

		found, err := mem.Search(ctx, "what colour do I like")
		require.NoError(t, err)
		assert.Equal(t, []string{"my favourite colour is blue"}, found)
	})

	t.Run("should return at most the configured number of results", func(t *testing.T) {
		mem, err := NewMemory(hashEmbedder{}, "chat_memory", 2)
		require.NoError(t, err)

		for _, text := range []string{"alpha beta", "gamma delta", "epsilon zeta", "eta theta"} {
			require.NoError(t, mem.Add(ctx, text))
		}
		assert.Equal(t, 4, mem.Count())

		found, err := mem.Search(ctx, "gamma delta")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "gamma delta", found[0])
	})

	t.Run("should default the result count", func(t *testing.T) {
		mem, err := NewMemory(hashEmbedder{}, "chat_memory", 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultMemoryResults, mem.results)
	})

	t.Run("should ignore blank text", func(t *testing.T) {
		mem, err := NewMemory(hashEmbedder{}, "chat_memory", 3)
		require.NoError(t, err)

		require.NoError(t, mem.Add(ctx, ""))
		assert.Equal(t, 0, mem.Count())
	})

	t.Run("should report embedder failures", func(t *testing.T) {
		mem, err := NewMemory(hashEmbedder{fail: true}, "chat_memory", 3)
		require.NoError(t, err)

		err = mem.Add(ctx, "hello")
		assert.ErrorContains(t, err, "embedder unavailable")
	})
}
