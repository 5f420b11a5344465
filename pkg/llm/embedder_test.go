package llm_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainteg/docpipe/pkg/llm"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   "nomic-embed-text:latest",
		BaseURL: "http://localhost:11434",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestEmbedAgainstLiveServer(t *testing.T) {
	// Requires a running Ollama server with the embedding model pulled.
	if os.Getenv("OLLAMA_TEST_URL") == "" {
		t.Skip("OLLAMA_TEST_URL not set")
	}

	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		BaseURL: os.Getenv("OLLAMA_TEST_URL"),
	})
	require.NoError(t, err)

	vec, err := emb.Embed(context.Background(), "This is the first chunk.")
	require.NoError(t, err)
	assert.Len(t, vec, 768)

	vecs, err := emb.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, len(vecs[0]), len(vecs[1]))
}
