package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/types"
)

type countingClient struct {
	generated int
	grounded  int
	closed    bool
}

func (c *countingClient) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	c.generated++
	return &types.GenerationResult{Model: "fake"}, nil
}

func (c *countingClient) Ground(ctx context.Context, sourceURL string) (string, error) {
	c.grounded++
	return "posting", nil
}

func (c *countingClient) Close() error {
	c.closed = true
	return nil
}

func TestRateLimited_Delegates(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimited(inner, time.Millisecond, 2)

	res, err := client.Generate(context.Background(), &types.GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fake", res.Model)

	text, err := client.Ground(context.Background(), "https://example.com/job")
	require.NoError(t, err)
	assert.Equal(t, "posting", text)

	require.NoError(t, client.Close())
	assert.Equal(t, 1, inner.generated)
	assert.Equal(t, 1, inner.grounded)
	assert.True(t, inner.closed)
}

func TestRateLimited_WaitAbortedIsTransient(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimited(inner, time.Hour, 1)

	_, err := client.Generate(context.Background(), &types.GenerationRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, &types.GenerationRequest{})

	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, inner.generated)
}
