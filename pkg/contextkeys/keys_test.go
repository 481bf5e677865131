package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserID_RoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)

	id, ok := UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestUserID_Missing(t *testing.T) {
	id, ok := UserID(context.Background())
	assert.False(t, ok)
	assert.Zero(t, id)
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")

	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestRequestID_Missing(t *testing.T) {
	id, ok := RequestID(context.Background())
	assert.False(t, ok)
	assert.Empty(t, id)
}
