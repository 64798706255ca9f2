package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/storage"
)

func TestValidate(t *testing.T) {
	ok := &storage.ChatLog{
		Username:          "dana",
		PromptEmbedding:   []float64{0.1, 0.2, 0.3},
		ResponseEmbedding: []float64{0.4, 0.5, 0.6},
	}
	assert.NoError(t, storage.Validate(ok, 3))
	assert.NoError(t, storage.Validate(ok, 0))

	err := storage.Validate(ok, 768)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	short := *ok
	short.ResponseEmbedding = []float64{1}
	assert.ErrorIs(t, storage.Validate(&short, 3), storage.ErrDimensionMismatch)

	assert.Error(t, storage.Validate(&storage.ChatLog{}, 0))
	assert.Error(t, storage.Validate(nil, 0))
}

func TestVectorText(t *testing.T) {
	assert.Equal(t, "[]", storage.FormatVector(nil))
	assert.Equal(t, "[0.1,-2,3.25]", storage.FormatVector([]float64{0.1, -2, 3.25}))

	v, err := storage.ParseVector(" [0.1, -2,3.25] ")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -2, 3.25}, v)

	empty, err := storage.ParseVector("[]")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = storage.ParseVector("[0.1,abc]")
	assert.Error(t, err)
}
