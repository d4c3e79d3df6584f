package copypipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultChunkStrategy_Tiers(t *testing.T) {
	assert.Equal(t, chunkTierSmall, DefaultChunkStrategy(512*1024))
	assert.Equal(t, chunkTier1MB, DefaultChunkStrategy(5*1024*1024))
	assert.Equal(t, chunkTier10MB, DefaultChunkStrategy(50*1024*1024))
	assert.Equal(t, chunkTierLarge, DefaultChunkStrategy(500*1024*1024))
}

func TestClampChunkSize(t *testing.T) {
	assert.Equal(t, minChunkSize, ClampChunkSize(1))
	assert.Equal(t, maxChunkSize, ClampChunkSize(100*1024*1024))
	assert.Equal(t, 512*1024, ClampChunkSize(512*1024))
}
