package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateUUID()
		assert.Len(t, id, 36)
		assert.True(t, IsUUID(id))
		assert.False(t, seen[id], "duplicate uuid %s", id)
		seen[id] = true
	}
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("8f14e45f-ceea-467f-a0e6-3c1f3d7e6a2b"))
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID(""))
}
