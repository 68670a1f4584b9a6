package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreSeedAndSnapshot(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"a": "1", "b": "2"})

	snap := s.Snapshot()
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, snap)

	// The snapshot is detached.
	snap["c"] = "3"
	_, ok := s.Get("c")
	assert.False(t, ok)
}

func TestStoreApply(t *testing.T) {
	s := NewStore()
	s.Seed(map[string]string{"keep": "1", "gone": "2"})

	s.Apply(map[string]string{
		"keep":  "updated",
		"gone":  "", // deletion sentinel
		"added": "3",
	})

	v, ok := s.Get("keep")
	assert.True(t, ok)
	assert.Equal(t, "updated", v)

	_, ok = s.Get("gone")
	assert.False(t, ok)

	v, _ = s.Get("added")
	assert.Equal(t, "3", v)
	assert.Equal(t, 2, s.Len())
}

func TestStoreApplyEmptyIsNoop(t *testing.T) {
	s := NewStore()
	s.Set("a", "1")
	s.Apply(nil)
	assert.Equal(t, 1, s.Len())
}
