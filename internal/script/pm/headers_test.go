package pm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderListSeedOrderIsSorted(t *testing.T) {
	h := NewHeaderList(map[string]string{
		"Zulu":   "3",
		"Accept": "1",
		"Mid":    "2",
	})

	var keys []string
	h.Each(func(key, _ string) { keys = append(keys, key) })
	assert.Equal(t, []string{"Accept", "Mid", "Zulu"}, keys)
}

func TestHeaderListUpsertKeepsPosition(t *testing.T) {
	h := NewHeaderList(nil)
	h.Upsert("A", "1")
	h.Upsert("B", "2")
	h.Upsert("A", "updated")

	var keys []string
	h.Each(func(key, _ string) { keys = append(keys, key) })
	assert.Equal(t, []string{"A", "B"}, keys)

	v, ok := h.Get("A")
	assert.True(t, ok)
	assert.Equal(t, "updated", v)
	assert.Equal(t, 2, h.Len())
}

func TestHeaderListRemove(t *testing.T) {
	h := NewHeaderList(map[string]string{"A": "1", "B": "2"})

	assert.True(t, h.Remove("A"))
	assert.False(t, h.Remove("A"))
	assert.False(t, h.Has("A"))
	assert.Equal(t, 1, h.Len())

	var keys []string
	h.Each(func(key, _ string) { keys = append(keys, key) })
	assert.Equal(t, []string{"B"}, keys)
}

func TestHeaderListToMap(t *testing.T) {
	h := NewHeaderList(map[string]string{"A": "1"})
	h.Upsert("B", "2")

	m := h.ToMap()
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, m)

	// The copy is detached from the list.
	m["C"] = "3"
	assert.False(t, h.Has("C"))
}
