package pm

import "sort"

// HeaderList is an insertion-ordered header map. Keys match exactly (no
// case folding) so scripts see precisely what they wrote.
type HeaderList struct {
	keys   []string
	values map[string]string
}

// NewHeaderList builds a list from a snapshot map. Map iteration order is
// random, so seed order is sorted for determinism; script-added headers
// append in call order after that.
func NewHeaderList(src map[string]string) *HeaderList {
	h := &HeaderList{values: make(map[string]string, len(src))}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.keys = append(h.keys, k)
		h.values[k] = src[k]
	}
	return h
}

// Upsert sets key to value, keeping the original position when the key
// already exists. add and upsert share these semantics on purpose: the
// observed behavior of both is overwrite.
func (h *HeaderList) Upsert(key, value string) {
	if _, exists := h.values[key]; !exists {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Remove deletes key, reporting whether it was present.
func (h *HeaderList) Remove(key string) bool {
	if _, exists := h.values[key]; !exists {
		return false
	}
	delete(h.values, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the value for key.
func (h *HeaderList) Get(key string) (string, bool) {
	v, ok := h.values[key]
	return v, ok
}

// Has reports key presence.
func (h *HeaderList) Has(key string) bool {
	_, ok := h.values[key]
	return ok
}

// Each visits entries in insertion order.
func (h *HeaderList) Each(fn func(key, value string)) {
	for _, k := range h.keys {
		fn(k, h.values[k])
	}
}

// ToMap returns a plain copy of the current headers.
func (h *HeaderList) ToMap() map[string]string {
	out := make(map[string]string, len(h.keys))
	for k, v := range h.values {
		out[k] = v
	}
	return out
}

// Len returns the deduplicated header count.
func (h *HeaderList) Len() int {
	return len(h.keys)
}
