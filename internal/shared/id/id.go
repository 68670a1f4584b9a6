// Package id provides prefixed ULID generation for the backend.
//
// ULIDs are lexicographically sortable by creation time, and the prefix
// makes log lines self-describing (job_*, req_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// JobID is the correlation id of one script execution job.
type JobID string

// RequestID identifies one API request handled by the server.
type RequestID string

func (id JobID) String() string     { return string(id) }
func (id RequestID) String() string { return string(id) }

const (
	jobPrefix     = "job"
	requestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator backed by crypto/rand.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = &Generator{entropy: rand.Reader}
	})
	return defaultGenerator
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewJobID generates a new job correlation id.
func NewJobID() JobID {
	return JobID(Default().GenerateWithPrefix(jobPrefix))
}

// NewRequestID generates a new request id.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(requestPrefix))
}
