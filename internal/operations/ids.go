package operations

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultIDPrefix marks correlation ids minted by this mapper.
const DefaultIDPrefix = "c8y-mapper-"

// IDGenerator mints correlation ids for operations the mapper starts.
type IDGenerator struct {
	prefix string
}

// NewIDGenerator creates a generator. An empty prefix uses DefaultIDPrefix.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return &IDGenerator{prefix: prefix}
}

// New returns a fresh correlation id.
func (g *IDGenerator) New() string {
	return g.prefix + uuid.NewString()
}

// IsGenerated reports whether id was minted by a generator with the same prefix.
func (g *IDGenerator) IsGenerated(id string) bool {
	return strings.HasPrefix(id, g.prefix) && len(id) > len(g.prefix)
}
