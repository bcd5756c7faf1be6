package goarchive

import (
	"github.com/TheBitDrifter/goarchive/entityindex"
	"github.com/TheBitDrifter/goarchive/host"
	"github.com/TheBitDrifter/goarchive/registry"
)

// Config carries the host-provided collaborators and tunables a World is
// constructed with, replacing the process-global allocator/logging hooks
// spec.md's design notes call out as the one deliberate departure from
// the original C source's style.
type Config struct {
	// Host supplies diagnostics. A nil Host is replaced with
	// host.Default() at World construction.
	Host *host.Services
	// InitialEntityCapacity, if non-zero, is passed to the entity index's
	// Reserve up front (spec.md §6's dim operation, applied once at
	// construction rather than requiring a second call).
	InitialEntityCapacity int
	// EntityIndexChunkSize overrides the number of slots per entity index
	// sparse/payload chunk. Zero defaults to entityindex.ChunkSize (4096).
	EntityIndexChunkSize int
	// ComponentIDThreshold overrides the id boundary below which the
	// component registry stores descriptors in its flat array rather than
	// its hash map (the HI_COMPONENT_ID split). Zero defaults to
	// registry.HiComponentID (256).
	ComponentIDThreshold registry.ID
}

func (c Config) withDefaults() Config {
	if c.Host == nil {
		c.Host = host.Default()
	}
	if c.EntityIndexChunkSize <= 0 {
		c.EntityIndexChunkSize = entityindex.ChunkSize
	}
	if c.ComponentIDThreshold == 0 {
		c.ComponentIDThreshold = registry.HiComponentID
	}
	return c
}
