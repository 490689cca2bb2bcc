package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
)

// Builder can build cache simulators.
type Builder struct {
	cacheByteSize    uint64
	wayAssociativity uint64
	lineSize         uint64
	replacePolicy    ReplacePolicy
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	c := DefaultConfig()

	return Builder{}.WithConfig(c)
}

// WithConfig copies every field of the configuration into the builder.
func (b Builder) WithConfig(c Config) Builder {
	b.cacheByteSize = c.ByteSize
	b.wayAssociativity = c.WayAssociativity
	b.lineSize = c.LineSize
	b.replacePolicy = c.Policy

	return b
}

// WithByteSize sets the total capacity of the cache in bytes.
func (b Builder) WithByteSize(byteSize uint64) Builder {
	b.cacheByteSize = byteSize
	return b
}

// WithWayAssociativity sets the way associativity of the builder.
func (b Builder) WithWayAssociativity(wayAssociativity uint64) Builder {
	b.wayAssociativity = wayAssociativity
	return b
}

// WithLineSize sets the size of a cache line in bytes.
func (b Builder) WithLineSize(lineSize uint64) Builder {
	b.lineSize = lineSize
	return b
}

// WithReplacePolicy sets the replacement policy.
func (b Builder) WithReplacePolicy(p ReplacePolicy) Builder {
	b.replacePolicy = p
	return b
}

// Config returns the configuration the builder would build.
func (b Builder) Config() Config {
	return Config{
		ByteSize:         b.cacheByteSize,
		WayAssociativity: b.wayAssociativity,
		LineSize:         b.lineSize,
		Policy:           b.replacePolicy,
	}
}

// Build validates the configuration and builds a simulator with a cold
// cache.
func (b Builder) Build(name string) (*Simulator, error) {
	g, err := b.Config().Validate()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}

	s := &Simulator{
		name:       name,
		geometry:   g,
		policy:     b.replacePolicy,
		decoder:    NewAddressDecoder(g),
		tags:       tagging.NewTagArray(g.NumSets, g.NumWays, b.replacePolicy.newTaggingPolicy()),
		shadow:     newShadowCache(g, b.replacePolicy),
		compulsory: newCompulsoryTracker(),
	}

	return s, nil
}

// MustBuild is like Build but panics on invalid configurations.
func (b Builder) MustBuild(name string) *Simulator {
	s, err := b.Build(name)
	if err != nil {
		panic(err)
	}

	return s
}
