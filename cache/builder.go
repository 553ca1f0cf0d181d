package cache

import (
	"fmt"
	"strings"
	"time"
)

// Eviction selects the eviction decorator applied directly over the base
// cache.
type Eviction int

const (
	// EvictionLRU is the default recency-based policy.
	EvictionLRU Eviction = iota
	EvictionFIFO
)

// String returns a human-readable eviction name.
func (e Eviction) String() string {
	switch e {
	case EvictionLRU:
		return "LRU"
	case EvictionFIFO:
		return "FIFO"
	default:
		return "unknown"
	}
}

// ParseEviction resolves a document eviction attribute, case-insensitively.
func ParseEviction(name string) (Eviction, error) {
	switch strings.ToUpper(name) {
	case "", "LRU":
		return EvictionLRU, nil
	case "FIFO":
		return EvictionFIFO, nil
	default:
		return EvictionLRU, fmt.Errorf("unknown eviction policy %q", name)
	}
}

// BaseFunc constructs the base cache for a namespace. It is the construction
// primitive of the cache implementation collaborator.
type BaseFunc func(id string) Cache

// Builder assembles a cache decorator chain. Decoration order is fixed and
// significant: eviction wraps the base; size bound, flush interval,
// read/write safety, and blocking wrap the eviction layer in that order, so
// blocking semantics see the fully decorated cache.
type Builder struct {
	id            string
	base          BaseFunc
	eviction      Eviction
	flushInterval time.Duration
	size          int
	readWrite     bool
	blocking      bool
	props         map[string]string
}

// NewBuilder creates a Builder for the cache owned by the given namespace.
func NewBuilder(namespace string) *Builder {
	return &Builder{id: namespace, base: func(id string) Cache { return NewPerpetual(id) }}
}

// Base overrides the base cache construction primitive.
func (b *Builder) Base(fn BaseFunc) *Builder {
	if fn != nil {
		b.base = fn
	}
	return b
}

// Eviction selects the eviction policy.
func (b *Builder) Eviction(e Eviction) *Builder {
	b.eviction = e
	return b
}

// FlushInterval enables the periodic-flush wrapper. Zero disables it.
func (b *Builder) FlushInterval(d time.Duration) *Builder {
	b.flushInterval = d
	return b
}

// Size enables the size-bound wrapper. Zero disables it.
func (b *Builder) Size(n int) *Builder {
	b.size = n
	return b
}

// ReadWrite enables the copy-on-read/write wrapper.
func (b *Builder) ReadWrite(rw bool) *Builder {
	b.readWrite = rw
	return b
}

// Blocking enables the blocking wrapper.
func (b *Builder) Blocking(blocking bool) *Builder {
	b.blocking = blocking
	return b
}

// Properties supplies extra document properties applied to layers that accept
// them.
func (b *Builder) Properties(props map[string]string) *Builder {
	b.props = props
	return b
}

// Build assembles the chain.
func (b *Builder) Build() (Cache, error) {
	c := b.base(b.id)
	switch b.eviction {
	case EvictionFIFO:
		c = NewFIFO(c)
	default:
		c = NewLRU(c)
	}
	if err := b.applyProperties(c); err != nil {
		return nil, err
	}
	if b.size > 0 {
		c = NewBounded(c, b.size)
	}
	if b.flushInterval > 0 {
		c = NewScheduled(c, b.flushInterval)
	}
	if b.readWrite {
		c = NewSerialized(c)
	}
	if b.blocking {
		c = NewBlocking(c)
	}
	return c, nil
}

func (b *Builder) applyProperties(c Cache) error {
	if len(b.props) == 0 {
		return nil
	}
	for layer := c; ; {
		if ps, ok := layer.(PropertySetter); ok {
			for k, v := range b.props {
				if err := ps.SetProperty(k, v); err != nil {
					return fmt.Errorf("cache %s: %w", b.id, err)
				}
			}
		}
		d, ok := layer.(Decorator)
		if !ok {
			return nil
		}
		layer = d.Inner()
	}
}
