package cache

// Cache is the second-level cache contract the resolution engine composes.
// Runtime behavior beyond construction is owned by the execution layer.
type Cache interface {
	// ID returns the cache identifier, by convention the owning namespace.
	ID() string
	Put(key, value any)
	// Get returns the cached value and whether the key was present.
	Get(key any) (any, bool)
	Remove(key any)
	Clear()
	Size() int
}

// Decorator is implemented by caches that wrap another cache. It exposes the
// wrapped layer so composition order can be inspected.
type Decorator interface {
	Inner() Cache
}

// evictor is implemented by eviction decorators able to discard one entry
// according to their policy. The size-bound wrapper drives it.
type evictor interface {
	evictOne()
}

// PropertySetter is implemented by cache layers accepting extra string
// properties from the document.
type PropertySetter interface {
	SetProperty(name, value string) error
}

// Perpetual is the base cache: an unbounded map.
type Perpetual struct {
	id    string
	store map[any]any
}

// NewPerpetual creates the base cache keyed by id.
func NewPerpetual(id string) *Perpetual {
	return &Perpetual{id: id, store: make(map[any]any)}
}

func (c *Perpetual) ID() string { return c.id }

func (c *Perpetual) Put(key, value any) { c.store[key] = value }

func (c *Perpetual) Get(key any) (any, bool) {
	v, ok := c.store[key]
	return v, ok
}

func (c *Perpetual) Remove(key any) { delete(c.store, key) }

func (c *Perpetual) Clear() { c.store = make(map[any]any) }

func (c *Perpetual) Size() int { return len(c.store) }
