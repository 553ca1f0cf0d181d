package registry

import (
	"fmt"
	"sort"
	"sync"

	"sqlmapper/cache"
	"sqlmapper/model"
	"sqlmapper/xmltree"
)

// Deferred is one parked resolution attempt awaiting a dependency that was
// not registered yet. Retry must not park anew: the fixpoint loop decides
// whether the item stays queued based on the returned error.
type Deferred struct {
	// Object is the identifier the work resolves, for end-of-load reporting.
	Object string
	// Cause is the deferral recorded when the work was parked.
	Cause error
	// Retry re-attempts the resolution.
	Retry func() error
}

// Registry is the symbol table of one load session. It exclusively owns all
// descriptors once registered. Mutation and fixpoint passes are serialized so
// documents may be added after the initial load; once a load converges the
// registry is treated as read-only and is safe for concurrent readers.
type Registry struct {
	mu     sync.Mutex
	passMu sync.Mutex

	statements    map[string]*model.StatementDescriptor
	resultShapes  map[string]*model.ResultShape
	paramShapes   map[string]*model.ParameterShape
	caches        map[string]cache.Cache
	keyGenerators map[string]model.KeyGenerator
	cacheRefs     map[string]string
	fragments     map[string]*xmltree.Node
	loaded        map[string]struct{}

	pendingShapes     []*Deferred
	pendingCacheRefs  []*Deferred
	pendingStatements []*Deferred
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		statements:    make(map[string]*model.StatementDescriptor),
		resultShapes:  make(map[string]*model.ResultShape),
		paramShapes:   make(map[string]*model.ParameterShape),
		caches:        make(map[string]cache.Cache),
		keyGenerators: make(map[string]model.KeyGenerator),
		cacheRefs:     make(map[string]string),
		fragments:     make(map[string]*xmltree.Node),
		loaded:        make(map[string]struct{}),
	}
}

// IsLoaded reports whether the document resource was already registered.
func (r *Registry) IsLoaded(resource string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loaded[resource]
	return ok
}

// MarkLoaded records the document resource so re-processing is a no-op.
func (r *Registry) MarkLoaded(resource string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[resource] = struct{}{}
}

// AddStatement registers a statement descriptor. A later registration for the
// same qualified id replaces the earlier one; the vendor tie-break in the
// statement resolver decides whether a registration is attempted at all.
func (r *Registry) AddStatement(s *model.StatementDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements[s.ID] = s
}

// Statement returns a registered statement by qualified id.
func (r *Registry) Statement(id string) (*model.StatementDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statements[id]
	return s, ok
}

// HasStatement reports whether a statement is registered under id.
func (r *Registry) HasStatement(id string) bool {
	_, ok := r.Statement(id)
	return ok
}

// AddResultShape registers a result shape. Duplicate ids are a declaration
// error.
func (r *Registry) AddResultShape(s *model.ResultShape) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resultShapes[s.ID]; ok {
		return fmt.Errorf("result shape %q already registered", s.ID)
	}
	r.resultShapes[s.ID] = s
	return nil
}

// ResultShape returns a registered result shape by qualified id.
func (r *Registry) ResultShape(id string) (*model.ResultShape, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.resultShapes[id]
	return s, ok
}

// HasResultShape reports whether a result shape is registered under id.
func (r *Registry) HasResultShape(id string) bool {
	_, ok := r.ResultShape(id)
	return ok
}

// AddParameterShape registers a parameter shape. Duplicate ids are a
// declaration error.
func (r *Registry) AddParameterShape(s *model.ParameterShape) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paramShapes[s.ID]; ok {
		return fmt.Errorf("parameter shape %q already registered", s.ID)
	}
	r.paramShapes[s.ID] = s
	return nil
}

// ParameterShape returns a registered parameter shape by qualified id.
func (r *Registry) ParameterShape(id string) (*model.ParameterShape, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.paramShapes[id]
	return s, ok
}

// AddCache registers the cache owned by a namespace. One cache per namespace.
func (r *Registry) AddCache(c cache.Cache) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caches[c.ID()]; ok {
		return fmt.Errorf("cache for namespace %q already registered", c.ID())
	}
	r.caches[c.ID()] = c
	return nil
}

// Cache returns the cache registered for a namespace.
func (r *Registry) Cache(namespace string) (cache.Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[namespace]
	return c, ok
}

// AddCacheRef records that namespace aliases the cache of ref.
func (r *Registry) AddCacheRef(namespace, ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheRefs[namespace] = ref
}

// CacheRef returns the namespace aliased by the given namespace, if any.
func (r *Registry) CacheRef(namespace string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.cacheRefs[namespace]
	return ref, ok
}

// AddKeyGenerator registers a key generator. Duplicate ids are a declaration
// error.
func (r *Registry) AddKeyGenerator(id string, gen model.KeyGenerator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keyGenerators[id]; ok {
		return fmt.Errorf("key generator %q already registered", id)
	}
	r.keyGenerators[id] = gen
	return nil
}

// KeyGenerator returns a registered key generator by qualified id.
func (r *Registry) KeyGenerator(id string) (model.KeyGenerator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.keyGenerators[id]
	return g, ok
}

// SetFragment stores a reusable statement fragment under its qualified id.
// Later registrations replace earlier ones; the vendor tie-break decides
// whether a registration is attempted.
func (r *Registry) SetFragment(id string, n *xmltree.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragments[id] = n
}

// Fragment returns a stored fragment by qualified id.
func (r *Registry) Fragment(id string) (*xmltree.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.fragments[id]
	return n, ok
}

// StatementIDs returns all registered statement ids, sorted.
func (r *Registry) StatementIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.statements)
}

// ResultShapeIDs returns all registered result shape ids, sorted.
func (r *Registry) ResultShapeIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.resultShapes)
}

// ParameterShapeIDs returns all registered parameter shape ids, sorted.
func (r *Registry) ParameterShapeIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.paramShapes)
}

// CacheNamespaces returns all namespaces owning a cache, sorted.
func (r *Registry) CacheNamespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.caches)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
