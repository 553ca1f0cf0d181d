package sqlmapper

import (
	"fmt"
	"os"
	"strings"

	"sqlmapper/cache"
	"sqlmapper/internal/builder"
	"sqlmapper/internal/registry"
	"sqlmapper/introspect"
	"sqlmapper/model"
	"sqlmapper/xmltree"
)

// ScriptEngine turns the body of a statement element into an executable SQL
// source. The built-in engine treats the body as raw text; callers supply
// their own to layer dynamic-SQL handling on top.
type ScriptEngine = builder.ScriptEngine

// Session owns one load of mapping documents: the symbol table, the type
// aliases, and the deferred work queues. Documents may arrive in any order;
// Finish drives cross-document references to a fixed point.
type Session struct {
	cfg        *Config
	reg        *registry.Registry
	types      *introspect.Types
	intro      introspect.Introspector
	script     ScriptEngine
	cacheBases map[string]cache.BaseFunc
}

// New creates an empty session. A nil config gets the defaults.
func New(cfg *Config) *Session {
	if cfg == nil {
		cfg = &Config{}
	}
	applyConfigDefaults(cfg)

	return &Session{
		cfg:        cfg,
		reg:        registry.New(),
		types:      introspect.NewTypes(),
		intro:      introspect.Default{},
		script:     builder.RawScript{},
		cacheBases: make(map[string]cache.BaseFunc),
	}
}

// Types exposes the session's type alias registry so callers can register
// their own Go types before loading documents that name them.
func (s *Session) Types() *introspect.Types { return s.types }

// SetScriptEngine replaces the SQL source factory used for statement bodies.
func (s *Session) SetScriptEngine(e ScriptEngine) {
	if e != nil {
		s.script = e
	}
}

// RegisterCacheBase makes a custom cache implementation available under the
// given type name for <cache type="..."/> declarations.
func (s *Session) RegisterCacheBase(name string, fn cache.BaseFunc) {
	s.cacheBases[strings.ToUpper(name)] = fn
}

// Load parses one mapping document and registers its declarations. Forward
// references to shapes, caches, and fragments not seen yet are parked and
// retried as later documents arrive. Loading the same resource twice is a
// no-op.
func (s *Session) Load(resource string, data []byte) error {
	doc, err := xmltree.Parse(data, s.cfg.Variables)
	if err != nil {
		return fmt.Errorf("failed to parse mapping document %s: %w", resource, err)
	}

	b := builder.NewDocumentBuilder(s.reg, s.types, s.intro, s.script, resource, doc, builder.Options{
		Vendor:           s.cfg.Vendor,
		UseGeneratedKeys: s.cfg.UseGeneratedKeys,
		Variables:        s.cfg.Variables,
		CacheBases:       s.cacheBases,
	})

	return b.Parse()
}

// LoadFile reads and loads one mapping document from disk, using the path as
// the resource name.
func (s *Session) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read mapping document %s: %w", path, err)
	}

	return s.Load(path, data)
}

// Finish retries the deferred work queues until no pass makes progress.
// Anything still unresolved at that point is a dangling reference and is
// reported as an error listing every stalled item with its original cause.
func (s *Session) Finish() error {
	for {
		progress, err := s.reg.RetryPending()
		if err != nil {
			return err
		}
		if !progress {
			break
		}
	}

	residual := s.reg.Residual()
	if len(residual) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d mapping element(s) could not be resolved:", len(residual)))
	for _, d := range residual {
		sb.WriteString(fmt.Sprintf("\n  %s: %v", d.Object, d.Cause))
	}

	return fmt.Errorf("%s", sb.String())
}

// Statement looks up a fully linked statement by its namespace-qualified id.
func (s *Session) Statement(id string) (*model.StatementDescriptor, bool) {
	return s.reg.Statement(id)
}

// ResultShape looks up a result shape by its namespace-qualified id.
func (s *Session) ResultShape(id string) (*model.ResultShape, bool) {
	return s.reg.ResultShape(id)
}

// ParameterShape looks up a parameter shape by its namespace-qualified id.
func (s *Session) ParameterShape(id string) (*model.ParameterShape, bool) {
	return s.reg.ParameterShape(id)
}

// Cache looks up the cache bound to a namespace, following cache-ref
// aliases to the namespace that declared the cache.
func (s *Session) Cache(namespace string) (cache.Cache, bool) {
	seen := map[string]bool{}
	for !seen[namespace] {
		if c, ok := s.reg.Cache(namespace); ok {
			return c, true
		}
		seen[namespace] = true
		ref, ok := s.reg.CacheRef(namespace)
		if !ok {
			break
		}
		namespace = ref
	}
	return nil, false
}

// KeyGenerator looks up the key generator synthesized for a statement.
func (s *Session) KeyGenerator(statementID string) (model.KeyGenerator, bool) {
	return s.reg.KeyGenerator(statementID)
}

// StatementIDs lists all registered statement ids in sorted order.
func (s *Session) StatementIDs() []string { return s.reg.StatementIDs() }

// ResultShapeIDs lists all registered result shape ids in sorted order.
func (s *Session) ResultShapeIDs() []string { return s.reg.ResultShapeIDs() }

// ParameterShapeIDs lists all registered parameter shape ids in sorted order.
func (s *Session) ParameterShapeIDs() []string { return s.reg.ParameterShapeIDs() }

// CacheNamespaces lists all namespaces with a cache in sorted order.
func (s *Session) CacheNamespaces() []string { return s.reg.CacheNamespaces() }

// PendingCount reports how many deferred work items are still parked.
func (s *Session) PendingCount() int { return s.reg.PendingCount() }
