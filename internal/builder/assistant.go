package builder

import (
	"reflect"
	"strings"
	"time"

	"sqlmapper/cache"
	"sqlmapper/internal/errs"
	"sqlmapper/internal/registry"
	"sqlmapper/introspect"
	"sqlmapper/model"
)

// Assistant carries the per-document resolution context: the current
// namespace and cache, plus handles to the symbol table and the type
// collaborators. One Assistant serves one document.
type Assistant struct {
	reg      *registry.Registry
	types    *introspect.Types
	intro    introspect.Introspector
	resource string

	namespace          string
	currentCache       cache.Cache
	unresolvedCacheRef bool
}

// NewAssistant creates an Assistant for one document resource.
func NewAssistant(reg *registry.Registry, types *introspect.Types, intro introspect.Introspector, resource string) *Assistant {
	return &Assistant{reg: reg, types: types, intro: intro, resource: resource}
}

// Namespace returns the document's namespace.
func (a *Assistant) Namespace() string { return a.namespace }

// SetNamespace stamps the document's namespace. It must be non-empty and,
// once set, immutable.
func (a *Assistant) SetNamespace(ns string) error {
	if ns == "" {
		return errs.Buildf(a.resource, "reading mapper element", "", "mapper namespace cannot be empty")
	}
	if a.namespace != "" && a.namespace != ns {
		return errs.Buildf(a.resource, "reading mapper element", ns,
			"wrong namespace: expected %q but found %q", a.namespace, ns)
	}
	a.namespace = ns
	return nil
}

// ApplyNamespace turns a short identifier into a fully qualified one. A
// reference already containing a separator is assumed qualified, possibly
// into a foreign namespace. A declaration may carry the current namespace
// prefix but never a foreign one.
func (a *Assistant) ApplyNamespace(id string, isReference bool) (string, error) {
	if id == "" {
		return "", nil
	}
	if isReference {
		if strings.Contains(id, ".") {
			return id, nil
		}
	} else {
		if strings.HasPrefix(id, a.namespace+".") {
			return id, nil
		}
		if strings.Contains(id, ".") {
			return "", errs.Buildf(a.resource, "qualifying identifier", id,
				"dots are not allowed in declared element ids, remove it from %q", id)
		}
	}
	return a.namespace + "." + id, nil
}

// UseCacheRef aliases this namespace's cache to the cache owned by ref.
// Until the referenced cache exists the assistant stays in an unresolved
// state that defers every statement registration.
func (a *Assistant) UseCacheRef(ref string) (cache.Cache, error) {
	if ref == "" {
		return nil, errs.Buildf(a.resource, "reading cache-ref element", "",
			"cache-ref requires a namespace attribute")
	}
	a.unresolvedCacheRef = true
	c, ok := a.reg.Cache(ref)
	if !ok {
		return nil, errs.Incompletef("no cache for namespace %q", ref)
	}
	a.currentCache = c
	a.unresolvedCacheRef = false
	return c, nil
}

// CacheSpec carries the cache element attributes.
type CacheSpec struct {
	Base          cache.BaseFunc
	Eviction      cache.Eviction
	FlushInterval time.Duration
	Size          int
	ReadWrite     bool
	Blocking      bool
	Properties    map[string]string
}

// UseNewCache builds and registers this namespace's cache.
func (a *Assistant) UseNewCache(spec CacheSpec) (cache.Cache, error) {
	c, err := cache.NewBuilder(a.namespace).
		Base(spec.Base).
		Eviction(spec.Eviction).
		FlushInterval(spec.FlushInterval).
		Size(spec.Size).
		ReadWrite(spec.ReadWrite).
		Blocking(spec.Blocking).
		Properties(spec.Properties).
		Build()
	if err != nil {
		return nil, errs.Wrap(err, a.resource, "building cache", a.namespace)
	}
	if err := a.reg.AddCache(c); err != nil {
		return nil, errs.Wrap(err, a.resource, "registering cache", a.namespace)
	}
	a.currentCache = c
	return c, nil
}

// AddResultShape qualifies, links, and registers a result shape. An extends
// reference whose parent is not registered yet defers with an incomplete
// signal; the parent's bindings are copied in, then any binding overridden by
// the child list is suppressed, and inherited constructor bindings are
// dropped entirely when the child declares its own constructor set.
func (a *Assistant) AddResultShape(id string, typ reflect.Type, extend string, disc *model.Discriminator,
	bindings []model.ResultBinding, auto model.AutoMapping) (*model.ResultShape, error) {

	qid, err := a.ApplyNamespace(id, false)
	if err != nil {
		return nil, err
	}
	qextend, err := a.ApplyNamespace(extend, true)
	if err != nil {
		return nil, err
	}

	own := append([]model.ResultBinding(nil), bindings...)
	if qextend != "" {
		parent, ok := a.reg.ResultShape(qextend)
		if !ok {
			return nil, errs.Incompletef("could not find a parent result shape with id %q", qextend)
		}
		declaresConstructor := false
		for _, b := range own {
			if b.IsConstructor {
				declaresConstructor = true
				break
			}
		}
		for _, inherited := range parent.Bindings {
			if declaresConstructor && inherited.IsConstructor {
				continue
			}
			overridden := false
			for _, b := range own {
				if b.Overrides(inherited) {
					overridden = true
					break
				}
			}
			if !overridden {
				own = append(own, inherited)
			}
		}
	}

	shape := &model.ResultShape{
		ID:            qid,
		Type:          typ,
		Bindings:      own,
		Discriminator: disc,
		AutoMapping:   auto,
	}
	if err := a.reg.AddResultShape(shape); err != nil {
		return nil, errs.Wrap(err, a.resource, "registering result shape", qid)
	}
	return shape, nil
}

// BindingSpec carries the attributes of one result binding declaration.
type BindingSpec struct {
	Property      string
	Column        string
	TypeName      string
	NestedSelect  string
	NestedShape   string
	NotNullColumn string
	ColumnPrefix  string
	IsID          bool
	IsConstructor bool
	Lazy          bool
}

// BuildBinding resolves one binding against the enclosing type. When no type
// is declared the slot type is inherited reflectively from the enclosing
// shape's property.
func (a *Assistant) BuildBinding(enclosing reflect.Type, spec BindingSpec) (model.ResultBinding, error) {
	typ, err := a.types.Resolve(spec.TypeName)
	if err != nil {
		return model.ResultBinding{}, errs.Wrap(err, a.resource, "resolving binding type", spec.Property)
	}
	if typ == nil && spec.Property != "" && enclosing != nil {
		if slot, ok := a.intro.SlotType(enclosing, spec.Property); ok {
			typ = slot
		}
	}
	nestedSelect, err := a.ApplyNamespace(spec.NestedSelect, true)
	if err != nil {
		return model.ResultBinding{}, err
	}
	nestedShape, err := a.ApplyNamespace(spec.NestedShape, true)
	if err != nil {
		return model.ResultBinding{}, err
	}
	var composites []model.ResultBinding
	if nestedSelect != "" {
		composites = parseCompositeColumn(spec.Column)
	}
	return model.ResultBinding{
		Property:       spec.Property,
		Column:         spec.Column,
		Type:           typ,
		NestedSelectID: nestedSelect,
		NestedShapeID:  nestedShape,
		NotNullColumns: parseColumnList(spec.NotNullColumn),
		ColumnPrefix:   spec.ColumnPrefix,
		Composites:     composites,
		IsID:           spec.IsID,
		IsConstructor:  spec.IsConstructor,
		Lazy:           spec.Lazy,
	}, nil
}

// BuildDiscriminator resolves a column-driven branch table. Case values map
// to reference-qualified shape ids.
func (a *Assistant) BuildDiscriminator(column, typeName string, cases map[string]string) (*model.Discriminator, error) {
	typ, err := a.types.Resolve(typeName)
	if err != nil {
		return nil, errs.Wrap(err, a.resource, "resolving discriminator type", column)
	}
	qualified := make(map[string]string, len(cases))
	for value, shape := range cases {
		q, err := a.ApplyNamespace(shape, true)
		if err != nil {
			return nil, err
		}
		qualified[value] = q
	}
	return &model.Discriminator{Column: column, Type: typ, Cases: qualified}, nil
}

// ParamSpec carries the attributes of one parameter binding declaration.
type ParamSpec struct {
	Property     string
	TypeName     string
	Mode         model.ParamMode
	NumericScale int
	ResultShape  string
}

// BuildParameterBinding resolves one parameter binding against the parameter
// type.
func (a *Assistant) BuildParameterBinding(paramType reflect.Type, spec ParamSpec) (model.ParameterBinding, error) {
	typ, err := a.types.Resolve(spec.TypeName)
	if err != nil {
		return model.ParameterBinding{}, errs.Wrap(err, a.resource, "resolving parameter type", spec.Property)
	}
	if typ == nil && spec.Property != "" && paramType != nil {
		if slot, ok := a.intro.SlotType(paramType, spec.Property); ok {
			typ = slot
		}
	}
	shapeRef, err := a.ApplyNamespace(spec.ResultShape, true)
	if err != nil {
		return model.ParameterBinding{}, err
	}
	return model.ParameterBinding{
		Property:      spec.Property,
		Type:          typ,
		Mode:          spec.Mode,
		NumericScale:  spec.NumericScale,
		ResultShapeID: shapeRef,
	}, nil
}

// AddParameterShape qualifies and registers a parameter shape.
func (a *Assistant) AddParameterShape(id string, typ reflect.Type, bindings []model.ParameterBinding) (*model.ParameterShape, error) {
	qid, err := a.ApplyNamespace(id, false)
	if err != nil {
		return nil, err
	}
	shape := &model.ParameterShape{ID: qid, Type: typ, Bindings: bindings}
	if err := a.reg.AddParameterShape(shape); err != nil {
		return nil, errs.Wrap(err, a.resource, "registering parameter shape", qid)
	}
	return shape, nil
}

// StatementSpec carries everything the statement resolver extracted from one
// statement node.
type StatementSpec struct {
	ID            string
	Command       model.CommandKind
	Source        model.SQLSource
	StatementType model.StatementType

	FetchSize int
	Timeout   int

	ParameterShapeRef string
	ParameterType     reflect.Type
	ResultShapeRefs   string // comma-separated references
	ResultType        reflect.Type
	ResultSetKind     model.ResultSetKind
	ResultSets        []string

	FlushCache    bool
	UseCache      bool
	ResultOrdered bool

	KeyGen      model.KeyGenerator
	KeyProperty string
	KeyColumn   string

	Vendor string
}

// AddStatement links and registers a statement descriptor. Referenced shapes
// that are not registered yet, or an unresolved cache-ref, defer with an
// incomplete signal.
func (a *Assistant) AddStatement(spec StatementSpec) (*model.StatementDescriptor, error) {
	if a.unresolvedCacheRef {
		return nil, errs.Incompletef("cache-ref for namespace %q not yet resolved", a.namespace)
	}
	qid, err := a.ApplyNamespace(spec.ID, false)
	if err != nil {
		return nil, err
	}

	paramShape, err := a.statementParameterShape(spec, qid)
	if err != nil {
		return nil, err
	}
	resultShapes, err := a.statementResultShapes(spec, qid)
	if err != nil {
		return nil, err
	}

	stmt := &model.StatementDescriptor{
		ID:             qid,
		Resource:       a.resource,
		Command:        spec.Command,
		Source:         spec.Source,
		StatementType:  spec.StatementType,
		FetchSize:      spec.FetchSize,
		Timeout:        spec.Timeout,
		ParameterShape: paramShape,
		ResultShapes:   resultShapes,
		ResultSetKind:  spec.ResultSetKind,
		ResultSets:     spec.ResultSets,
		FlushCache:     spec.FlushCache,
		UseCache:       spec.UseCache,
		ResultOrdered:  spec.ResultOrdered,
		Cache:          a.currentCache,
		KeyGen:         spec.KeyGen,
		KeyProperty:    spec.KeyProperty,
		KeyColumn:      spec.KeyColumn,
		Vendor:         spec.Vendor,
	}
	a.reg.AddStatement(stmt)
	return stmt, nil
}

func (a *Assistant) statementParameterShape(spec StatementSpec, statementID string) (*model.ParameterShape, error) {
	ref, err := a.ApplyNamespace(spec.ParameterShapeRef, true)
	if err != nil {
		return nil, err
	}
	if ref != "" {
		shape, ok := a.reg.ParameterShape(ref)
		if !ok {
			return nil, errs.Incompletef("could not find parameter shape %q", ref)
		}
		return shape, nil
	}
	if spec.ParameterType != nil {
		// Inline shape, not registered: private to the statement.
		return &model.ParameterShape{ID: statementID + "-Inline", Type: spec.ParameterType}, nil
	}
	return nil, nil
}

func (a *Assistant) statementResultShapes(spec StatementSpec, statementID string) ([]*model.ResultShape, error) {
	if spec.ResultShapeRefs != "" {
		var shapes []*model.ResultShape
		for _, ref := range strings.Split(spec.ResultShapeRefs, ",") {
			name, err := a.ApplyNamespace(strings.TrimSpace(ref), true)
			if err != nil {
				return nil, err
			}
			shape, ok := a.reg.ResultShape(name)
			if !ok {
				return nil, errs.Incompletef("could not find result shape %q referenced from %q", name, statementID)
			}
			shapes = append(shapes, shape)
		}
		return shapes, nil
	}
	if spec.ResultType != nil {
		return []*model.ResultShape{{ID: statementID + "-Inline", Type: spec.ResultType}}, nil
	}
	return nil, nil
}

// parseColumnList splits a comma-separated column attribute, tolerating the
// braced form "{col1,col2}".
func parseColumnList(columns string) []string {
	if columns == "" {
		return nil
	}
	var out []string
	for _, c := range strings.FieldsFunc(columns, func(r rune) bool {
		return r == '{' || r == '}' || r == ',' || r == ' '
	}) {
		out = append(out, c)
	}
	return out
}

// parseCompositeColumn parses the "{prop=col,prop2=col2}" composite column
// syntax used with nested selects.
func parseCompositeColumn(column string) []model.ResultBinding {
	if column == "" || (!strings.Contains(column, "=") && !strings.Contains(column, ",")) {
		return nil
	}
	fields := strings.FieldsFunc(column, func(r rune) bool {
		return r == '{' || r == '}' || r == '=' || r == ',' || r == ' '
	})
	var out []model.ResultBinding
	for i := 0; i+1 < len(fields); i += 2 {
		out = append(out, model.ResultBinding{Property: fields[i], Column: fields[i+1]})
	}
	return out
}
