package builder

import (
	"reflect"
	"time"

	"sqlmapper/cache"
	"sqlmapper/internal/errs"
	"sqlmapper/internal/registry"
	"sqlmapper/introspect"
	"sqlmapper/model"
	"sqlmapper/xmltree"
)

// Options carries the session-level settings a document build depends on.
type Options struct {
	// Vendor is the required vendor id of this load; empty accepts only
	// untagged declarations.
	Vendor string
	// UseGeneratedKeys is the global default for insert statements.
	UseGeneratedKeys bool
	// Variables is the placeholder table.
	Variables map[string]string
	// CacheBases maps cache type names to base construction primitives.
	// "PERPETUAL" is always available.
	CacheBases map[string]cache.BaseFunc
}

// DocumentBuilder drives the resolution of one mapping document: it stamps
// the namespace, registers caches, shapes, fragments, and statements, parking
// whatever cannot complete yet.
type DocumentBuilder struct {
	assistant *Assistant
	reg       *registry.Registry
	types     *introspect.Types
	intro     introspect.Introspector
	script    ScriptEngine
	root      *xmltree.Node
	resource  string
	opts      Options
}

// NewDocumentBuilder creates a builder for one parsed document.
func NewDocumentBuilder(reg *registry.Registry, types *introspect.Types, intro introspect.Introspector,
	script ScriptEngine, resource string, doc *xmltree.Document, opts Options) *DocumentBuilder {
	return &DocumentBuilder{
		assistant: NewAssistant(reg, types, intro, resource),
		reg:       reg,
		types:     types,
		intro:     intro,
		script:    script,
		root:      doc.Root,
		resource:  resource,
		opts:      opts,
	}
}

// Parse registers the document's declarations and then runs one retry pass
// over the deferred queues. Re-parsing an already-registered resource is a
// no-op apart from the retry pass.
func (b *DocumentBuilder) Parse() error {
	if !b.reg.IsLoaded(b.resource) {
		if err := b.configurationElement(b.root); err != nil {
			return err
		}
		b.reg.MarkLoaded(b.resource)
	}
	_, err := b.reg.RetryPending()
	return err
}

func (b *DocumentBuilder) configurationElement(root *xmltree.Node) error {
	if root.Name() != "mapper" {
		return errs.Buildf(b.resource, "reading document", root.Name(),
			"expected a mapper root element, found %q", root.Name())
	}
	ns, _ := root.Attr("namespace")
	if err := b.assistant.SetNamespace(ns); err != nil {
		return err
	}
	if err := b.cacheRefElement(root.ChildNamed("cache-ref")); err != nil {
		return err
	}
	if err := b.cacheElement(root.ChildNamed("cache")); err != nil {
		return err
	}
	for _, n := range root.ChildrenNamed("parameterMap") {
		if err := b.parameterMapElement(n); err != nil {
			return err
		}
	}
	for _, n := range root.ChildrenNamed("resultMap") {
		if _, err := b.resultMapElement(n, nil, nil); err != nil && !errs.IsIncomplete(err) {
			return err
		}
	}
	if err := b.sqlElements(root.ChildrenNamed("sql")); err != nil {
		return err
	}
	return b.statementElements(root.ChildrenNamed("select", "insert", "update", "delete"))
}

func (b *DocumentBuilder) cacheRefElement(node *xmltree.Node) error {
	if node == nil {
		return nil
	}
	ref, _ := node.Attr("namespace")
	b.reg.AddCacheRef(b.assistant.Namespace(), ref)
	_, err := b.assistant.UseCacheRef(ref)
	if errs.IsIncomplete(err) {
		a := b.assistant
		b.reg.AddPendingCacheRef(&registry.Deferred{
			Object: ref,
			Cause:  err,
			Retry: func() error {
				_, retryErr := a.UseCacheRef(ref)
				return retryErr
			},
		})
		return nil
	}
	return err
}

func (b *DocumentBuilder) cacheElement(node *xmltree.Node) error {
	if node == nil {
		return nil
	}
	base, err := b.cacheBase(node.AttrDefault("type", "PERPETUAL"))
	if err != nil {
		return err
	}
	eviction, err := cache.ParseEviction(node.AttrDefault("eviction", "LRU"))
	if err != nil {
		return errs.Wrap(err, b.resource, "reading cache element", b.assistant.Namespace())
	}
	spec := CacheSpec{
		Base:          base,
		Eviction:      eviction,
		FlushInterval: time.Duration(node.Int64Attr("flushInterval", 0)) * time.Millisecond,
		Size:          node.IntAttr("size", 0),
		ReadWrite:     !node.BoolAttr("readOnly", false),
		Blocking:      node.BoolAttr("blocking", false),
		Properties:    node.ChildPropertiesAsVariables(),
	}
	_, err = b.assistant.UseNewCache(spec)
	return err
}

func (b *DocumentBuilder) cacheBase(typeName string) (cache.BaseFunc, error) {
	if typeName == "" || typeName == "PERPETUAL" {
		return nil, nil // builder default
	}
	if fn, ok := b.opts.CacheBases[typeName]; ok {
		return fn, nil
	}
	return nil, errs.Buildf(b.resource, "reading cache element", b.assistant.Namespace(),
		"unknown cache type %q", typeName)
}

func (b *DocumentBuilder) parameterMapElement(node *xmltree.Node) error {
	id, _ := node.Attr("id")
	typeName, _ := node.Attr("type")
	paramType, err := b.types.Resolve(typeName)
	if err != nil {
		return errs.Wrap(err, b.resource, "reading parameterMap element", id)
	}
	var bindings []model.ParameterBinding
	for _, p := range node.ChildrenNamed("parameter") {
		mode, err := model.ParseParamMode(p.AttrDefault("mode", ""))
		if err != nil {
			return errs.Wrap(err, b.resource, "reading parameter element", id)
		}
		spec := ParamSpec{
			Property:     p.AttrDefault("property", ""),
			TypeName:     p.AttrDefault("javaType", ""),
			Mode:         mode,
			NumericScale: p.IntAttr("numericScale", 0),
			ResultShape:  p.AttrDefault("resultMap", ""),
		}
		binding, err := b.assistant.BuildParameterBinding(paramType, spec)
		if err != nil {
			return err
		}
		bindings = append(bindings, binding)
	}
	_, err = b.assistant.AddParameterShape(id, paramType, bindings)
	return err
}

// shapeResolver captures one result-shape resolution so a deferred attempt
// can be retried without re-walking the node.
type shapeResolver struct {
	a        *Assistant
	id       string
	typ      reflect.Type
	extend   string
	disc     *model.Discriminator
	bindings []model.ResultBinding
	auto     model.AutoMapping
}

func (r *shapeResolver) resolve() (*model.ResultShape, error) {
	return r.a.AddResultShape(r.id, r.typ, r.extend, r.disc, r.bindings, r.auto)
}

func (b *DocumentBuilder) resultMapElement(node *xmltree.Node, additional []model.ResultBinding, enclosing reflect.Type) (*model.ResultShape, error) {
	activity := "processing " + node.ValueBasedIdentifier()
	typeName := node.AttrDefault("type",
		node.AttrDefault("ofType",
			node.AttrDefault("resultType",
				node.AttrDefault("javaType", ""))))
	typ, err := b.types.Resolve(typeName)
	if err != nil {
		return nil, errs.Wrap(err, b.resource, activity, "")
	}
	if typ == nil {
		typ = b.inheritEnclosingType(node, enclosing)
	}

	bindings := append([]model.ResultBinding(nil), additional...)
	var disc *model.Discriminator
	for _, child := range node.ChildElements() {
		switch child.Name() {
		case "constructor":
			if err := b.constructorElement(child, typ, &bindings); err != nil {
				return nil, err
			}
		case "discriminator":
			disc, err = b.discriminatorElement(child, typ, bindings)
			if err != nil {
				return nil, err
			}
		default:
			binding, err := b.bindingFromNode(child, typ, child.Name() == "id", false)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, binding)
		}
	}

	id := node.AttrDefault("id", node.ValueBasedIdentifier())
	auto := model.AutoDefault
	if _, ok := node.Attr("autoMapping"); ok {
		if node.BoolAttr("autoMapping", false) {
			auto = model.AutoOn
		} else {
			auto = model.AutoOff
		}
	}

	r := &shapeResolver{
		a:        b.assistant,
		id:       id,
		typ:      typ,
		extend:   node.AttrDefault("extends", ""),
		disc:     disc,
		bindings: bindings,
		auto:     auto,
	}
	shape, err := r.resolve()
	if errs.IsIncomplete(err) {
		b.reg.AddPendingShape(&registry.Deferred{
			Object: id,
			Cause:  err,
			Retry: func() error {
				_, retryErr := r.resolve()
				return retryErr
			},
		})
		return nil, err
	}
	if err != nil {
		return nil, errs.Wrap(err, b.resource, activity, id)
	}
	return shape, nil
}

// inheritEnclosingType infers the target type of an inline nested shape from
// the enclosing shape when the declaration omits it.
func (b *DocumentBuilder) inheritEnclosingType(node *xmltree.Node, enclosing reflect.Type) reflect.Type {
	switch node.Name() {
	case "association":
		if _, ok := node.Attr("resultMap"); ok {
			return nil
		}
		property, _ := node.Attr("property")
		if property != "" && enclosing != nil {
			if slot, ok := b.intro.SlotType(enclosing, property); ok {
				return slot
			}
		}
	case "case":
		if _, ok := node.Attr("resultMap"); !ok {
			return enclosing
		}
	}
	return nil
}

func (b *DocumentBuilder) constructorElement(node *xmltree.Node, enclosing reflect.Type, bindings *[]model.ResultBinding) error {
	for _, arg := range node.ChildElements() {
		binding, err := b.bindingFromNode(arg, enclosing, arg.Name() == "idArg", true)
		if err != nil {
			return err
		}
		*bindings = append(*bindings, binding)
	}
	return nil
}

func (b *DocumentBuilder) discriminatorElement(node *xmltree.Node, enclosing reflect.Type, bindings []model.ResultBinding) (*model.Discriminator, error) {
	column, _ := node.Attr("column")
	typeName, _ := node.Attr("javaType")
	cases := make(map[string]string)
	for _, c := range node.ChildrenNamed("case") {
		value, _ := c.Attr("value")
		shapeID, ok := c.Attr("resultMap")
		if !ok {
			nested, err := b.nestedResultShape(c, bindings, enclosing)
			if err != nil {
				return nil, err
			}
			shapeID = nested
		}
		cases[value] = shapeID
	}
	return b.assistant.BuildDiscriminator(column, typeName, cases)
}

func (b *DocumentBuilder) bindingFromNode(node *xmltree.Node, enclosing reflect.Type, isID, isConstructor bool) (model.ResultBinding, error) {
	var property string
	if isConstructor {
		property, _ = node.Attr("name")
	} else {
		property, _ = node.Attr("property")
	}
	nestedShape, ok := node.Attr("resultMap")
	if !ok {
		nested, err := b.nestedResultShape(node, nil, enclosing)
		if err != nil {
			return model.ResultBinding{}, err
		}
		nestedShape = nested
	}
	spec := BindingSpec{
		Property:      property,
		Column:        node.AttrDefault("column", ""),
		TypeName:      node.AttrDefault("javaType", ""),
		NestedSelect:  node.AttrDefault("select", ""),
		NestedShape:   nestedShape,
		NotNullColumn: node.AttrDefault("notNullColumn", ""),
		ColumnPrefix:  node.AttrDefault("columnPrefix", ""),
		IsID:          isID,
		IsConstructor: isConstructor,
		Lazy:          node.AttrDefault("fetchType", "eager") == "lazy",
	}
	return b.assistant.BuildBinding(enclosing, spec)
}

// nestedResultShape recursively resolves an inline association, collection,
// or discriminator case into its own registered shape and returns its id.
func (b *DocumentBuilder) nestedResultShape(node *xmltree.Node, additional []model.ResultBinding, enclosing reflect.Type) (string, error) {
	switch node.Name() {
	case "association", "collection", "case":
		if _, ok := node.Attr("select"); ok {
			return "", nil
		}
		if err := b.validateCollection(node, enclosing); err != nil {
			return "", err
		}
		shape, err := b.resultMapElement(node, additional, enclosing)
		if err != nil {
			return "", err
		}
		return shape.ID, nil
	}
	return "", nil
}

// validateCollection rejects a collection binding whose element type is
// unknowable: no shape reference, no explicit type, and no writable slot on
// the enclosing type. This is a declaration error, never deferred.
func (b *DocumentBuilder) validateCollection(node *xmltree.Node, enclosing reflect.Type) error {
	if node.Name() != "collection" {
		return nil
	}
	if _, ok := node.Attr("resultMap"); ok {
		return nil
	}
	if _, ok := node.Attr("javaType"); ok {
		return nil
	}
	if _, ok := node.Attr("ofType"); ok {
		return nil
	}
	property, _ := node.Attr("property")
	if enclosing == nil || !b.intro.HasWritableSlot(enclosing, property) {
		return errs.Buildf(b.resource, "processing "+node.ValueBasedIdentifier(), property,
			"ambiguous collection type for property %q: specify javaType, ofType, or resultMap", property)
	}
	return nil
}

func (b *DocumentBuilder) sqlElements(nodes []*xmltree.Node) error {
	if b.opts.Vendor != "" {
		if err := b.sqlElementsForVendor(nodes, b.opts.Vendor); err != nil {
			return err
		}
	}
	return b.sqlElementsForVendor(nodes, "")
}

func (b *DocumentBuilder) sqlElementsForVendor(nodes []*xmltree.Node, requiredVendor string) error {
	for _, node := range nodes {
		vendor, _ := node.Attr("databaseId")
		id, _ := node.Attr("id")
		qid, err := b.assistant.ApplyNamespace(id, false)
		if err != nil {
			return err
		}
		if b.fragmentMatchesVendor(qid, vendor, requiredVendor) {
			b.reg.SetFragment(qid, node)
		}
	}
	return nil
}

// fragmentMatchesVendor applies the vendor tie-break to sql fragments: an
// untagged fragment matches an empty required vendor unless a tagged fragment
// already claimed the id.
func (b *DocumentBuilder) fragmentMatchesVendor(qid, vendor, requiredVendor string) bool {
	if requiredVendor != "" {
		return vendor == requiredVendor
	}
	if vendor != "" {
		return false
	}
	existing, ok := b.reg.Fragment(qid)
	if !ok {
		return true
	}
	existingVendor, _ := existing.Attr("databaseId")
	return existingVendor == ""
}

func (b *DocumentBuilder) statementElements(nodes []*xmltree.Node) error {
	if b.opts.Vendor != "" {
		if err := b.statementElementsForVendor(nodes, b.opts.Vendor); err != nil {
			return err
		}
	}
	return b.statementElementsForVendor(nodes, "")
}

func (b *DocumentBuilder) statementElementsForVendor(nodes []*xmltree.Node, requiredVendor string) error {
	for _, node := range nodes {
		sb := &statementBuilder{
			doc:            b,
			node:           node,
			requiredVendor: requiredVendor,
		}
		err := sb.parse()
		if errs.IsIncomplete(err) {
			id, _ := node.Attr("id")
			b.reg.AddPendingStatement(&registry.Deferred{
				Object: id,
				Cause:  err,
				Retry:  sb.parse,
			})
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
