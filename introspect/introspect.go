package introspect

import (
	"fmt"
	"reflect"
	"strings"
)

// Introspector answers whether a composite type exposes a readable or
// writable slot for a property name, and what that slot's static type is.
// Implementations never mutate state.
type Introspector interface {
	HasReadableSlot(t reflect.Type, name string) bool
	HasWritableSlot(t reflect.Type, name string) bool
	SlotType(t reflect.Type, name string) (reflect.Type, bool)
}

// Default is the reflect-based Introspector used when the caller supplies
// none. A slot is an exported struct field matched case-insensitively, or a
// Set<Name>/Get<Name> method pair member. Map types accept any property with
// the map's element type.
type Default struct{}

func (Default) HasReadableSlot(t reflect.Type, name string) bool {
	_, ok := slot(t, name, false)
	return ok
}

func (Default) HasWritableSlot(t reflect.Type, name string) bool {
	_, ok := slot(t, name, true)
	return ok
}

func (Default) SlotType(t reflect.Type, name string) (reflect.Type, bool) {
	return slot(t, name, true)
}

func slot(t reflect.Type, name string, writable bool) (reflect.Type, bool) {
	if t == nil || name == "" {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map:
		return t.Elem(), true
	case reflect.Struct:
	default:
		return nil, false
	}
	if f, ok := t.FieldByNameFunc(func(fn string) bool { return strings.EqualFold(fn, name) }); ok && f.IsExported() {
		return f.Type, true
	}
	// Accessor methods are looked up on the pointer type so pointer-receiver
	// setters are visible.
	pt := reflect.PointerTo(t)
	if writable {
		if m, ok := methodFold(pt, "Set"+name); ok && m.Type.NumIn() == 2 {
			return m.Type.In(1), true
		}
		return nil, false
	}
	if m, ok := methodFold(pt, "Get"+name); ok && m.Type.NumOut() >= 1 {
		return m.Type.Out(0), true
	}
	return nil, false
}

func methodFold(t reflect.Type, name string) (reflect.Method, bool) {
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return reflect.Method{}, false
}

// Types resolves document type names to Go types. Aliases are
// case-insensitive; callers register their domain types before loading
// documents.
type Types struct {
	aliases map[string]reflect.Type
}

// NewTypes creates a registry preloaded with the built-in aliases.
func NewTypes() *Types {
	t := &Types{aliases: make(map[string]reflect.Type)}
	t.Register("string", reflect.TypeOf(""))
	t.Register("int", reflect.TypeOf(int(0)))
	t.Register("long", reflect.TypeOf(int64(0)))
	t.Register("float", reflect.TypeOf(float32(0)))
	t.Register("double", reflect.TypeOf(float64(0)))
	t.Register("bool", reflect.TypeOf(false))
	t.Register("bytes", reflect.TypeOf([]byte(nil)))
	t.Register("map", reflect.TypeOf(map[string]any(nil)))
	t.Register("list", reflect.TypeOf([]any(nil)))
	t.Register("object", reflect.TypeOf((*any)(nil)).Elem())
	return t
}

// Register binds an alias to a type. Re-registering an alias to a different
// type returns an error.
func (t *Types) Register(alias string, typ reflect.Type) error {
	key := strings.ToLower(alias)
	if prev, ok := t.aliases[key]; ok && prev != typ {
		return fmt.Errorf("type alias %q already registered as %s", alias, prev)
	}
	t.aliases[key] = typ
	return nil
}

// RegisterValue binds an alias to the dynamic type of v.
func (t *Types) RegisterValue(alias string, v any) error {
	return t.Register(alias, reflect.TypeOf(v))
}

// Resolve maps a type name from a document to a registered type. The empty
// name resolves to nil without error; an unknown name is a declaration error.
func (t *Types) Resolve(name string) (reflect.Type, error) {
	if name == "" {
		return nil, nil
	}
	if typ, ok := t.aliases[strings.ToLower(name)]; ok {
		return typ, nil
	}
	return nil, fmt.Errorf("unknown type %q: register it before loading documents", name)
}
