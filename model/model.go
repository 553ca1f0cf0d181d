package model

import (
	"fmt"
	"reflect"
	"strings"

	"sqlmapper/cache"
)

// SelectKeySuffix is the reserved suffix under which a synthesized
// key-generation statement is registered next to its owning statement.
const SelectKeySuffix = "!selectKey"

// CommandKind classifies a statement by its effect.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandSelect
	CommandInsert
	CommandUpdate
	CommandDelete
)

// String returns a human-readable command name.
func (k CommandKind) String() string {
	switch k {
	case CommandSelect:
		return "select"
	case CommandInsert:
		return "insert"
	case CommandUpdate:
		return "update"
	case CommandDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseCommandKind resolves a statement element name to its command kind.
func ParseCommandKind(name string) (CommandKind, error) {
	switch strings.ToLower(name) {
	case "select":
		return CommandSelect, nil
	case "insert":
		return CommandInsert, nil
	case "update":
		return CommandUpdate, nil
	case "delete":
		return CommandDelete, nil
	default:
		return CommandUnknown, fmt.Errorf("unknown statement kind %q", name)
	}
}

// StatementType selects how the execution layer prepares the statement.
type StatementType int

const (
	StatementPrepared StatementType = iota
	StatementPlain
	StatementCallable
)

// String returns a human-readable statement type name.
func (t StatementType) String() string {
	switch t {
	case StatementPlain:
		return "STATEMENT"
	case StatementCallable:
		return "CALLABLE"
	default:
		return "PREPARED"
	}
}

// ParseStatementType resolves a statementType attribute. Empty means
// PREPARED.
func ParseStatementType(name string) (StatementType, error) {
	switch strings.ToUpper(name) {
	case "", "PREPARED":
		return StatementPrepared, nil
	case "STATEMENT":
		return StatementPlain, nil
	case "CALLABLE":
		return StatementCallable, nil
	default:
		return StatementPrepared, fmt.Errorf("unknown statement type %q", name)
	}
}

// ResultSetKind is the cursor behavior hint for a statement.
type ResultSetKind int

const (
	ResultSetDefault ResultSetKind = iota
	ResultSetForwardOnly
	ResultSetScrollInsensitive
	ResultSetScrollSensitive
)

// ParseResultSetKind resolves a resultSetType attribute. Empty means the
// driver default.
func ParseResultSetKind(name string) (ResultSetKind, error) {
	switch strings.ToUpper(name) {
	case "", "DEFAULT":
		return ResultSetDefault, nil
	case "FORWARD_ONLY":
		return ResultSetForwardOnly, nil
	case "SCROLL_INSENSITIVE":
		return ResultSetScrollInsensitive, nil
	case "SCROLL_SENSITIVE":
		return ResultSetScrollSensitive, nil
	default:
		return ResultSetDefault, fmt.Errorf("unknown result set type %q", name)
	}
}

// ParamMode declares the direction of a parameter binding.
type ParamMode int

const (
	ModeIn ParamMode = iota
	ModeOut
	ModeInOut
)

// ParseParamMode resolves a parameter mode attribute. Empty means IN.
func ParseParamMode(name string) (ParamMode, error) {
	switch strings.ToUpper(name) {
	case "", "IN":
		return ModeIn, nil
	case "OUT":
		return ModeOut, nil
	case "INOUT":
		return ModeInOut, nil
	default:
		return ModeIn, fmt.Errorf("unknown parameter mode %q", name)
	}
}

// AutoMapping is the tri-state automatic column mapping flag on a result
// shape.
type AutoMapping int

const (
	AutoDefault AutoMapping = iota
	AutoOff
	AutoOn
)

// SQLSource is the output of the external scripting collaborator: a resolved
// SQL template for one statement.
type SQLSource interface {
	SQL() string
}

// StaticSQL is an SQLSource holding already-expanded text.
type StaticSQL struct {
	Text string
}

func (s StaticSQL) SQL() string { return s.Text }

// KeyGenerator is the generated-key strategy bound to a statement.
type KeyGenerator interface {
	keyGenerator()
}

// NoKey performs no key generation.
type NoKey struct{}

func (NoKey) keyGenerator() {}

// NativeKey relies on the driver's generated-keys facility.
type NativeKey struct{}

func (NativeKey) keyGenerator() {}

// SelectKey runs a synthesized read-only statement to obtain the key, either
// before or after the owning statement.
type SelectKey struct {
	// StatementID is the qualified id of the synthesized statement.
	StatementID string
	Statement   *StatementDescriptor
	RunBefore   bool
}

func (*SelectKey) keyGenerator() {}

// ResultBinding maps one column to one slot of the target type. Bindings may
// nest via a referenced shape (associations, collections) or a nested select.
type ResultBinding struct {
	Property       string
	Column         string
	Type           reflect.Type
	NestedSelectID string
	NestedShapeID  string
	NotNullColumns []string
	ColumnPrefix   string
	Composites     []ResultBinding
	IsID           bool
	IsConstructor  bool
	Lazy           bool
}

// Overrides reports whether b suppresses an inherited binding with the same
// discriminating key.
func (b ResultBinding) Overrides(other ResultBinding) bool {
	return b.Property != "" && b.Property == other.Property
}

// Discriminator selects a nested result shape from a column value.
type Discriminator struct {
	Column string
	Type   reflect.Type
	// Cases maps discriminant values to qualified result shape ids.
	Cases map[string]string
}

// ResultShape maps row data to a target composite type. Immutable once
// registered.
type ResultShape struct {
	ID            string
	Type          reflect.Type
	Bindings      []ResultBinding
	Discriminator *Discriminator
	AutoMapping   AutoMapping
}

// ParameterBinding maps one statement parameter.
type ParameterBinding struct {
	Property     string
	Type         reflect.Type
	Mode         ParamMode
	NumericScale int
	// ResultShapeID references a shape for OUT cursor parameters.
	ResultShapeID string
}

// ParameterShape maps the statement's parameter object. Immutable once
// registered.
type ParameterShape struct {
	ID       string
	Type     reflect.Type
	Bindings []ParameterBinding
}

// StatementDescriptor is the fully linked description of one statement.
// Immutable once registered.
type StatementDescriptor struct {
	ID            string
	Resource      string
	Command       CommandKind
	Source        SQLSource
	StatementType StatementType

	FetchSize int
	Timeout   int

	ParameterShape *ParameterShape
	ResultShapes   []*ResultShape
	ResultSetKind  ResultSetKind
	ResultSets     []string

	FlushCache    bool
	UseCache      bool
	ResultOrdered bool
	Cache         cache.Cache

	KeyGen      KeyGenerator
	KeyProperty string
	KeyColumn   string

	// Vendor is the optional tag selecting this statement variant for one
	// backing store flavor.
	Vendor string
}
