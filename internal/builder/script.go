package builder

import (
	"reflect"
	"strings"

	"sqlmapper/model"
	"sqlmapper/token"
	"sqlmapper/xmltree"
)

// ScriptEngine is the external scripting collaborator: it turns a statement
// node, with includes already expanded, into the statement's SQL template.
type ScriptEngine interface {
	CreateSource(node *xmltree.Node, paramType reflect.Type, variables map[string]string) (model.SQLSource, error)
}

// RawScript is the default ScriptEngine: it concatenates the node's text
// content, expands remaining placeholders, and normalizes whitespace.
type RawScript struct{}

func (RawScript) CreateSource(node *xmltree.Node, _ reflect.Type, variables map[string]string) (model.SQLSource, error) {
	sql := token.Expand(node.Body(), variables)
	sql = strings.Join(strings.Fields(sql), " ")
	return model.StaticSQL{Text: sql}, nil
}
