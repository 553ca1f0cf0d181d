package builder

import (
	"reflect"
	"strings"

	"sqlmapper/internal/errs"
	"sqlmapper/model"
	"sqlmapper/xmltree"
)

// statementBuilder resolves one statement node: it applies the vendor
// tie-break, expands includes, lifts selectKey declarations into their own
// statements, determines the key generator, and registers the descriptor.
type statementBuilder struct {
	doc            *DocumentBuilder
	node           *xmltree.Node
	requiredVendor string
}

func (s *statementBuilder) parse() error {
	b := s.doc
	node := s.node

	id, _ := node.Attr("id")
	vendor, _ := node.Attr("databaseId")
	matches, err := s.matchesVendor(id, vendor, s.requiredVendor)
	if err != nil {
		return err
	}
	if !matches {
		// This variant is not for this build pass.
		return nil
	}

	command, err := model.ParseCommandKind(node.Name())
	if err != nil {
		return errs.Buildf(b.resource, "parsing statement", id, "%v", err)
	}
	isSelect := command == model.CommandSelect
	flushCache := node.BoolAttr("flushCache", !isSelect)
	useCache := node.BoolAttr("useCache", isSelect)
	resultOrdered := node.BoolAttr("resultOrdered", false)

	if err := b.applyIncludes(node, b.opts.Variables, false); err != nil {
		return errs.Wrap(err, b.resource, "expanding includes", id)
	}

	paramType, err := b.types.Resolve(node.AttrDefault("parameterType", ""))
	if err != nil {
		return errs.Wrap(err, b.resource, "parsing statement", id)
	}

	if err := s.processSelectKeyNodes(id, paramType); err != nil {
		return err
	}

	keyGen, err := s.keyGenerator(id, command, node)
	if err != nil {
		return err
	}

	source, err := b.script.CreateSource(node, paramType, b.opts.Variables)
	if err != nil {
		return errs.Wrap(err, b.resource, "building sql source", id)
	}
	statementType, err := model.ParseStatementType(node.AttrDefault("statementType", ""))
	if err != nil {
		return errs.Buildf(b.resource, "parsing statement", id, "%v", err)
	}
	resultType, err := b.types.Resolve(node.AttrDefault("resultType", ""))
	if err != nil {
		return errs.Wrap(err, b.resource, "parsing statement", id)
	}
	resultSetKind, err := model.ParseResultSetKind(node.AttrDefault("resultSetType", ""))
	if err != nil {
		return errs.Buildf(b.resource, "parsing statement", id, "%v", err)
	}

	spec := StatementSpec{
		ID:                id,
		Command:           command,
		Source:            source,
		StatementType:     statementType,
		FetchSize:         node.IntAttr("fetchSize", 0),
		Timeout:           node.IntAttr("timeout", 0),
		ParameterShapeRef: node.AttrDefault("parameterMap", ""),
		ParameterType:     paramType,
		ResultShapeRefs:   node.AttrDefault("resultMap", ""),
		ResultType:        resultType,
		ResultSetKind:     resultSetKind,
		ResultSets:        splitList(node.AttrDefault("resultSets", "")),
		FlushCache:        flushCache,
		UseCache:          useCache,
		ResultOrdered:     resultOrdered,
		KeyGen:            keyGen,
		KeyProperty:       node.AttrDefault("keyProperty", ""),
		KeyColumn:         node.AttrDefault("keyColumn", ""),
		Vendor:            vendor,
	}
	_, err = b.assistant.AddStatement(spec)
	return err
}

// keyGenerator picks the statement's key-generation strategy: a synthesized
// selectKey statement when one was registered, else the driver-native
// strategy for inserts with generated keys enabled, else a no-op.
func (s *statementBuilder) keyGenerator(id string, command model.CommandKind, node *xmltree.Node) (model.KeyGenerator, error) {
	b := s.doc
	keyStatementID, err := b.assistant.ApplyNamespace(id+model.SelectKeySuffix, true)
	if err != nil {
		return nil, err
	}
	if gen, ok := b.reg.KeyGenerator(keyStatementID); ok {
		return gen, nil
	}
	useGenerated := node.BoolAttr("useGeneratedKeys",
		b.opts.UseGeneratedKeys && command == model.CommandInsert)
	if useGenerated {
		return model.NativeKey{}, nil
	}
	return model.NoKey{}, nil
}

// processSelectKeyNodes lifts nested selectKey declarations into their own
// read-only statements and strips them from the node tree so they are not
// mistaken for statement content.
func (s *statementBuilder) processSelectKeyNodes(parentID string, paramType reflect.Type) error {
	b := s.doc
	nodes := s.node.ChildrenNamed("selectKey")
	if len(nodes) == 0 {
		return nil
	}
	if b.opts.Vendor != "" {
		if err := s.parseSelectKeyNodes(parentID, nodes, paramType, b.opts.Vendor); err != nil {
			return err
		}
	}
	if err := s.parseSelectKeyNodes(parentID, nodes, paramType, ""); err != nil {
		return err
	}
	for _, n := range nodes {
		s.node.RemoveChild(n)
	}
	return nil
}

func (s *statementBuilder) parseSelectKeyNodes(parentID string, nodes []*xmltree.Node, paramType reflect.Type, requiredVendor string) error {
	keyID := parentID + model.SelectKeySuffix
	for _, n := range nodes {
		vendor, _ := n.Attr("databaseId")
		matches, err := s.matchesVendor(keyID, vendor, requiredVendor)
		if err != nil {
			return err
		}
		if matches {
			if err := s.parseSelectKeyNode(keyID, n, paramType, vendor); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *statementBuilder) parseSelectKeyNode(keyID string, node *xmltree.Node, paramType reflect.Type, vendor string) error {
	b := s.doc
	resultType, err := b.types.Resolve(node.AttrDefault("resultType", ""))
	if err != nil {
		return errs.Wrap(err, b.resource, "parsing selectKey", keyID)
	}
	statementType, err := model.ParseStatementType(node.AttrDefault("statementType", ""))
	if err != nil {
		return errs.Buildf(b.resource, "parsing selectKey", keyID, "%v", err)
	}
	runBefore := node.AttrDefault("order", "AFTER") == "BEFORE"

	source, err := b.script.CreateSource(node, paramType, b.opts.Variables)
	if err != nil {
		return errs.Wrap(err, b.resource, "building selectKey sql source", keyID)
	}

	spec := StatementSpec{
		ID:            keyID,
		Command:       model.CommandSelect,
		Source:        source,
		StatementType: statementType,
		ParameterType: paramType,
		ResultType:    resultType,
		KeyGen:        model.NoKey{},
		KeyProperty:   node.AttrDefault("keyProperty", ""),
		KeyColumn:     node.AttrDefault("keyColumn", ""),
		Vendor:        vendor,
	}
	stmt, err := b.assistant.AddStatement(spec)
	if err != nil {
		return err
	}
	return b.reg.AddKeyGenerator(stmt.ID, &model.SelectKey{
		StatementID: stmt.ID,
		Statement:   stmt,
		RunBefore:   runBefore,
	})
}

// matchesVendor applies the vendor tie-break: with a required vendor only
// matching tags pass; without one, untagged declarations pass unless a
// tagged declaration already claimed the qualified id.
func (s *statementBuilder) matchesVendor(id, vendor, requiredVendor string) (bool, error) {
	if requiredVendor != "" {
		return vendor == requiredVendor, nil
	}
	if vendor != "" {
		return false, nil
	}
	qid, err := s.doc.assistant.ApplyNamespace(id, false)
	if err != nil {
		return false, err
	}
	previous, ok := s.doc.reg.Statement(qid)
	if !ok {
		return true, nil
	}
	return previous.Vendor == "", nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
