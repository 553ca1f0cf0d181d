package builder

import (
	"sqlmapper/internal/errs"
	"sqlmapper/token"
	"sqlmapper/xmltree"
)

// applyIncludes expands every included-fragment reference under node in
// place. Fragment nodes are cloned before edits so a fragment shared across
// namespaces is never corrupted; inclusion-local <property> values are
// substituted into the fragment's attributes and text first.
func (b *DocumentBuilder) applyIncludes(node *xmltree.Node, variables map[string]string, included bool) error {
	switch {
	case node.Kind() == xmltree.ElementNode && node.Name() == "include":
		refid, _ := node.Attr("refid")
		refid = token.Expand(refid, variables)
		qid, err := b.assistant.ApplyNamespace(refid, true)
		if err != nil {
			return err
		}
		fragment, ok := b.reg.Fragment(qid)
		if !ok {
			return errs.Incompletef("could not find sql fragment %q to include", qid)
		}
		clone := fragment.Clone()

		merged, err := b.inclusionVariables(node, variables)
		if err != nil {
			return err
		}
		if err := b.applyIncludes(clone, merged, true); err != nil {
			return err
		}
		node.Parent().ReplaceChild(node, clone.Children()...)

	case node.Kind() == xmltree.ElementNode:
		if included && len(variables) > 0 {
			for _, a := range node.Attrs() {
				node.SetAttr(a.Name, token.Expand(a.Value, variables))
			}
		}
		// Children are replaced during expansion, so walk a snapshot.
		children := append([]*xmltree.Node(nil), node.Children()...)
		for _, c := range children {
			if err := b.applyIncludes(c, variables, included); err != nil {
				return err
			}
		}

	case included && len(variables) > 0:
		node.SetRawText(token.Expand(node.RawText(), variables))
	}
	return nil
}

// inclusionVariables merges the <property> children of an include element
// over the inherited variable table. Property values are expanded against the
// inherited table before merging; declaring the same property twice on one
// include is a declaration error.
func (b *DocumentBuilder) inclusionVariables(include *xmltree.Node, inherited map[string]string) (map[string]string, error) {
	props := include.ChildrenNamed("property")
	if len(props) == 0 {
		return inherited, nil
	}
	merged := make(map[string]string, len(inherited)+len(props))
	for k, v := range inherited {
		merged[k] = v
	}
	declared := make(map[string]struct{}, len(props))
	for _, p := range props {
		name, _ := p.Attr("name")
		value, _ := p.Attr("value")
		if _, dup := declared[name]; dup {
			return nil, errs.Buildf(b.resource, "expanding include", name,
				"variable %q defined twice in the same include definition", name)
		}
		declared[name] = struct{}{}
		merged[name] = token.Expand(value, inherited)
	}
	return merged, nil
}
