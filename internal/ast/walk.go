package ast

// Walk traverses the tree starting from node, calling fn for each node.
// If fn returns false, Walk stops traversing that branch.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}

	switch n := node.(type) {
	case *Label:
		walkBlock(n.Block, fn)

	case *Return:
		walkExpr(n.Expr, fn)

	case *CondHeader:
		walkExpr(n.Cond, fn)

	case *LoopHeader:
		walkExpr(n.Cond, fn)

	case *If:
		for _, arm := range n.Arms {
			walkExpr(arm.Cond, fn)
			walkBlock(arm.Block, fn)
		}
		walkBlock(n.Else, fn)

	case *While:
		walkExpr(n.Cond, fn)
		walkBlock(n.Block, fn)

	case *Menu:
		for _, c := range n.Choices {
			Walk(c, fn)
		}

	case *MenuChoice:
		walkExpr(n.Cond, fn)
		walkBlock(n.Block, fn)

	case *TranslationBlock:
		walkBlock(n.Block, fn)

	case *TranslateLanguageBlock:
		walkBlock(n.Block, fn)

	case *Init:
		walkBlock(n.Block, fn)

	case *Style:
		walkExpr(n.Variant, fn)
		for _, p := range n.Properties {
			walkExpr(p.Value, fn)
		}

	// Leaf statements carry no child nodes.
	case *Jump, *Call, *Pass, *Say, *UserStatement, *EndTranslate, *TranslateString,
		*Python, *Define, *Default, *Show, *Scene, *Hide, *With, *Image, *Transform,
		*ShowLayer, *Camera, *RPY, *Screen, *Testcase, *Unknown, *Expr:
	}
}

func walkBlock(block []Stmt, fn func(Node) bool) {
	for _, s := range block {
		Walk(s, fn)
	}
}

func walkExpr(e *Expr, fn func(Node) bool) {
	if e != nil {
		Walk(e, fn)
	}
}

// WalkBlock walks every statement of block.
func WalkBlock(block []Stmt, fn func(Node) bool) {
	walkBlock(block, fn)
}

// Body returns the nested block a statement owns directly, if it has exactly
// one.
func Body(s Stmt) ([]Stmt, bool) {
	switch n := s.(type) {
	case *Label:
		return n.Block, true
	case *While:
		return n.Block, true
	case *Init:
		return n.Block, true
	case *TranslationBlock:
		return n.Block, true
	case *TranslateLanguageBlock:
		return n.Block, true
	}
	return nil, false
}
