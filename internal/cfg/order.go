package cfg

// ReversePostorder returns the blocks of f in reverse postorder over the
// control-flow graph, starting at the entry block. Successor order is
// deterministic (true edge before false edge), so the result is stable for a
// given graph. Unreachable blocks are not included.
func ReversePostorder(f *Function) []*BasicBlock {
	if f.Entry == nil {
		return nil
	}

	visited := make(map[*BasicBlock]bool)
	var postorder []*BasicBlock

	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, succ := range Successors(b.Terminator) {
			visit(succ)
		}
		postorder = append(postorder, b)
	}
	visit(f.Entry)

	rpo := make([]*BasicBlock, len(postorder))
	for i, b := range postorder {
		rpo[len(postorder)-1-i] = b
	}
	return rpo
}

// BackEdges returns the edges (from, to) that close a cycle, i.e. edges into
// a block that is an ancestor on the current DFS path. A function with no
// back edges is a DAG and needs no unrolling.
func BackEdges(f *Function) [][2]*BasicBlock {
	if f.Entry == nil {
		return nil
	}

	const (
		unvisited = 0
		onPath    = 1
		done      = 2
	)
	stateOf := make(map[*BasicBlock]int)
	var edges [][2]*BasicBlock

	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		stateOf[b] = onPath
		for _, succ := range Successors(b.Terminator) {
			switch stateOf[succ] {
			case unvisited:
				visit(succ)
			case onPath:
				edges = append(edges, [2]*BasicBlock{b, succ})
			}
		}
		stateOf[b] = done
	}
	visit(f.Entry)
	return edges
}
