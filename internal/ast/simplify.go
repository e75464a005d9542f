package ast

// Simplify performs scene-level common-subexpression elimination: for each
// pair of nodes (i, j) with i < j, if j is identical to i (per Node.SameAs),
// every reference to j anywhere in the Ast is redirected to i and j is
// killed. Node indices never move, so callers holding a NodeID from before
// simplification remain valid afterward — they just might now point at a
// Noop that contributes nothing further down the pipeline.
//
// This is the textbook quadratic CSE sweep: O(n^2) node comparisons, each
// O(children) to evaluate. Scenes in this domain are small (hundreds of
// nodes, not millions), so the simple algorithm is preferred over an
// indexed hash-cons — see DESIGN.md.
func Simplify(a *Ast) {
	for i := range a.Nodes {
		if a.Nodes[i].Op == Noop {
			continue
		}
		for j := i + 1; j < len(a.Nodes); j++ {
			if !a.Nodes[i].SameAs(&a.Nodes[j]) {
				continue
			}
			a.ReplaceAllUsesWith(NodeID(j), NodeID(i))
			a.Kill(NodeID(j))
		}
	}
}
