package pathfinder

import "cracksql/internal/signature"

// emit merges root-to-terminal paths into a signature tree. Each path is
// diffed against the previous one: shared steps are reused, the rest are
// opened as new children.
//
// With a single path only its last two steps are kept. This mirrors how
// catalogued single-keyword signatures were curated; it can under-specify a
// function whose call wrapper sits more than two rules deep, and is kept
// deliberately.
func emit(paths []path) *signature.Tree {
	if len(paths) == 1 && len(paths[0]) > 2 {
		paths = []path{paths[0][len(paths[0])-2:]}
	}

	var (
		root *signature.Tree
		open []*signature.Tree
		prev path
	)
	for _, p := range paths {
		depth := 0
		for depth < len(p) && depth < len(prev) && p[depth] == prev[depth] {
			depth++
		}
		open = open[:depth]
		for i := depth; i < len(p); i++ {
			n := &signature.Tree{Name: p[i].name}
			if i == 0 {
				if root == nil {
					root = n
				}
			} else {
				parent := open[i-1]
				parent.Children = append(parent.Children, n)
			}
			open = append(open, n)
		}
		prev = p
	}
	return root
}
