package compose

import "sort"

// fileTree is a directory tree used to enumerate a staged release in a
// deterministic, sorted order before archiving: it guarantees the tarball
// writer visits every staged path in the same order on every run, which is
// what makes two releases of the same model byte-identical.
type fileTree struct {
	name     string
	path     string
	isFile   bool
	children []*fileTree
}

func newFileTree() *fileTree { return &fileTree{} }

// add registers relPath (slash-separated, relative to the staged root) as a
// file in the tree.
func (n *fileTree) add(relPath string) {
	n.addParts(relPath, splitPath(relPath))
}

func (n *fileTree) addParts(fullPath string, parts []string) {
	if len(parts) == 1 {
		for _, c := range n.children {
			if c.name == parts[0] {
				return
			}
		}
		n.children = append(n.children, &fileTree{name: parts[0], isFile: true, path: fullPath})
		return
	}
	for _, c := range n.children {
		if c.name == parts[0] {
			c.addParts(fullPath, parts[1:])
			return
		}
	}
	child := &fileTree{name: parts[0]}
	n.children = append(n.children, child)
	child.addParts(fullPath, parts[1:])
}

// sortedPaths returns every file path in the tree, depth-first, with
// children visited in lexical order at each level.
func (n *fileTree) sortedPaths() []string {
	sorted := append([]*fileTree(nil), n.children...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	var out []string
	for _, c := range sorted {
		if c.isFile {
			out = append(out, c.path)
		} else {
			out = append(out, c.sortedPaths()...)
		}
	}
	return out
}

func splitPath(p string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	if start < len(p) {
		parts = append(parts, p[start:])
	}
	return parts
}
