package compose

import (
	"fmt"

	"github.com/emicklei/dot"

	"github.com/opsconf/scs/internal/model"
)

// BuildDependencyGraph renders a directed graph of Build -> Applications ->
// Files for one release: a supplemental, optional artifact alongside the
// release tarball.
func BuildDependencyGraph(sys model.System, apps []model.Application, filesByApp map[string][]string) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	buildNode := g.Node(fmt.Sprintf("build: %s", sys.Build))
	for _, app := range apps {
		appNode := g.Node(fmt.Sprintf("application: %s", app.Name))
		g.Edge(buildNode, appNode)
		for _, file := range filesByApp[app.Name] {
			fileNode := g.Node(fmt.Sprintf("file: %s", file))
			g.Edge(appNode, fileNode)
		}
	}
	return g
}
