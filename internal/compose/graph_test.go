package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsconf/scs/internal/model"
)

func TestBuildDependencyGraphRendersEdges(t *testing.T) {
	sys := model.System{Name: "web01", Build: "web"}
	apps := []model.Application{{Name: "nginx"}}
	filesByApp := map[string][]string{"nginx": {"nginx.conf", "banner.png"}}

	g := BuildDependencyGraph(sys, apps, filesByApp)
	out := g.String()

	assert.True(t, strings.Contains(out, "build: web"))
	assert.True(t, strings.Contains(out, "application: nginx"))
	assert.True(t, strings.Contains(out, "file: nginx.conf"))
	assert.True(t, strings.Contains(out, "file: banner.png"))
}
