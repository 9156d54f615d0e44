package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/opsconf/scs/internal/config"
	"github.com/opsconf/scs/internal/model"
)

func newTestRunContext(t *testing.T) *runContext {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.ReleaseDir = filepath.Join(t.TempDir(), "release")
	cfg.ScratchDir = t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rc := &runContext{logger: logger, cfg: cfg, user: "alice"}
	require.NoError(t, rc.openStore().Init(rc.user))
	return rc
}

// parseAndDispatch mirrors run()'s own parse-then-lookup flow without the
// root/SUDO_USER preconditions, so subject/verb wiring can be exercised
// directly in tests.
func parseAndDispatch(t *testing.T, rc *runContext, args ...string) error {
	t.Helper()
	app := kingpin.New("scs", "test")
	cmds := registerCommands(app)
	matched, err := app.Parse(args)
	require.NoError(t, err)
	dispatch, ok := cmds[matched]
	require.True(t, ok, "no handler registered for %q", matched)
	return dispatch(rc)
}

func TestApplicationCreateListShow(t *testing.T) {
	rc := newTestRunContext(t)
	require.NoError(t, model.CreateBuild(rc.cfg.StoreRoot, model.Build{Name: "web"}))

	require.NoError(t, parseAndDispatch(t, rc, "application", "create", "nginx", "--build=web", "--alias=ngx"))

	names, err := model.ListApplications(rc.cfg.StoreRoot)
	require.NoError(t, err)
	assert.Equal(t, []string{"nginx"}, names)

	a, err := model.ShowApplication(rc.cfg.StoreRoot, "nginx")
	require.NoError(t, err)
	assert.Equal(t, "web", a.Build)
	assert.Equal(t, "ngx", a.Alias)
}

func TestEnvironmentConstantSetAndList(t *testing.T) {
	rc := newTestRunContext(t)
	require.NoError(t, model.CreateEnvironment(rc.cfg.StoreRoot, model.Environment{Name: "prod", Alias: "P"}))

	require.NoError(t, parseAndDispatch(t, rc, "environment", "constant", "prod", "--set=REGION=eu-west"))

	values, err := model.ListConstantValues(rc.cfg.StoreRoot, model.EnvConstantPath("prod"))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "REGION", values[0].Name)
	assert.Equal(t, "eu-west", values[0].Value)
}

func TestLocationEnvironmentPlaceAndUnplaceCascadesResource(t *testing.T) {
	rc := newTestRunContext(t)
	require.NoError(t, model.CreateLocation(rc.cfg.StoreRoot, model.Location{Code: "lon"}))
	require.NoError(t, model.CreateEnvironment(rc.cfg.StoreRoot, model.Environment{Name: "prod", Alias: "P"}))
	require.NoError(t, model.CreateBuild(rc.cfg.StoreRoot, model.Build{Name: "web"}))
	require.NoError(t, model.CreateApplication(rc.cfg.StoreRoot, model.Application{Name: "nginx", Build: "web"}))

	require.NoError(t, parseAndDispatch(t, rc, "location", "environment", "lon", "prod", "--place=nginx"))

	placed, err := model.ListPlacements(rc.cfg.StoreRoot, "lon", "prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"nginx"}, placed)

	require.NoError(t, model.CreateResource(rc.cfg.StoreRoot, model.Resource{Type: model.ResourceTypeClusterIP, Value: "10.0.0.5"}))
	require.NoError(t, model.AssignResourceToApplication(rc.cfg.StoreRoot, "10.0.0.5", "lon", "prod", "nginx"))

	require.NoError(t, parseAndDispatch(t, rc, "location", "environment", "lon", "prod", "--unplace=nginx"))

	placed, err = model.ListPlacements(rc.cfg.StoreRoot, "lon", "prod")
	require.NoError(t, err)
	assert.Empty(t, placed)

	r, err := model.ShowResource(rc.cfg.StoreRoot, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, model.AssignNone, r.AssignType)
}

func TestResourceAssignToHostAndUnassign(t *testing.T) {
	rc := newTestRunContext(t)
	require.NoError(t, model.CreateBuild(rc.cfg.StoreRoot, model.Build{Name: "web"}))
	require.NoError(t, model.CreateLocation(rc.cfg.StoreRoot, model.Location{Code: "lon"}))
	require.NoError(t, model.CreateEnvironment(rc.cfg.StoreRoot, model.Environment{Name: "prod", Alias: "P"}))
	require.NoError(t, model.CreateSystem(rc.cfg.StoreRoot, model.System{
		Name: "web01", Build: "web", Location: "lon", Environment: "prod",
	}))
	require.NoError(t, model.CreateResource(rc.cfg.StoreRoot, model.Resource{Type: model.ResourceTypeIP, Value: "10.0.0.9"}))

	require.NoError(t, parseAndDispatch(t, rc, "resource", "assign", "10.0.0.9", "--host=web01"))

	r, err := model.ShowResource(rc.cfg.StoreRoot, "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, model.AssignHost, r.AssignType)
	assert.Equal(t, "web01", r.AssignTo)

	require.NoError(t, parseAndDispatch(t, rc, "resource", "assign", "10.0.0.9", "--unassign"))
	r, err = model.ShowResource(rc.cfg.StoreRoot, "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, model.AssignNone, r.AssignType)
}

func TestExitForErrorWithoutKindReturnsOne(t *testing.T) {
	err := exitFor(nil)
	assert.Equal(t, 1, err)
}
