package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicationCreateListShowUpdateDelete(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateBuild(root, Build{Name: "web-1.0", Role: "web"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe", Build: "web-1.0"}))

	names, err := ListApplications(root)
	assert.NoError(t, err)
	assert.Equal(t, []string{"frontend"}, names)

	app, err := ShowApplication(root, "frontend")
	assert.NoError(t, err)
	assert.Equal(t, "fe", app.Alias)

	assert.NoError(t, UpdateApplication(root, "frontend", Application{Name: "frontend", Alias: "fe2", Build: "web-1.0"}))
	app, err = ShowApplication(root, "frontend")
	assert.NoError(t, err)
	assert.Equal(t, "fe2", app.Alias)

	assert.NoError(t, DeleteApplication(root, "frontend"))
	names, err = ListApplications(root)
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestApplicationDuplicateNameAndAlias(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe"}))
	assert.Error(t, CreateApplication(root, Application{Name: "frontend", Alias: "other"}))
	assert.Error(t, CreateApplication(root, Application{Name: "other", Alias: "fe"}))
}

func TestApplicationRequiresExistingBuild(t *testing.T) {
	root := t.TempDir()
	err := CreateApplication(root, Application{Name: "frontend", Alias: "fe", Build: "missing"})
	assert.Error(t, err)
}

func TestApplicationsForBuild(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateBuild(root, Build{Name: "web-1.0"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe", Build: "web-1.0"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "backend", Alias: "be", Build: "web-1.0"}))

	apps, err := ApplicationsForBuild(root, "web-1.0")
	assert.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestDeleteApplicationCascadesFileMap(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe"}))
	assert.NoError(t, CreateFile(root, File{Name: "nginx.conf", Path: "/etc/nginx/nginx.conf", Type: FileTypeFile, Owner: "root", Group: "root", Octal: "644"}))
	assert.NoError(t, AddFileMap(root, "nginx.conf", "frontend"))

	assert.NoError(t, DeleteApplication(root, "frontend"))
	apps, err := ApplicationsForFile(root, "nginx.conf")
	assert.NoError(t, err)
	assert.Empty(t, apps)
}

func TestUpdateApplicationRenameCascadesFileMapAndPlacements(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe"}))
	assert.NoError(t, CreateFile(root, File{Name: "nginx.conf", Path: "/x", Type: FileTypeFile, Owner: "root", Group: "root", Octal: "644"}))
	assert.NoError(t, AddFileMap(root, "nginx.conf", "frontend"))
	assert.NoError(t, PlaceApp(root, "nyc", "prod", "frontend"))

	assert.NoError(t, UpdateApplication(root, "frontend", Application{Name: "web", Alias: "fe"}))

	apps, err := ApplicationsForFile(root, "nginx.conf")
	assert.NoError(t, err)
	assert.Equal(t, []string{"web"}, apps)

	placed, err := IsPlaced(root, "nyc", "prod", "web")
	assert.NoError(t, err)
	assert.True(t, placed)
}
