package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceCreateDefaultsToUnassigned(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateResource(root, Resource{Type: ResourceTypeIP, Value: "10.0.0.5", Name: "web-ip"}))
	r, err := ShowResource(root, "10.0.0.5")
	assert.NoError(t, err)
	assert.Equal(t, AssignNone, r.AssignType)
	assert.Equal(t, notAssigned, r.AssignTo)
}

func TestResourceDuplicateValue(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateResource(root, Resource{Type: ResourceTypeIP, Value: "10.0.0.5"}))
	assert.Error(t, CreateResource(root, Resource{Type: ResourceTypeIP, Value: "10.0.0.5"}))
}

func TestAssignResourceToHostRequiresIPType(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateBuild(root, Build{Name: "web-1.0"}))
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.NoError(t, CreateSystem(root, System{Name: "host01", Build: "web-1.0", Location: "nyc", Environment: "prod"}))

	assert.NoError(t, CreateResource(root, Resource{Type: ResourceTypeIP, Value: "10.0.0.5"}))
	assert.NoError(t, AssignResourceToHost(root, "10.0.0.5", "host01"))

	r, err := ShowResource(root, "10.0.0.5")
	assert.NoError(t, err)
	assert.Equal(t, AssignHost, r.AssignType)
	assert.Equal(t, "host01", r.AssignTo)

	assert.NoError(t, CreateResource(root, Resource{Type: ResourceTypeClusterIP, Value: "10.0.0.6"}))
	assert.Error(t, AssignResourceToHost(root, "10.0.0.6", "host01"))
}

func TestAssignResourceToApplicationRequiresPlacement(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe"}))
	assert.NoError(t, CreateResource(root, Resource{Type: ResourceTypeClusterIP, Value: "10.0.0.99", Name: "fe-vip"}))

	err := AssignResourceToApplication(root, "10.0.0.99", "nyc", "prod", "frontend")
	assert.Error(t, err)

	assert.NoError(t, PlaceApp(root, "nyc", "prod", "frontend"))
	assert.NoError(t, AssignResourceToApplication(root, "10.0.0.99", "nyc", "prod", "frontend"))

	rs, err := ResourcesAssignedToPlacement(root, "nyc", "prod", "frontend")
	assert.NoError(t, err)
	assert.Len(t, rs, 1)
	assert.Equal(t, "fe-vip", rs[0].Name)
}

func TestUnassignResource(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateBuild(root, Build{Name: "web-1.0"}))
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.NoError(t, CreateSystem(root, System{Name: "host01", Build: "web-1.0", Location: "nyc", Environment: "prod"}))
	assert.NoError(t, CreateResource(root, Resource{Type: ResourceTypeIP, Value: "10.0.0.5"}))
	assert.NoError(t, AssignResourceToHost(root, "10.0.0.5", "host01"))

	assert.NoError(t, UnassignResource(root, "10.0.0.5"))
	r, err := ShowResource(root, "10.0.0.5")
	assert.NoError(t, err)
	assert.Equal(t, AssignNone, r.AssignType)
	assert.Equal(t, notAssigned, r.AssignTo)
}
