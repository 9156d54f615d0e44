package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvironmentAliasUppercasedAndValidated(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "p"}))
	env, err := ShowEnvironment(root, "prod")
	assert.NoError(t, err)
	assert.Equal(t, "P", env.Alias)

	assert.Error(t, CreateEnvironment(root, Environment{Name: "staging", Alias: "ST"}))
}

func TestEnvironmentRenameCascadesSubtrees(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe"}))
	assert.NoError(t, PlaceApp(root, "nyc", "prod", "frontend"))

	assert.NoError(t, os.MkdirAll(filepath.Join(root, "template", "patch", "prod"), 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(root, "template", "patch", "prod", "nginx.conf"), []byte("patch"), 0o644))

	assert.NoError(t, UpdateEnvironment(root, "prod", Environment{Name: "production", Alias: "P"}))

	_, err := os.Stat(filepath.Join(root, "template", "patch", "production", "nginx.conf"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "nyc", "production"))
	assert.NoError(t, err)

	placed, err := ListPlacements(root, "nyc", "production")
	assert.NoError(t, err)
	assert.Equal(t, []string{"frontend"}, placed)
}
