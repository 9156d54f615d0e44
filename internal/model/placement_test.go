package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceAppCreatesConstantOverrideFile(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe"}))

	assert.NoError(t, PlaceApp(root, "nyc", "prod", "frontend"))
	_, err := os.Stat(filepath.Join(root, PlacementConstantPath("prod", "frontend")))
	assert.NoError(t, err)

	placed, err := IsPlaced(root, "nyc", "prod", "frontend")
	assert.NoError(t, err)
	assert.True(t, placed)
}

func TestPlaceAppIsIdempotent(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.NoError(t, CreateApplication(root, Application{Name: "frontend", Alias: "fe"}))
	assert.NoError(t, PlaceApp(root, "nyc", "prod", "frontend"))
	assert.NoError(t, PlaceApp(root, "nyc", "prod", "frontend"))

	members, err := ListPlacements(root, "nyc", "prod")
	assert.NoError(t, err)
	assert.Equal(t, []string{"frontend"}, members)
}

func TestUnplaceAppRequiresExistingMembership(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateEnvironment(root, Environment{Name: "prod", Alias: "P"}))
	assert.Error(t, UnplaceApp(root, "nyc", "prod", "frontend"))
}

func TestLocationDeleteRemovesSubtreeAndNetworks(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateNetwork(root, Network{Location: "nyc", Zone: "core", Alias: "main", Net: "10.0.0.0", Mask: "255.255.255.0", Bits: "24"}))
	assert.NoError(t, os.MkdirAll(filepath.Join(root, "nyc"), 0o755))

	assert.NoError(t, DeleteLocation(root, "nyc"))
	_, err := os.Stat(filepath.Join(root, "nyc"))
	assert.True(t, os.IsNotExist(err))

	_, err = ShowLocation(root, "nyc")
	assert.Error(t, err)
}

func TestLocationRenameMovesSubtreeAndNetworkRows(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CreateLocation(root, Location{Code: "nyc"}))
	assert.NoError(t, CreateNetwork(root, Network{Location: "nyc", Zone: "core", Alias: "main", Net: "10.0.0.0", Mask: "255.255.255.0", Bits: "24"}))

	assert.NoError(t, UpdateLocation(root, "nyc", Location{Code: "bos"}))

	nets, err := ListNetworks(root, "bos")
	assert.NoError(t, err)
	assert.Len(t, nets, 1)
	assert.Equal(t, "bos", nets[0].Location)
}
