package model

import "path/filepath"

const networkFileName = "network"

// Network record fields: location,zone,alias,net,mask,bits,gateway,vlan,desc.
const (
	netLocation = iota
	netZone
	netAlias
	netNet
	netMask
	netBits
	netGateway
	netVlan
	netDesc
	networkFieldCount
)

// Network is one row of a location's network cache, keyed by
// (location, zone, alias).
type Network struct {
	Location string
	Zone     string // "core" or "edge"
	Alias    string
	Net      string
	Mask     string
	Bits     string
	Gateway  string
	Vlan     string
	Desc     string
}

func (n Network) record() []string {
	return []string{n.Location, n.Zone, n.Alias, n.Net, n.Mask, n.Bits, n.Gateway, n.Vlan, n.Desc}
}

func networkFromRecord(r []string) Network {
	return Network{
		Location: field(r, netLocation), Zone: field(r, netZone), Alias: field(r, netAlias),
		Net: field(r, netNet), Mask: field(r, netMask), Bits: field(r, netBits),
		Gateway: field(r, netGateway), Vlan: field(r, netVlan), Desc: field(r, netDesc),
	}
}

func networkCatalog(root, location string) *catalog {
	return newCatalog(root, filepath.Join(NormalizeLocationCode(location), networkFileName))
}

func validZone(zone string) bool { return zone == "core" || zone == "edge" }

func findNetwork(records [][]string, zone, alias string) int {
	for i, r := range records {
		if field(r, netZone) == zone && field(r, netAlias) == alias {
			return i
		}
	}
	return -1
}

// CreateNetwork validates the location exists and the (zone,alias) tuple is
// unique at that location, then appends a cache row.
func CreateNetwork(root string, n Network) error {
	n.Location = NormalizeLocationCode(n.Location)
	if _, err := ShowLocation(root, n.Location); err != nil {
		return err
	}
	if !validZone(n.Zone) {
		return errInvalid("network zone must be core or edge, got %q", n.Zone)
	}
	c := networkCatalog(root, n.Location)
	records, err := c.load()
	if err != nil {
		return err
	}
	if findNetwork(records, n.Zone, n.Alias) >= 0 {
		return errDuplicate("network", n.Location+"/"+n.Zone+"/"+n.Alias)
	}
	records = append(records, n.record())
	return c.save(records)
}

// ListNetworks returns every network cache row for a location.
func ListNetworks(root, location string) ([]Network, error) {
	c := networkCatalog(root, location)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]Network, 0, len(records))
	for _, r := range records {
		out = append(out, networkFromRecord(r))
	}
	return out, nil
}

func ShowNetwork(root, location, zone, alias string) (Network, error) {
	c := networkCatalog(root, location)
	records, err := c.load()
	if err != nil {
		return Network{}, err
	}
	idx := findNetwork(records, zone, alias)
	if idx < 0 {
		return Network{}, errUnknown("network", location+"/"+zone+"/"+alias)
	}
	return networkFromRecord(records[idx]), nil
}

func UpdateNetwork(root, location, zone, alias string, n Network) error {
	if !validZone(n.Zone) {
		return errInvalid("network zone must be core or edge, got %q", n.Zone)
	}
	c := networkCatalog(root, location)
	records, err := c.load()
	if err != nil {
		return err
	}
	idx := findNetwork(records, zone, alias)
	if idx < 0 {
		return errUnknown("network", location+"/"+zone+"/"+alias)
	}
	if (n.Zone != zone || n.Alias != alias) && findNetwork(records, n.Zone, n.Alias) >= 0 {
		return errDuplicate("network", location+"/"+n.Zone+"/"+n.Alias)
	}
	n.Location = NormalizeLocationCode(location)
	records[idx] = n.record()
	return c.save(records)
}

func DeleteNetwork(root, location, zone, alias string) error {
	c := networkCatalog(root, location)
	records, err := c.load()
	if err != nil {
		return err
	}
	idx := findNetwork(records, zone, alias)
	if idx < 0 {
		return errUnknown("network", location+"/"+zone+"/"+alias)
	}
	records = append(records[:idx], records[idx+1:]...)
	return c.save(records)
}

// renameNetworkLocation rewrites the location field of every cached network
// row after a Location rename (catalog file itself already moved with the
// rest of the <code>/ subtree by renameLocationSubtree).
func renameNetworkLocation(root, oldCode, newCode string) error {
	c := networkCatalog(root, newCode)
	records, err := c.load()
	if err != nil {
		return err
	}
	for i := range records {
		if field(records[i], netLocation) == oldCode {
			records[i][netLocation] = newCode
		}
	}
	return c.save(records)
}

func deleteNetworksForLocation(root, code string) error {
	// the <code>/network file is removed with the rest of the subtree by
	// DeleteLocation's os.RemoveAll; nothing further to do here.
	return nil
}
