package model

import (
	"fmt"
	"strings"
)

const resourceFile = "resource"

const (
	resType = iota
	resValue
	resAssignType
	resAssignTo
	resName
	resDesc
)

const (
	ResourceTypeIP        = "ip"
	ResourceTypeClusterIP = "cluster_ip"
	ResourceTypeHAIP      = "ha_ip"

	AssignNone        = ""
	AssignHost        = "host"
	AssignApplication = "application"

	notAssigned = "not assigned"
)

// Resource is an externally-allocated value (typically an IP) either free
// or bound to a Host or to a Placement (spec §4.2 state machine).
type Resource struct {
	Type       string
	Value      string
	AssignType string
	AssignTo   string
	Name       string
	Desc       string
}

func (r Resource) record() []string {
	assignTo := r.AssignTo
	if r.AssignType == AssignNone {
		assignTo = notAssigned
	}
	return []string{r.Type, r.Value, r.AssignType, assignTo, r.Name, r.Desc}
}

func resourceFromRecord(r []string) Resource {
	return Resource{
		Type: field(r, resType), Value: field(r, resValue), AssignType: field(r, resAssignType),
		AssignTo: field(r, resAssignTo), Name: field(r, resName), Desc: field(r, resDesc),
	}
}

func validResourceType(t string) bool {
	return t == ResourceTypeIP || t == ResourceTypeClusterIP || t == ResourceTypeHAIP
}

func CreateResource(root string, r Resource) error {
	if !validResourceType(r.Type) {
		return errInvalid("resource type must be ip, cluster_ip, or ha_ip, got %q", r.Type)
	}
	r.AssignType = AssignNone
	r.AssignTo = notAssigned
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	if _, idx := findByKey(records, resValue, r.Value); idx >= 0 {
		return errDuplicate("resource", r.Value)
	}
	records = append(records, r.record())
	return c.save(records)
}

func ListResources(root string) ([]string, error) {
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	return keys(records, resValue), nil
}

func ShowResource(root, value string) (Resource, error) {
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return Resource{}, err
	}
	r, idx := findByKey(records, resValue, value)
	if idx < 0 {
		return Resource{}, errUnknown("resource", value)
	}
	return resourceFromRecord(r), nil
}

func UpdateResource(root, value string, r Resource) error {
	if !validResourceType(r.Type) {
		return errInvalid("resource type must be ip, cluster_ip, or ha_ip, got %q", r.Type)
	}
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	existing, idx := findByKey(records, resValue, value)
	if idx < 0 {
		return errUnknown("resource", value)
	}
	if r.Value != value {
		if _, dupIdx := findByKey(records, resValue, r.Value); dupIdx >= 0 {
			return errDuplicate("resource", r.Value)
		}
	}
	r.AssignType = field(existing, resAssignType)
	r.AssignTo = field(existing, resAssignTo)
	records[idx] = r.record()
	return c.save(records)
}

func DeleteResource(root, value string) error {
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	_, idx := findByKey(records, resValue, value)
	if idx < 0 {
		return errUnknown("resource", value)
	}
	records = append(records[:idx], records[idx+1:]...)
	return c.save(records)
}

// AssignResourceToHost transitions a resource from unassigned to
// host:<system>. Only type=ip is assignable to a host (spec §4.2).
func AssignResourceToHost(root, value, system string) error {
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	r, idx := findByKey(records, resValue, value)
	if idx < 0 {
		return errUnknown("resource", value)
	}
	res := resourceFromRecord(r)
	if res.Type != ResourceTypeIP {
		return errInvalid("only type=ip resources may be assigned to a host, got %q", res.Type)
	}
	if res.AssignType != AssignNone {
		return errInvalid("resource %q is already assigned", value)
	}
	if _, err := ShowSystem(root, system); err != nil {
		return err
	}
	res.AssignType = AssignHost
	res.AssignTo = system
	records[idx] = res.record()
	return c.save(records)
}

// AssignResourceToApplication transitions a resource from unassigned to
// application:<loc>:<env>:<app>. Only type∈{cluster_ip,ha_ip} is assignable
// to an application placement, and the placement must already exist.
func AssignResourceToApplication(root, value, loc, env, app string) error {
	loc = NormalizeLocationCode(loc)
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	r, idx := findByKey(records, resValue, value)
	if idx < 0 {
		return errUnknown("resource", value)
	}
	res := resourceFromRecord(r)
	if res.Type != ResourceTypeClusterIP && res.Type != ResourceTypeHAIP {
		return errInvalid("only type=cluster_ip or ha_ip resources may be assigned to an application, got %q", res.Type)
	}
	if res.AssignType != AssignNone {
		return errInvalid("resource %q is already assigned", value)
	}
	placed, err := IsPlaced(root, loc, env, app)
	if err != nil {
		return err
	}
	if !placed {
		return errUnknown("placement", fmt.Sprintf("%s/%s/%s", loc, env, app))
	}
	res.AssignType = AssignApplication
	res.AssignTo = strings.Join([]string{loc, env, app}, ":")
	records[idx] = res.record()
	return c.save(records)
}

// UnassignResource reverts a resource to unassigned, regardless of its
// current assignment form.
func UnassignResource(root, value string) error {
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return err
	}
	r, idx := findByKey(records, resValue, value)
	if idx < 0 {
		return errUnknown("resource", value)
	}
	res := resourceFromRecord(r)
	res.AssignType = AssignNone
	res.AssignTo = notAssigned
	records[idx] = res.record()
	return c.save(records)
}

// ResourcesAssignedToHost returns every resource with assignType=host,
// assignTo=system (spec §4.4 step 2).
func ResourcesAssignedToHost(root, system string) ([]Resource, error) {
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, r := range records {
		res := resourceFromRecord(r)
		if res.AssignType == AssignHost && res.AssignTo == system {
			out = append(out, res)
		}
	}
	return out, nil
}

// ResourcesAssignedToPlacement returns every resource with
// assignType=application, assignTo=loc:env:app (spec §4.4 step 3).
func ResourcesAssignedToPlacement(root, loc, env, app string) ([]Resource, error) {
	loc = NormalizeLocationCode(loc)
	target := strings.Join([]string{loc, env, app}, ":")
	c := newCatalog(root, resourceFile)
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, r := range records {
		res := resourceFromRecord(r)
		if res.AssignType == AssignApplication && res.AssignTo == target {
			out = append(out, res)
		}
	}
	return out, nil
}

// UnassignResourcesForPlacement releases every resource bound to
// loc:env:app, used when a REDESIGN FLAG / Open Question elects to cascade
// unplacement (see DESIGN.md).
func UnassignResourcesForPlacement(root, loc, env, app string) error {
	resources, err := ResourcesAssignedToPlacement(root, loc, env, app)
	if err != nil {
		return err
	}
	for _, r := range resources {
		if err := UnassignResource(root, r.Value); err != nil {
			return err
		}
	}
	return nil
}
