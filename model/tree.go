package model

import (
	"strings"
	"time"
)

// Tree is an immutable, queryable snapshot of one or more devices and
// their component/data-item structure. A Tree is built once by the
// device-XML loader and handed to the buffer/serializers; it is never
// mutated in place. On reload, a new Tree is built and old Trees are
// retained (shared ownership, last-holder-drops) while any in-flight
// request still references them.
type Tree struct {
	Devices    []*Device
	components map[string]*Component // id -> component (includes device roots)
	dataItems  map[string]*DataItem  // id -> data item
	byName     map[string]*DataItem  // name -> data item (for loopback ingress)
	deviceOf   map[string]*Device    // data-item id -> owning device

	// ChangeTime is when this tree was built, i.e. the moment the device
	// model it describes last changed. Surfaced as deviceModelChangeTime
	// in response headers.
	ChangeTime time.Time
}

// NewTree builds an arena-indexed Tree from a set of devices. Only each
// device's root Component is indexed here; nested components and data
// items are added afterwards with AddComponent and AddDataItem.
func NewTree(devices []*Device) *Tree {
	t := &Tree{
		Devices:    devices,
		components: make(map[string]*Component),
		dataItems:  make(map[string]*DataItem),
		byName:     make(map[string]*DataItem),
		deviceOf:   make(map[string]*Device),
		ChangeTime: time.Now(),
	}
	for _, dev := range devices {
		t.indexComponent(&dev.Component, dev)
	}
	return t
}

func (t *Tree) indexComponent(c *Component, dev *Device) {
	t.components[c.ID] = c
	// Only the component itself is indexed; there is no recursion into
	// children. The loader adds children and data items to the arena via
	// AddComponent/AddDataItem below after NewTree returns, as it walks
	// the device description.
}

// AddComponent registers a component (and its parent linkage) into the
// tree's arena. Called by the loader while constructing a device's
// subtree.
func (t *Tree) AddComponent(c *Component) {
	t.components[c.ID] = c
}

// AddDataItem registers a data item under its owning device.
func (t *Tree) AddDataItem(d *DataItem, dev *Device) {
	t.dataItems[d.ID] = d
	if d.Name != "" {
		t.byName[d.Name] = d
	}
	t.deviceOf[d.ID] = dev
}

// Component looks up a component (or device root) by id.
func (t *Tree) Component(id string) (*Component, bool) {
	c, ok := t.components[id]
	return c, ok
}

// DataItem looks up a data item by id.
func (t *Tree) DataItem(id string) (*DataItem, bool) {
	d, ok := t.dataItems[id]
	return d, ok
}

// DataItemByName looks up a data item by its declared name, used by the
// loopback source to map PUT query keys to data items.
func (t *Tree) DataItemByName(name string) (*DataItem, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// DeviceOf returns the device that owns the given data item id.
func (t *Tree) DeviceOf(dataItemID string) (*Device, bool) {
	d, ok := t.deviceOf[dataItemID]
	return d, ok
}

// Device looks up a device by name or uuid.
func (t *Tree) Device(nameOrUUID string) (*Device, bool) {
	for _, d := range t.Devices {
		if strings.EqualFold(d.Name, nameOrUUID) || strings.EqualFold(d.UUID, nameOrUUID) {
			return d, true
		}
	}
	return nil, false
}

// AllDataItemIDs returns the ids of every data item known to the tree,
// optionally restricted to one device (deviceName == "" means all
// devices). Used to build the default (unfiltered) observer filter set.
func (t *Tree) AllDataItemIDs(deviceName string) map[string]struct{} {
	out := make(map[string]struct{}, len(t.dataItems))
	for id, dev := range t.deviceOf {
		if deviceName != "" && !strings.EqualFold(dev.Name, deviceName) {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

// Children returns the direct child components of c.
func (t *Tree) Children(c *Component) []*Component {
	out := make([]*Component, 0, len(c.ComponentIDs))
	for _, id := range c.ComponentIDs {
		if child, ok := t.components[id]; ok {
			out = append(out, child)
		}
	}
	return out
}

// OwnDataItems returns the data items declared directly on c, in
// declaration order.
func (t *Tree) OwnDataItems(c *Component) []*DataItem {
	out := make([]*DataItem, 0, len(c.DataItemIDs))
	for _, id := range c.DataItemIDs {
		if d, ok := t.dataItems[id]; ok {
			out = append(out, d)
		}
	}
	return out
}
