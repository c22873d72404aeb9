package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mtconnect-go/agentcore/model"
)

// deviceDoc is the JSON shape this command accepts for the device model.
// The device-XML loader itself is out of scope for this core: operators
// describe their device/component/data-item structure in this flatter
// JSON form instead, and it's built into the same immutable model.Tree
// the buffer and serializers consume either way.
type deviceDoc struct {
	Devices []componentDoc `json:"devices"`
}

type componentDoc struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	UUID        string             `json:"uuid"`
	Description map[string]string  `json:"description"`
	DataItems   []dataItemDoc      `json:"dataItems"`
	Components  []componentDoc     `json:"components"`
}

type dataItemDoc struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Type           string  `json:"type"`
	SubType        string  `json:"subType"`
	Representation string  `json:"representation"`
	Units          string  `json:"units"`
	NativeUnits    string  `json:"nativeUnits"`
	SampleRate     float64 `json:"sampleRate"`
}

// loadDeviceTree reads path and builds a model.Tree. An empty path
// yields a single-device placeholder tree, sufficient to bring the agent
// up with no configured devices while still exercising every route.
func loadDeviceTree(path string) (*model.Tree, error) {
	if path == "" {
		return placeholderTree(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device model %s: %w", path, err)
	}
	var doc deviceDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing device model %s: %w", path, err)
	}
	if len(doc.Devices) == 0 {
		return placeholderTree(), nil
	}

	tree := model.NewTree(nil)
	var devices []*model.Device
	for _, dd := range doc.Devices {
		dev := &model.Device{}
		dev.Component = buildComponent(dd, "")
		devices = append(devices, dev)
		tree.AddComponent(&dev.Component)
		indexChildren(tree, dd, dev)
	}
	tree.Devices = devices
	return tree, nil
}

// buildComponent converts one componentDoc's own fields, leaving
// children/data items to be linked in by indexChildren once their own
// ids are known.
func buildComponent(doc componentDoc, parentID string) model.Component {
	c := model.Component{
		ID:          doc.ID,
		Name:        doc.Name,
		Type:        doc.Type,
		UUID:        doc.UUID,
		Description: doc.Description,
		ParentID:    parentID,
	}
	for _, di := range doc.DataItems {
		c.DataItemIDs = append(c.DataItemIDs, di.ID)
	}
	for _, child := range doc.Components {
		c.ComponentIDs = append(c.ComponentIDs, child.ID)
	}
	return c
}

// indexChildren walks doc's data items and child components, registering
// each into tree's arena under dev.
func indexChildren(tree *model.Tree, doc componentDoc, dev *model.Device) {
	for _, di := range doc.DataItems {
		item := buildDataItem(di)
		item.ComponentID = doc.ID
		tree.AddDataItem(item, dev)
	}
	for _, childDoc := range doc.Components {
		child := buildComponent(childDoc, doc.ID)
		tree.AddComponent(&child)
		indexChildren(tree, childDoc, dev)
	}
}

func buildDataItem(doc dataItemDoc) *model.DataItem {
	return &model.DataItem{
		ID:             doc.ID,
		Name:           doc.Name,
		Category:       model.Category(doc.Category),
		Type:           doc.Type,
		SubType:        doc.SubType,
		Representation: model.Representation(doc.Representation),
		Units:          doc.Units,
		NativeUnits:    doc.NativeUnits,
		SampleRate:     doc.SampleRate,
	}
}

// placeholderTree builds a single empty device so the agent has a valid,
// queryable (if contentless) tree to boot with when no device model is
// configured.
func placeholderTree() *model.Tree {
	dev := &model.Device{Component: model.Component{ID: "dev1", Name: "UnconfiguredDevice", UUID: "dev1"}}
	tree := model.NewTree([]*model.Device{dev})
	tree.AddComponent(&dev.Component)
	return tree
}
