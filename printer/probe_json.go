package printer

import (
	"encoding/json"
	"sort"

	"github.com/mtconnect-go/agentcore/model"
)

// PrintProbeJSON renders a device tree as the JSON equivalent of
// PrintProbeXML. Both JSON dialects share the same probe shape — only
// the Streams document's category grouping differs between v1 and v2.
func PrintProbeJSON(tree *model.Tree, h Header) ([]byte, error) {
	var devices []jsonObj
	for _, dev := range tree.Devices {
		devices = append(devices, deviceObj(tree, dev))
	}
	root := jsonObj{"MTConnectDevices": jsonObj{
		"Header":  probeHeaderObj(h),
		"Devices": devices,
	}}
	return json.Marshal(root)
}

func probeHeaderObj(h Header) jsonObj {
	obj := jsonObj{
		"creationTime":    h.CreationTime.UTC().Format("2006-01-02T15:04:05Z"),
		"sender":          h.Sender,
		"instanceId":      h.InstanceID,
		"version":         h.Version,
		"schemaVersion":   h.SchemaVersion,
		"testIndicator":   false,
		"assetBufferSize": h.AssetBufferSize,
		"assetCount":      h.AssetCount,
	}
	if schemaAtLeast(h.SchemaVersion, 1, 7) {
		obj["deviceModelChangeTime"] = h.DeviceModelChangeTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	if schemaAtLeast(h.SchemaVersion, 2, 0) && len(h.AssetCountsByType) > 0 {
		obj["AssetCounts"] = assetCountsObj(h.AssetCountsByType)
	}
	return obj
}

func assetCountsObj(counts map[string]int) []jsonObj {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	out := make([]jsonObj, 0, len(types))
	for _, t := range types {
		out = append(out, jsonObj{"assetType": t, "count": counts[t]})
	}
	return out
}

func deviceObj(tree *model.Tree, dev *model.Device) jsonObj {
	obj := componentObj(tree, &dev.Component)
	obj["uuid"] = dev.UUID
	return jsonObj{"Device": obj}
}

func componentObj(tree *model.Tree, c *model.Component) jsonObj {
	obj := jsonObj{"id": c.ID, "name": c.Name}

	if dataItems := tree.OwnDataItems(c); len(dataItems) > 0 {
		var items []jsonObj
		for _, di := range dataItems {
			items = append(items, dataItemObj(di))
		}
		obj["DataItems"] = items
	}

	if children := tree.Children(c); len(children) > 0 {
		var comps []jsonObj
		for _, child := range children {
			comps = append(comps, jsonObj{elementName(child.Type): componentObj(tree, child)})
		}
		obj["Components"] = comps
	}

	return obj
}

func dataItemObj(di *model.DataItem) jsonObj {
	obj := jsonObj{
		"id":       di.ID,
		"category": string(di.Category),
		"type":     di.Type,
	}
	if di.Name != "" {
		obj["name"] = di.Name
	}
	if di.Units != "" {
		obj["units"] = di.Units
	}
	return obj
}
