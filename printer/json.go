package printer

import (
	"encoding/json"
	"strconv"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
)

type jsonObj = map[string]any

// PrintStreamsJSONv1 renders the v1 JSON dialect: every category is an
// array of single-key objects, one per observation, mirroring the XML
// element-per-observation shape.
func PrintStreamsJSONv1(tree *model.Tree, h Header, cp *buffer.Checkpoint) ([]byte, error) {
	var deviceStreams []jsonObj
	for _, dg := range groupByDeviceComponent(tree, cp) {
		var componentStreams []jsonObj
		for _, cg := range dg.Components {
			entry := jsonObj{
				"component":   cg.Component.Type,
				"name":        cg.Component.Name,
				"componentId": cg.Component.ID,
			}
			if len(cg.Samples) > 0 {
				entry["Samples"] = v1Category(cg.Samples)
			}
			if len(cg.Events) > 0 {
				entry["Events"] = v1Category(cg.Events)
			}
			if len(cg.Condition) > 0 {
				entry["Condition"] = v1Condition(cg.Condition)
			}
			componentStreams = append(componentStreams, jsonObj{"ComponentStream": entry})
		}
		deviceStreams = append(deviceStreams, jsonObj{"DeviceStream": jsonObj{
			"name": dg.Device.Name, "uuid": dg.Device.UUID, "ComponentStreams": componentStreams,
		}})
	}

	root := jsonObj{"MTConnectStreams": jsonObj{
		"Header":  headerObj(h),
		"Streams": deviceStreams,
	}}
	return json.Marshal(root)
}

// PrintStreamsJSONv2 renders the v2 JSON dialect: each category groups
// observations by element name into one array per data item type.
func PrintStreamsJSONv2(tree *model.Tree, h Header, cp *buffer.Checkpoint) ([]byte, error) {
	var deviceStreams []jsonObj
	for _, dg := range groupByDeviceComponent(tree, cp) {
		var componentStreams []jsonObj
		for _, cg := range dg.Components {
			entry := jsonObj{
				"component":   cg.Component.Type,
				"name":        cg.Component.Name,
				"componentId": cg.Component.ID,
			}
			if len(cg.Samples) > 0 {
				entry["Samples"] = v2Category(cg.Samples)
			}
			if len(cg.Events) > 0 {
				entry["Events"] = v2Category(cg.Events)
			}
			if len(cg.Condition) > 0 {
				entry["Condition"] = v2Condition(cg.Condition)
			}
			componentStreams = append(componentStreams, jsonObj{"ComponentStream": entry})
		}
		deviceStreams = append(deviceStreams, jsonObj{"DeviceStream": jsonObj{
			"name": dg.Device.Name, "uuid": dg.Device.UUID, "ComponentStreams": componentStreams,
		}})
	}

	root := jsonObj{"MTConnectStreams": jsonObj{
		"Header":  headerObj(h),
		"Streams": deviceStreams,
	}}
	return json.Marshal(root)
}

func headerObj(h Header) jsonObj {
	obj := jsonObj{
		"creationTime":    h.CreationTime.UTC().Format("2006-01-02T15:04:05Z"),
		"sender":          h.Sender,
		"instanceId":      h.InstanceID,
		"version":         h.Version,
		"schemaVersion":   h.SchemaVersion,
		"testIndicator":   false,
		"bufferSize":      h.BufferSize,
		"assetBufferSize": h.AssetBufferSize,
		"assetCount":      h.AssetCount,
	}
	if schemaAtLeast(h.SchemaVersion, 1, 7) {
		obj["deviceModelChangeTime"] = h.DeviceModelChangeTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	if h.LastSequence != 0 || h.FirstSequence != 0 || h.NextSequence != 0 {
		obj["firstSequence"] = h.FirstSequence
		obj["lastSequence"] = h.LastSequence
		obj["nextSequence"] = h.NextSequence
	}
	return obj
}

func v1Category(obs []*observation.Observation) []jsonObj {
	out := make([]jsonObj, 0, len(obs))
	for _, o := range obs {
		out = append(out, jsonObj{elementName(o.DataItem.Type): observationObj(o)})
	}
	return out
}

func v2Category(obs []*observation.Observation) jsonObj {
	grouped := jsonObj{}
	for _, o := range obs {
		el := elementName(o.DataItem.Type)
		existing, _ := grouped[el].([]jsonObj)
		grouped[el] = append(existing, observationObj(o))
	}
	return grouped
}

func observationObj(o *observation.Observation) jsonObj {
	obj := jsonObj{
		"dataItemId": o.DataItem.ID,
		"timestamp":  o.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		"sequence":   strconv.FormatUint(o.Seq, 10),
	}
	if o.DataItem.Name != "" {
		obj["name"] = o.DataItem.Name
	}
	obj["value"] = observationText(o)
	return obj
}

func v1Condition(entries []conditionEntry) []jsonObj {
	out := make([]jsonObj, 0, len(entries))
	for _, ce := range entries {
		for _, v := range conditionValues(ce) {
			out = append(out, jsonObj{conditionElementName(v.Level): conditionObj(ce.DataItem, v)})
		}
	}
	return out
}

func v2Condition(entries []conditionEntry) jsonObj {
	grouped := jsonObj{}
	for _, ce := range entries {
		for _, v := range conditionValues(ce) {
			el := conditionElementName(v.Level)
			existing, _ := grouped[el].([]jsonObj)
			grouped[el] = append(existing, conditionObj(ce.DataItem, v))
		}
	}
	return grouped
}

func conditionValues(ce conditionEntry) []observation.ConditionValue {
	if ce.State == nil || ce.State.IsNormal() {
		return []observation.ConditionValue{{Level: observation.LevelNormal}}
	}
	if ce.State.Unavailable {
		return []observation.ConditionValue{{Level: observation.LevelUnavailable}}
	}
	return ce.State.Active
}

func conditionElementName(l observation.Level) string {
	s := string(l)
	return string(toUpper(rune(s[0]))) + toLowerRest(s[1:])
}

func conditionObj(di *model.DataItem, v observation.ConditionValue) jsonObj {
	obj := jsonObj{"dataItemId": di.ID}
	if di.Name != "" {
		obj["name"] = di.Name
	}
	if v.NativeCode != "" {
		obj["nativeCode"] = v.NativeCode
	}
	if v.NativeSeverity != "" {
		obj["nativeSeverity"] = v.NativeSeverity
	}
	if v.Qualifier != "" {
		obj["qualifier"] = v.Qualifier
	}
	if v.Message != "" {
		obj["value"] = v.Message
	}
	return obj
}
