// Package printer renders buffer/checkpoint contents as the MTConnect
// XML envelope or either JSON dialect. Both serializers consume the same
// grouped-by-device/component view built here, so adding a field to one
// never silently diverges from the other.
package printer

import (
	"fmt"
	"sort"
	"time"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
)

// Header carries the document-level metadata every MTConnect response
// envelope (Devices, Streams, Assets, Error) shares.
type Header struct {
	CreationTime          time.Time
	Sender                string
	InstanceID            int64
	Version               string // agent software version
	SchemaVersion         string // e.g. "2.3"
	BufferSize            int
	AssetBufferSize       int
	AssetCount            int
	FirstSequence         uint64
	LastSequence          uint64
	NextSequence          uint64
	DeviceModelChangeTime time.Time // when the current device tree was (re)loaded
	AssetCountsByType     map[string]int // probe headers only, schema >= 2.0
}

// schemaAtLeast reports whether a header's schema version is >= major.minor.
// Versions are compared numerically component-by-component ("1.7" >= "1.7",
// "2.0" >= "1.7"), falling back to false for anything unparsable so an
// unrecognized/empty schema version never enables a newer-schema-only field.
func schemaAtLeast(schemaVersion string, major, minor int) bool {
	var haveMajor, haveMinor int
	n, err := fmt.Sscanf(schemaVersion, "%d.%d", &haveMajor, &haveMinor)
	if err != nil || n < 1 {
		return false
	}
	if haveMajor != major {
		return haveMajor > major
	}
	return haveMinor >= minor
}

// componentGroup is one ComponentStream: all observations for the data
// items directly owned by one component.
type componentGroup struct {
	Component *model.Component
	Samples   []*observation.Observation
	Events    []*observation.Observation
	Condition []conditionEntry
}

type conditionEntry struct {
	DataItem *model.DataItem
	State    *observation.ConditionState
}

type deviceGroup struct {
	Device     *model.Device
	Components []*componentGroup
}

// groupByDeviceComponent arranges a checkpoint (or a flat observation
// list) into the DeviceStream/ComponentStream/category tree the wire
// format requires, using tree to resolve each data item's owning
// component and device.
func groupByDeviceComponent(tree *model.Tree, cp *buffer.Checkpoint) []deviceGroup {
	byDevice := make(map[string]*deviceGroup)
	byComponent := make(map[string]*componentGroup)
	var order []string

	ensure := func(dataItemID string) *componentGroup {
		di, ok := tree.DataItem(dataItemID)
		if !ok {
			return nil
		}
		comp, ok := tree.Component(di.ComponentID)
		if !ok {
			return nil
		}
		dev, ok := tree.DeviceOf(dataItemID)
		if !ok {
			return nil
		}
		dg, ok := byDevice[dev.ID]
		if !ok {
			dg = &deviceGroup{Device: dev}
			byDevice[dev.ID] = dg
			order = append(order, dev.ID)
		}
		cg, ok := byComponent[comp.ID]
		if !ok {
			cg = &componentGroup{Component: comp}
			byComponent[comp.ID] = cg
			dg.Components = append(dg.Components, cg)
		}
		return cg
	}

	cp.Range(func(id string, e *buffer.Entry) {
		di, ok := tree.DataItem(id)
		if !ok {
			return
		}
		cg := ensure(id)
		if cg == nil {
			return
		}
		switch {
		case di.IsCondition():
			cg.Condition = append(cg.Condition, conditionEntry{DataItem: di, State: e.Condition})
		case di.Category == model.CategorySample:
			cg.Samples = append(cg.Samples, e.Observation)
		default:
			cg.Events = append(cg.Events, e.Observation)
		}
	})

	sort.Strings(order)
	out := make([]deviceGroup, 0, len(order))
	for _, id := range order {
		dg := byDevice[id]
		sort.Slice(dg.Components, func(i, j int) bool {
			return dg.Components[i].Component.ID < dg.Components[j].Component.ID
		})
		for _, cg := range dg.Components {
			sortObs(cg.Samples)
			sortObs(cg.Events)
			sort.Slice(cg.Condition, func(i, j int) bool {
				x, y := cg.Condition[i].DataItem, cg.Condition[j].DataItem
				if x.Name != y.Name {
					return x.Name < y.Name
				}
				return x.ID < y.ID
			})
		}
		out = append(out, *dg)
	}
	return out
}

func sortObs(obs []*observation.Observation) {
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].DataItem.Name != obs[j].DataItem.Name {
			return obs[i].DataItem.Name < obs[j].DataItem.Name
		}
		return obs[i].Seq < obs[j].Seq
	})
}
