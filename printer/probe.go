package printer

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
)

// PrintProbeXML renders a device tree as an MTConnectDevices document.
// Components and their data items are emitted in declaration order;
// PassthroughElements recorded by the loader are re-emitted verbatim so
// unknown namespaced extensions survive a round trip.
func PrintProbeXML(tree *model.Tree, h Header, opts XMLOptions) ([]byte, error) {
	var buf bytes.Buffer
	writeProlog(&buf, opts)

	enc := xml.NewEncoder(&buf)
	root := rootStart("MTConnectDevices", h.SchemaVersion)
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	if err := writeProbeHeader(enc, h); err != nil {
		return nil, err
	}

	devicesStart := xml.StartElement{Name: xml.Name{Local: "Devices"}}
	if err := enc.EncodeToken(devicesStart); err != nil {
		return nil, err
	}
	for _, dev := range tree.Devices {
		if err := writeDeviceProbe(enc, tree, dev); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(devicesStart.End()); err != nil {
		return nil, err
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeProbeHeader(enc *xml.Encoder, h Header) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "Header"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "creationTime"}, Value: h.CreationTime.UTC().Format("2006-01-02T15:04:05Z")},
			{Name: xml.Name{Local: "sender"}, Value: h.Sender},
			{Name: xml.Name{Local: "instanceId"}, Value: strconv.FormatInt(h.InstanceID, 10)},
			{Name: xml.Name{Local: "version"}, Value: h.Version},
			{Name: xml.Name{Local: "schemaVersion"}, Value: h.SchemaVersion},
			{Name: xml.Name{Local: "testIndicator"}, Value: "false"},
			{Name: xml.Name{Local: "assetBufferSize"}, Value: strconv.Itoa(h.AssetBufferSize)},
			{Name: xml.Name{Local: "assetCount"}, Value: strconv.Itoa(h.AssetCount)},
		},
	}
	if schemaAtLeast(h.SchemaVersion, 1, 7) {
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "deviceModelChangeTime"}, Value: h.DeviceModelChangeTime.UTC().Format("2006-01-02T15:04:05Z")},
		)
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if schemaAtLeast(h.SchemaVersion, 2, 0) && len(h.AssetCountsByType) > 0 {
		if err := writeAssetCounts(enc, h.AssetCountsByType); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func writeAssetCounts(enc *xml.Encoder, counts map[string]int) error {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	countsStart := xml.StartElement{Name: xml.Name{Local: "AssetCounts"}}
	if err := enc.EncodeToken(countsStart); err != nil {
		return err
	}
	for _, t := range types {
		entry := xml.StartElement{
			Name: xml.Name{Local: "AssetCount"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "assetType"}, Value: t}},
		}
		if err := enc.EncodeToken(entry); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(strconv.Itoa(counts[t]))); err != nil {
			return err
		}
		if err := enc.EncodeToken(entry.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(countsStart.End())
}

func writeDeviceProbe(enc *xml.Encoder, tree *model.Tree, dev *model.Device) error {
	start := componentStart("Device", &dev.Component)
	if dev.UUID != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "uuid"}, Value: dev.UUID})
	}
	if dev.MTConnectVersion != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "mtconnectVersion"}, Value: dev.MTConnectVersion})
	}
	return writeComponentBody(enc, tree, start, &dev.Component)
}

func componentStart(elementLocal string, c *model.Component) xml.StartElement {
	return xml.StartElement{
		Name: xml.Name{Local: elementLocal},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: c.ID},
			{Name: xml.Name{Local: "name"}, Value: c.Name},
		},
	}
}

func writeComponentBody(enc *xml.Encoder, tree *model.Tree, start xml.StartElement, c *model.Component) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	if len(c.Description) > 0 {
		if err := writeDescription(enc, c.Description); err != nil {
			return err
		}
	}

	if dataItems := tree.OwnDataItems(c); len(dataItems) > 0 {
		diStart := xml.StartElement{Name: xml.Name{Local: "DataItems"}}
		if err := enc.EncodeToken(diStart); err != nil {
			return err
		}
		for _, di := range dataItems {
			if err := writeDataItemProbe(enc, di); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(diStart.End()); err != nil {
			return err
		}
	}

	if children := tree.Children(c); len(children) > 0 {
		compsStart := xml.StartElement{Name: xml.Name{Local: "Components"}}
		if err := enc.EncodeToken(compsStart); err != nil {
			return err
		}
		for _, child := range children {
			childStart := componentStart(elementName(child.Type), child)
			if err := writeComponentBody(enc, tree, childStart, child); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(compsStart.End()); err != nil {
			return err
		}
	}

	for _, pe := range c.PassthroughElements {
		if err := writePassthrough(enc, pe); err != nil {
			return err
		}
	}

	return enc.EncodeToken(start.End())
}

func writeDescription(enc *xml.Encoder, desc map[string]string) error {
	start := xml.StartElement{Name: xml.Name{Local: "Description"}}
	for k, v := range desc {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: k}, Value: v})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func writeDataItemProbe(enc *xml.Encoder, di *model.DataItem) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "DataItem"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: di.ID},
			{Name: xml.Name{Local: "category"}, Value: string(di.Category)},
			{Name: xml.Name{Local: "type"}, Value: di.Type},
		},
	}
	if di.Name != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: di.Name})
	}
	if di.SubType != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "subType"}, Value: di.SubType})
	}
	if di.Representation != "" && di.Representation != model.RepresentationValue {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "representation"}, Value: string(di.Representation)})
	}
	if di.NativeUnits != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "nativeUnits"}, Value: di.NativeUnits})
	}
	if di.Units != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "units"}, Value: di.Units})
	}
	if di.SampleRate != 0 {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "sampleRate"}, Value: observation.FormatDouble(di.SampleRate)})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func writePassthrough(enc *xml.Encoder, pe model.PassthroughElement) error {
	name := xml.Name{Local: pe.Name}
	if pe.Namespace != "" {
		name.Space = pe.Namespace
	}
	start := xml.StartElement{Name: name}
	for k, v := range pe.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: k}, Value: v})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if pe.InnerXML != "" {
		if err := enc.EncodeToken(xml.CharData(pe.InnerXML)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}
