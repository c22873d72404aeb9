package printer

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
)

// XMLOptions holds document details that vary per deployment. Its only
// option is the stylesheet processing instruction; namespaces follow from
// the schema version alone.
type XMLOptions struct {
	Stylesheet string // path to an XSL stylesheet PI, omitted if empty
}

// PrintStreamsXML renders a checkpoint (or range of observations) as an
// MTConnectStreams document. It writes token by token with encoding/xml's
// encoder rather than struct-tag marshaling, because the schema-variable
// PassthroughElements and per-category element names don't map cleanly
// onto a single static Go struct.
func PrintStreamsXML(tree *model.Tree, h Header, cp *buffer.Checkpoint, opts XMLOptions) ([]byte, error) {
	var buf bytes.Buffer
	writeProlog(&buf, opts)

	enc := xml.NewEncoder(&buf)
	root := rootStart("MTConnectStreams", h.SchemaVersion)
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	if err := writeHeader(enc, h); err != nil {
		return nil, err
	}

	streamsStart := xml.StartElement{Name: xml.Name{Local: "Streams"}}
	if err := enc.EncodeToken(streamsStart); err != nil {
		return nil, err
	}
	for _, dg := range groupByDeviceComponent(tree, cp) {
		if err := writeDeviceStream(enc, dg); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(streamsStart.End()); err != nil {
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

func writeProlog(buf *bytes.Buffer, opts XMLOptions) {
	buf.WriteString(xml.Header)
	if opts.Stylesheet != "" {
		buf.WriteString(`<?xml-stylesheet type="text/xsl" href="` + xmlEscapeAttr(opts.Stylesheet) + `"?>` + "\n")
	}
}

func rootStart(name, schemaVersion string) xml.StartElement {
	ns := "urn:mtconnect.org:" + name + ":" + schemaVersion
	loc := ns + " " + "http://schemas.mtconnect.org/schemas/" + name + "_" + schemaVersion + ".xsd"
	return xml.StartElement{
		Name: xml.Name{Local: name},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: ns},
			{Name: xml.Name{Local: "xmlns:m"}, Value: ns},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: "http://www.w3.org/2001/XMLSchema-instance"},
			{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: loc},
		},
	}
}

func writeHeader(enc *xml.Encoder, h Header) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "Header"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "creationTime"}, Value: h.CreationTime.UTC().Format("2006-01-02T15:04:05Z")},
			{Name: xml.Name{Local: "sender"}, Value: h.Sender},
			{Name: xml.Name{Local: "instanceId"}, Value: strconv.FormatInt(h.InstanceID, 10)},
			{Name: xml.Name{Local: "version"}, Value: h.Version},
			{Name: xml.Name{Local: "schemaVersion"}, Value: h.SchemaVersion},
			{Name: xml.Name{Local: "testIndicator"}, Value: "false"},
			{Name: xml.Name{Local: "bufferSize"}, Value: strconv.Itoa(h.BufferSize)},
			{Name: xml.Name{Local: "assetBufferSize"}, Value: strconv.Itoa(h.AssetBufferSize)},
			{Name: xml.Name{Local: "assetCount"}, Value: strconv.Itoa(h.AssetCount)},
		},
	}
	if schemaAtLeast(h.SchemaVersion, 1, 7) {
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "deviceModelChangeTime"}, Value: h.DeviceModelChangeTime.UTC().Format("2006-01-02T15:04:05Z")},
		)
	}
	if h.LastSequence != 0 || h.FirstSequence != 0 || h.NextSequence != 0 {
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "firstSequence"}, Value: strconv.FormatUint(h.FirstSequence, 10)},
			xml.Attr{Name: xml.Name{Local: "lastSequence"}, Value: strconv.FormatUint(h.LastSequence, 10)},
			xml.Attr{Name: xml.Name{Local: "nextSequence"}, Value: strconv.FormatUint(h.NextSequence, 10)},
		)
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func writeDeviceStream(enc *xml.Encoder, dg deviceGroup) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "DeviceStream"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "name"}, Value: dg.Device.Name},
			{Name: xml.Name{Local: "uuid"}, Value: dg.Device.UUID},
		},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, cg := range dg.Components {
		if err := writeComponentStream(enc, cg); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func writeComponentStream(enc *xml.Encoder, cg *componentGroup) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "ComponentStream"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "component"}, Value: cg.Component.Type},
			{Name: xml.Name{Local: "name"}, Value: cg.Component.Name},
			{Name: xml.Name{Local: "componentId"}, Value: cg.Component.ID},
		},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if len(cg.Samples) > 0 {
		if err := writeCategory(enc, "Samples", cg.Samples); err != nil {
			return err
		}
	}
	if len(cg.Events) > 0 {
		if err := writeCategory(enc, "Events", cg.Events); err != nil {
			return err
		}
	}
	if len(cg.Condition) > 0 {
		if err := writeConditionCategory(enc, cg.Condition); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func writeCategory(enc *xml.Encoder, name string, obs []*observation.Observation) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, o := range obs {
		if err := writeObservation(enc, o); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func writeObservation(enc *xml.Encoder, o *observation.Observation) error {
	el := elementName(o.DataItem.Type)
	start := xml.StartElement{
		Name: xml.Name{Local: el},
		Attr: observationAttrs(o),
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(observationText(o))); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func writeConditionCategory(enc *xml.Encoder, entries []conditionEntry) error {
	start := xml.StartElement{Name: xml.Name{Local: "Condition"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, ce := range entries {
		if ce.State == nil || ce.State.IsNormal() {
			if err := writeConditionValue(enc, ce.DataItem, observation.ConditionValue{Level: observation.LevelNormal}); err != nil {
				return err
			}
			continue
		}
		if ce.State.Unavailable {
			if err := writeConditionValue(enc, ce.DataItem, observation.ConditionValue{Level: observation.LevelUnavailable}); err != nil {
				return err
			}
			continue
		}
		for _, v := range ce.State.Active {
			if err := writeConditionValue(enc, ce.DataItem, v); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(start.End())
}

func writeConditionValue(enc *xml.Encoder, di *model.DataItem, v observation.ConditionValue) error {
	el := string(v.Level)
	el = string(toUpper(rune(el[0]))) + toLowerRest(el[1:])
	start := xml.StartElement{
		Name: xml.Name{Local: el},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "dataItemId"}, Value: di.ID},
		},
	}
	if di.Name != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: di.Name})
	}
	if v.NativeCode != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "nativeCode"}, Value: v.NativeCode})
	}
	if v.NativeSeverity != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "nativeSeverity"}, Value: v.NativeSeverity})
	}
	if v.Qualifier != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "qualifier"}, Value: v.Qualifier})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if v.Message != "" {
		if err := enc.EncodeToken(xml.CharData(v.Message)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func toLowerRest(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		b.WriteRune(toLower(r))
	}
	return b.String()
}

func observationAttrs(o *observation.Observation) []xml.Attr {
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "dataItemId"}, Value: o.DataItem.ID},
		{Name: xml.Name{Local: "timestamp"}, Value: o.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")},
		{Name: xml.Name{Local: "sequence"}, Value: strconv.FormatUint(o.Seq, 10)},
	}
	if o.DataItem.Name != "" {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "name"}, Value: o.DataItem.Name})
	}
	if o.IsCondition() {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "nativeCode"}, Value: o.Condition.NativeCode})
		if o.Condition.Qualifier != "" {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "qualifier"}, Value: o.Condition.Qualifier})
		}
	}
	if o.Unavailable {
		// UNAVAILABLE observations carry no value text; nothing else to add.
	}
	return attrs
}

func observationText(o *observation.Observation) string {
	if o.Unavailable {
		return "UNAVAILABLE"
	}
	switch o.Kind {
	case observation.KindScalar:
		return o.Scalar
	case observation.KindVector:
		return joinFloats(o.Vector)
	case observation.KindTimeSeries:
		return joinFloats(o.Series)
	case observation.KindCondition:
		return o.Condition.Message
	default:
		return dataSetText(o.Entries)
	}
}

func joinFloats(vs []float64) string {
	var b bytes.Buffer
	for i, v := range vs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(observation.FormatDouble(v))
	}
	return b.String()
}

func dataSetText(entries []observation.DataSetEntry) string {
	var b bytes.Buffer
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.Key)
		b.WriteByte('=')
		if e.Removed {
			b.WriteString("\"\"")
		} else {
			b.WriteByte('"')
			b.WriteString(e.Value)
			b.WriteByte('"')
		}
	}
	return b.String()
}

// elementName maps a data item's type (e.g. "POSITION", "X_AXIS_FEEDRATE")
// to the wire element name (CamelCase, e.g. "Position", "XAxisFeedrate").
func elementName(typ string) string {
	var b bytes.Buffer
	upperNext := true
	for _, r := range typ {
		if r == '_' {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(toUpper(r))
			upperNext = false
		} else {
			b.WriteRune(toLower(r))
		}
	}
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func xmlEscapeAttr(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
