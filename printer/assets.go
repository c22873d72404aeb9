package printer

import (
	"bytes"
	"encoding/json"
	"encoding/xml"

	"github.com/mtconnect-go/agentcore/assets"
)

// PrintAssetsXML renders an MTConnectAssets document: one child element
// per asset, its type as the element name, the stored body passed
// through as raw inner XML since the agent never interprets asset
// payloads.
func PrintAssetsXML(h Header, list []*assets.Asset) ([]byte, error) {
	var buf bytes.Buffer
	writeProlog(&buf, XMLOptions{})

	enc := xml.NewEncoder(&buf)
	root := rootStart("MTConnectAssets", h.SchemaVersion)
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	if err := writeHeader(enc, h); err != nil {
		return nil, err
	}

	assetsStart := xml.StartElement{Name: xml.Name{Local: "Assets"}}
	if err := enc.EncodeToken(assetsStart); err != nil {
		return nil, err
	}
	for _, a := range list {
		if err := writeAssetElement(enc, &buf, a); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(assetsStart.End()); err != nil {
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

// writeAssetElement emits one asset. The body is written as raw bytes
// rather than through the encoder's CharData token, which would escape
// "<" and "&" and turn the stored XML fragment into escaped text instead
// of the nested elements an asset actually carries.
func writeAssetElement(enc *xml.Encoder, buf *bytes.Buffer, a *assets.Asset) error {
	name := a.Type
	if name == "" {
		name = "Asset"
	}
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "assetId"}, Value: a.ID},
		{Name: xml.Name{Local: "timestamp"}, Value: a.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")},
	}
	if a.DeviceUUID != "" {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "deviceUuid"}, Value: a.DeviceUUID})
	}
	if a.Removed {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "removed"}, Value: "true"})
	}
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if a.Body != "" {
		if err := enc.Flush(); err != nil {
			return err
		}
		buf.WriteString(a.Body)
	}
	return enc.EncodeToken(start.End())
}

// PrintAssetsJSON renders the JSON equivalent of PrintAssetsXML. The
// asset body is carried as a raw string field since it is opaque XML
// that the agent never parses into structured JSON.
func PrintAssetsJSON(h Header, list []*assets.Asset) ([]byte, error) {
	var out []jsonObj
	for _, a := range list {
		entry := jsonObj{
			"assetId":   a.ID,
			"timestamp": a.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			"raw":       a.Body,
		}
		if a.DeviceUUID != "" {
			entry["deviceUuid"] = a.DeviceUUID
		}
		if a.Removed {
			entry["removed"] = true
		}
		name := a.Type
		if name == "" {
			name = "Asset"
		}
		out = append(out, jsonObj{name: entry})
	}
	root := jsonObj{"MTConnectAssets": jsonObj{
		"Header": headerObj(h),
		"Assets": out,
	}}
	return json.Marshal(root)
}
