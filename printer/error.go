package printer

import (
	"bytes"
	"encoding/json"
	"encoding/xml"

	"github.com/mtconnect-go/agentcore/errs"
)

// ErrorSchemaVariant selects which error document shape to render: the
// pre-2.6 schema carried an Errors/Error list where the aggregate element
// used the single element name "Error" regardless of Code, while 2.6+
// emits one element per Code (InvalidParameterValue, OutOfRange, ...).
type ErrorSchemaVariant int

const (
	ErrorSchemaPre26 ErrorSchemaVariant = iota
	ErrorSchemaV26Plus
)

// PrintErrorXML renders an MTConnectError document.
func PrintErrorXML(h Header, many *errs.Many, variant ErrorSchemaVariant) ([]byte, error) {
	var buf bytes.Buffer
	writeProlog(&buf, XMLOptions{})

	enc := xml.NewEncoder(&buf)
	root := rootStart("MTConnectError", h.SchemaVersion)
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	if err := writeHeader(enc, h); err != nil {
		return nil, err
	}

	errorsStart := xml.StartElement{Name: xml.Name{Local: "Errors"}}
	if err := enc.EncodeToken(errorsStart); err != nil {
		return nil, err
	}
	for _, e := range many.Errors {
		if err := writeErrorElement(enc, e, variant); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(errorsStart.End()); err != nil {
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

func writeErrorElement(enc *xml.Encoder, e *errs.Error, variant ErrorSchemaVariant) error {
	name := "Error"
	attrs := []xml.Attr{{Name: xml.Name{Local: "errorCode"}, Value: string(e.Code)}}
	if variant == ErrorSchemaV26Plus {
		name = e.Code.ElementName()
		attrs = nil
		if e.Param != nil {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "name"}, Value: e.Param.Name})
		}
		if e.AssetID != "" {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "assetId"}, Value: e.AssetID})
		}
	}
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(e.Message)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

// PrintErrorJSON renders the JSON equivalent of PrintErrorXML, in either
// dialect (the two JSON variants agree on error-document shape).
func PrintErrorJSON(h Header, many *errs.Many, variant ErrorSchemaVariant) ([]byte, error) {
	var list []jsonObj
	for _, e := range many.Errors {
		entry := jsonObj{"errorCode": string(e.Code), "value": e.Message}
		if variant == ErrorSchemaV26Plus {
			entry = jsonObj{"value": e.Message}
			if e.Param != nil {
				entry["name"] = e.Param.Name
			}
			if e.AssetID != "" {
				entry["assetId"] = e.AssetID
			}
			list = append(list, jsonObj{e.Code.ElementName(): entry})
			continue
		}
		list = append(list, jsonObj{"Error": entry})
	}
	root := jsonObj{"MTConnectError": jsonObj{
		"Header": headerObj(h),
		"Errors": list,
	}}
	return json.Marshal(root)
}

// StatusFor is a convenience for handlers that already have a *errs.Many
// and want the HTTP status to write before the body.
func StatusFor(many *errs.Many) int { return many.Status() }
