package server

import (
	"regexp"
	"strings"

	"github.com/mtconnect-go/agentcore/errs"
	"github.com/mtconnect-go/agentcore/model"
)

// pathAttr matches the one XPath-like shape this agent recognizes for the
// "path" query parameter: //DataItem[@name='X'] or //DataItem[@type='X'],
// optionally prefixed with a device path segment. No ecosystem XPath
// library appears anywhere in the retrieved pack, so this is a deliberate
// stdlib regexp subset rather than a general expression evaluator.
var pathAttr = regexp.MustCompile(`@(name|type|id)\s*=\s*'([^']*)'`)

// resolveFilter builds the data-item id set a sample/current request is
// restricted to: deviceName scopes to one device's data items (or every
// device if empty), and a non-empty path expression narrows further by
// attribute match. An unparseable non-empty path is INVALID_XPATH.
func resolveFilter(tree *model.Tree, deviceName, path string) (map[string]struct{}, *errs.Many) {
	base := tree.AllDataItemIDs(deviceName)
	if path == "" {
		return base, nil
	}

	m := pathAttr.FindStringSubmatch(path)
	if m == nil {
		return nil, errs.New(errs.InvalidXPath, "could not parse path expression '"+path+"'")
	}
	attr, want := m[1], m[2]

	out := make(map[string]struct{})
	for id := range base {
		di, ok := tree.DataItem(id)
		if !ok {
			continue
		}
		var got string
		switch attr {
		case "name":
			got = di.Name
		case "type":
			got = di.Type
		case "id":
			got = di.ID
		}
		if strings.EqualFold(got, want) {
			out[id] = struct{}{}
		}
	}
	if len(out) == 0 {
		return nil, errs.New(errs.InvalidXPath, "path expression '"+path+"' matched no data items")
	}
	return out, nil
}
