package model

// Component is a node in a device's hierarchical structure. Children and
// owned data items are referenced by id rather than by pointer: the
// parent/child cycle is resolved by storing everything in the Tree's
// arena keyed by stable id, with Component holding id lists;
// back-references become arena lookups instead of direct pointers.
type Component struct {
	ID           string
	Name         string
	Type         string // e.g. "Axes", "Controller", "Linear"
	UUID         string
	Description  map[string]string
	DataItemIDs  []string // declaration order
	ComponentIDs []string // child components, declaration order
	ParentID     string   // "" for the root (Device)

	// References are data items declared elsewhere in the tree but
	// exposed under this component.
	ReferenceIDs []string

	// PassthroughElements holds unknown namespaced XML children recorded
	// verbatim so the probe serializer can re-emit them unchanged.
	PassthroughElements []PassthroughElement
}

// PassthroughElement is an opaque, namespaced XML fragment captured from
// the device model loader for verbatim re-emission.
type PassthroughElement struct {
	Namespace string
	Name      string
	Attrs     map[string]string
	InnerXML  string
}

// Device is the root Component of a device tree, with device-specific
// header metadata.
type Device struct {
	Component
	Iri           string
	MTConnectVersion string
}
