package braidproto

// Patch represents one change of the model in the Braid protocol
type Patch struct {
	Unit        string `json:"unit"`                  // Unit is the change kind, e.g. "ADD"
	Range       string `json:"range"`                 // Range is the model position, e.g. "creation/entities/a"
	Content     string `json:"content"`               // Content is the JSON value at the position
	OldPosition string `json:"oldPosition,omitempty"` // OldPosition is the source of a MOVE
	BeforeKey   string `json:"beforeKey,omitempty"`   // BeforeKey is the sibling the element was inserted before
}

// Update represents a Braid protocol update with version, parents, and either patches or a full body
type Update struct {
	Version []string `json:"version"`           // Version identifiers for this update
	Parents []string `json:"parents"`           // Parent versions this update is based on
	Patches []Patch  `json:"patches,omitempty"` // Optional list of patches
	Body    string   `json:"body,omitempty"`    // Optional full body content
}
