package model

// PURL represents a package URL (base form without version)
// Used as a hub to connect findings for the same package across analyses
type PURL struct {
	Key     string `json:"_key,omitempty"`
	Purl    string `json:"purl"` // Base PURL without version (e.g., pkg:npm/lodash)
	ObjType string `json:"objtype"`
}

// NewPURL creates a new PURL instance
func NewPURL(purl string) *PURL {
	return &PURL{
		Purl:    purl,
		ObjType: "PURL",
	}
}
