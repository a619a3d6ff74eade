// Package model - audit types decoded from `npm audit --json` (v7+ format)
package model

import (
	"encoding/json"
	"fmt"
)

// AuditReport is the top level of an npm audit report
type AuditReport struct {
	AuditReportVersion int                            `json:"auditReportVersion,omitempty"`
	Vulnerabilities    map[string]VulnerabilityRecord `json:"vulnerabilities"`
}

// VulnerabilityRecord is one entry of the audit "vulnerabilities" map
type VulnerabilityRecord struct {
	Name         string          `json:"name,omitempty"`
	Severity     string          `json:"severity"`
	IsDirect     bool            `json:"isDirect,omitempty"`
	Via          []ViaEntry      `json:"via"`
	Effects      []string        `json:"effects,omitempty"`
	Range        string          `json:"range,omitempty"`
	Nodes        []string        `json:"nodes,omitempty"`
	FixAvailable json.RawMessage `json:"fixAvailable,omitempty"` // bool or {name, version, isSemVerMajor}
}

// UnmarshalJSON applies the "unknown" severity default
func (r *VulnerabilityRecord) UnmarshalJSON(data []byte) error {
	type plain VulnerabilityRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Severity == "" {
		p.Severity = SeverityUnknown
	}
	*r = VulnerabilityRecord(p)
	return nil
}

// ViaEntry is either a plain package name (the vulnerability is inherited from
// that package) or a described advisory carrying the package name and range.
type ViaEntry struct {
	Name      string `json:"name"`
	Range     string `json:"range,omitempty"`
	Described bool   `json:"-"`

	// Advisory details, only present on described entries
	Source   any    `json:"source,omitempty"` // advisory id, number or string
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// PlainName builds a via entry that only names a package
func PlainName(name string) ViaEntry {
	return ViaEntry{Name: name}
}

// Described builds a via entry carrying a package name and vulnerable range
func Described(name, versionRange string) ViaEntry {
	return ViaEntry{Name: name, Range: versionRange, Described: true}
}

// Package returns the package name and vulnerable range of the entry.
// Plain names have no range and report UnknownVersion.
func (v ViaEntry) Package() (string, string) {
	if !v.Described {
		return v.Name, UnknownVersion
	}
	return v.Name, v.Range
}

// AdvisoryID returns a printable advisory identifier, empty when unknown
func (v ViaEntry) AdvisoryID() string {
	switch id := v.Source.(type) {
	case float64:
		return fmt.Sprintf("NPM-%d", int(id))
	case string:
		return "NPM-" + id
	default:
		return ""
	}
}

// UnmarshalJSON accepts either a JSON string or an advisory object
func (v *ViaEntry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*v = PlainName(name)
		return nil
	}

	type plain ViaEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("via entry is neither a string nor an object: %w", err)
	}
	*v = ViaEntry(p)
	v.Described = true
	return nil
}

// MarshalJSON writes plain names back as strings
func (v ViaEntry) MarshalJSON() ([]byte, error) {
	if !v.Described {
		return json.Marshal(v.Name)
	}
	type plain ViaEntry
	return json.Marshal(plain(v))
}
