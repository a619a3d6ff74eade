// Package model - Finding is the classification result for one audit entry
package model

// DependencyType tells how a vulnerable package enters the tree
type DependencyType string

const (
	// DependencyDirect means the shortest path reaches the package in one hop from the root.
	DependencyDirect DependencyType = "direct"
	// DependencyTransitive means the package is only reached through other dependencies.
	DependencyTransitive DependencyType = "transitive"
	// DependencyNotFound means no node in the tree matched the package.
	DependencyNotFound DependencyType = "not found"
)

// Strategy is the recommended remediation for a finding
type Strategy string

const (
	// StrategyDirectUpgrade bumps the package in the manifest.
	StrategyDirectUpgrade Strategy = "direct_upgrade"
	// StrategyCheckDirectThenOverride upgrades the owning direct dependency, falling back to an override.
	StrategyCheckDirectThenOverride Strategy = "check_direct_then_override"
	// StrategyUnknown is used when the package could not be located.
	StrategyUnknown Strategy = "unknown"
)

// Installation is one installed version of the vulnerable package found in the tree
type Installation struct {
	Version string `json:"version"`
	InRange *bool  `json:"in_range,omitempty"` // nil when the range or version is not semver
}

// Finding is created once per audit entry and never modified afterwards
type Finding struct {
	Key            string           `json:"_key,omitempty"`
	ObjType        string           `json:"objtype,omitempty"`
	Package        string           `json:"package"`
	VersionRange   string           `json:"version_range"`
	DependencyType DependencyType   `json:"type"`
	Paths          []DependencyPath `json:"paths"`
	Strategy       Strategy         `json:"strategy"`
	Explanation    string           `json:"explanation"`
	Severity       string           `json:"severity"`
	Purl           string           `json:"purl,omitempty"`
	Advisory       string           `json:"advisory,omitempty"`
	AdvisoryURL    string           `json:"advisory_url,omitempty"`
	Installed      []Installation   `json:"installed,omitempty"`
}

// ShortestPathLength returns the number of segments in the shortest path, 0 when there are none
func ShortestPathLength(paths []DependencyPath) int {
	shortest := 0
	for _, path := range paths {
		if shortest == 0 || len(path) < shortest {
			shortest = len(path)
		}
	}
	return shortest
}
