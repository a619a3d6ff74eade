// Package model defines the data structures used by depchain,
// including dependency trees, audit records, findings and analyses.
package model

import (
	"encoding/json"
	"sort"
)

// RootLabel is the display name used for a tree root that carries no name
const RootLabel = "root"

// UnknownVersion labels a dependency whose version was not reported
const UnknownVersion = "unknown"

// DependencyNode is one resolved package instance in an `npm ls --json` tree.
// Children are owned exclusively by their parent; the tree has no cycles.
type DependencyNode struct {
	Name     string                     `json:"name,omitempty"`
	Version  string                     `json:"version,omitempty"`
	Children map[string]*DependencyNode `json:"dependencies,omitempty"`
}

// DependencyPath is the ordered list of labels from the root to a matched node.
// The first element is the root label, every other element is "name@version".
type DependencyPath []string

// DisplayName returns the label used for this node when it is the root of a path
func (n *DependencyNode) DisplayName() string {
	if n.Name == "" {
		return RootLabel
	}
	return n.Name
}

// VersionLabel returns the version or UnknownVersion when none was reported
func (n *DependencyNode) VersionLabel() string {
	if n.Version == "" {
		return UnknownVersion
	}
	return n.Version
}

// ChildKeys returns the dependency names of this node in ascending order
func (n *DependencyNode) ChildKeys() []string {
	keys := make([]string, 0, len(n.Children))
	for key := range n.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Segment renders the path label for a child reached through key
func Segment(key string, child *DependencyNode) string {
	return key + "@" + child.VersionLabel()
}

// UnmarshalJSON decodes the npm tree shape. npm omits "name" on nested
// dependencies, so children inherit their mapping key as name.
func (n *DependencyNode) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name         string                     `json:"name"`
		Version      string                     `json:"version"`
		Dependencies map[string]*DependencyNode `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.Name = raw.Name
	n.Version = raw.Version
	n.Children = make(map[string]*DependencyNode, len(raw.Dependencies))

	for key, child := range raw.Dependencies {
		if child == nil {
			child = &DependencyNode{Children: map[string]*DependencyNode{}}
		}
		if child.Name == "" {
			child.Name = key
		}
		n.Children[key] = child
	}
	return nil
}

// NewDependencyNode creates a node with an empty children map
func NewDependencyNode(name, version string) *DependencyNode {
	return &DependencyNode{
		Name:     name,
		Version:  version,
		Children: make(map[string]*DependencyNode),
	}
}

// AddChild attaches child under key and returns the child for chaining
func (n *DependencyNode) AddChild(key string, child *DependencyNode) *DependencyNode {
	if n.Children == nil {
		n.Children = make(map[string]*DependencyNode)
	}
	n.Children[key] = child
	return child
}
