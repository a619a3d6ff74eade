// Package pathfinder enumerates every path from the root of a dependency tree
// to the nodes whose name matches a target package.
package pathfinder

import (
	"strings"

	"github.com/ortelius/depchain/model"
)

// Matcher decides whether a node name matches the target package
type Matcher func(nodeName, target string) bool

// SubstringMatch matches when target occurs anywhere in the node name.
// A target of "ip" therefore also matches "zip".
func SubstringMatch(nodeName, target string) bool {
	return strings.Contains(nodeName, target)
}

// ExactMatch matches only identical names
func ExactMatch(nodeName, target string) bool {
	return nodeName == target
}

// Finder walks a dependency tree collecting paths to matching nodes
type Finder struct {
	Match    Matcher
	MaxDepth int // hops below the root to descend, 0 for no limit
}

// Option configures a Finder
type Option func(*Finder)

// WithMatcher replaces the default substring matcher
func WithMatcher(m Matcher) Option {
	return func(f *Finder) {
		if m != nil {
			f.Match = m
		}
	}
}

// WithMaxDepth caps traversal depth
func WithMaxDepth(depth int) Option {
	return func(f *Finder) {
		if depth > 0 {
			f.MaxDepth = depth
		}
	}
}

// New creates a Finder using substring matching and no depth limit unless overridden
func New(opts ...Option) *Finder {
	f := &Finder{Match: SubstringMatch}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var defaultFinder = New()

// FindAllPaths returns every root-to-match path using substring matching
func FindAllPaths(tree *model.DependencyNode, target string) []model.DependencyPath {
	return defaultFinder.FindAllPaths(tree, target)
}

// FindAllPaths walks the tree depth first in pre-order. A matching node ends
// its branch: the path to it is recorded and its children are not visited.
// Children are visited in ascending key order. An empty result means the
// target is not in the tree.
func (f *Finder) FindAllPaths(tree *model.DependencyNode, target string) []model.DependencyPath {
	if tree == nil {
		return nil
	}

	match := f.Match
	if match == nil {
		match = SubstringMatch
	}

	var paths []model.DependencyPath
	current := []string{tree.DisplayName()}

	var walk func(node *model.DependencyNode, depth int)
	walk = func(node *model.DependencyNode, depth int) {
		if match(node.Name, target) {
			found := make(model.DependencyPath, len(current))
			copy(found, current)
			paths = append(paths, found)
			return
		}

		if f.MaxDepth > 0 && depth >= f.MaxDepth {
			return
		}

		for _, key := range node.ChildKeys() {
			child := node.Children[key]
			if child == nil {
				continue
			}
			current = append(current, model.Segment(key, child))
			walk(child, depth+1)
			current = current[:len(current)-1]
		}
	}

	walk(tree, 0)
	return paths
}
