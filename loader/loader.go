// Package loader reads the JSON produced by `npm ls --all --json` and
// `npm audit --json` into the model types.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ortelius/depchain/model"
)

// ParseTree decodes an npm ls JSON document
func ParseTree(data []byte) (*model.DependencyNode, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("dependency tree is empty")
	}

	var tree model.DependencyNode
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dependency tree json: %w", err)
	}
	return &tree, nil
}

// ParseAudit decodes an npm audit JSON document
func ParseAudit(data []byte) (*model.AuditReport, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("audit report is empty")
	}

	var report model.AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal npm audit json: %w", err)
	}
	if report.Vulnerabilities == nil {
		report.Vulnerabilities = make(map[string]model.VulnerabilityRecord)
	}
	return &report, nil
}

// ReadTree decodes a dependency tree from r
func ReadTree(r io.Reader) (*model.DependencyNode, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dependency tree: %w", err)
	}
	return ParseTree(data)
}

// ReadAudit decodes an audit report from r
func ReadAudit(r io.Reader) (*model.AuditReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit report: %w", err)
	}
	return ParseAudit(data)
}

// LoadTree reads and decodes the dependency tree file at path
func LoadTree(path string) (*model.DependencyNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dependency tree file: %w", err)
	}
	tree, err := ParseTree(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// LoadAudit reads and decodes the audit report file at path
func LoadAudit(path string) (*model.AuditReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit file: %w", err)
	}
	report, err := ParseAudit(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}
