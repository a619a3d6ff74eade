package loader

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ortelius/depchain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTree(t *testing.T) {
	tree, err := LoadTree(filepath.Join("testdata", "dependency-tree.json"))
	require.NoError(t, err)

	assert.Equal(t, "vulnerable-app", tree.DisplayName())
	require.Contains(t, tree.Children, "express")
	express := tree.Children["express"]
	assert.Equal(t, "express", express.Name)
	assert.Equal(t, "4.17.1", express.Version)
	assert.Equal(t, "qs", express.Children["qs"].Name)
}

func TestLoadAudit(t *testing.T) {
	report, err := LoadAudit(filepath.Join("testdata", "npm-audit.json"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.AuditReportVersion)
	require.Len(t, report.Vulnerabilities, 6)

	axios := report.Vulnerabilities["axios"]
	require.Len(t, axios.Via, 2)
	assert.True(t, axios.Via[0].Described)
	assert.False(t, axios.Via[1].Described)
	assert.Equal(t, "follow-redirects", axios.Via[1].Name)

	assert.Empty(t, report.Vulnerabilities["orphan"].Via)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadTree(filepath.Join("testdata", "nope.json"))
	assert.Error(t, err)

	_, err = LoadAudit(filepath.Join("testdata", "nope.json"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := ParseTree([]byte("   "))
	assert.Error(t, err)

	_, err = ParseTree([]byte("{not json"))
	assert.Error(t, err)

	_, err = ParseAudit([]byte(""))
	assert.Error(t, err)

	_, err = ParseAudit([]byte(`{"vulnerabilities": {"x": {"via": [42]}}}`))
	assert.Error(t, err)
}

func TestParseAuditWithoutVulnerabilities(t *testing.T) {
	report, err := ReadAudit(strings.NewReader(`{"auditReportVersion": 2}`))
	require.NoError(t, err)
	assert.NotNil(t, report.Vulnerabilities)
	assert.Empty(t, report.Vulnerabilities)
}

func TestReadTreeMinimal(t *testing.T) {
	tree, err := ReadTree(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, model.RootLabel, tree.DisplayName())
	assert.Empty(t, tree.Children)
}
