package database

import (
	"testing"

	"github.com/ortelius/depchain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFindingEdges(t *testing.T) {
	edges := buildFindingEdges("analysis/42", []string{"a", "b"})

	require.Len(t, edges, 2)
	assert.Equal(t, "analysis/42", edges[0]["_from"])
	assert.Equal(t, "finding/a", edges[0]["_to"])
	assert.Equal(t, 0, edges[0]["seq"])
	assert.Equal(t, "finding/b", edges[1]["_to"])
	assert.Equal(t, 1, edges[1]["seq"])
}

func TestBuildPurlEdges(t *testing.T) {
	findings := []model.Finding{
		{Package: "lodash", Purl: "pkg:npm/lodash"},
		{Package: "broken", Purl: "not a purl"},
		{Package: "qs", Purl: "pkg:npm/qs"},
	}
	purls := map[string]string{
		"pkg:npm/lodash": "purl/1",
		"pkg:npm/qs":     "purl/2",
	}

	edges := buildPurlEdges(findings, []string{"f1", "f2", "f3"}, purls)

	require.Len(t, edges, 2)
	assert.Equal(t, "finding/f1", edges[0]["_from"])
	assert.Equal(t, "purl/1", edges[0]["_to"])
	assert.Equal(t, "finding/f3", edges[1]["_from"])
	assert.Equal(t, "purl/2", edges[1]["_to"])
}

func TestBasePurl(t *testing.T) {
	assert.Equal(t, "pkg:npm/lodash", basePurl(model.Finding{Purl: "pkg:npm/lodash@4.17.11"}))
	assert.Empty(t, basePurl(model.Finding{}))
}

func TestDBConnectionImplementsStore(t *testing.T) {
	var _ Store = DBConnection{}
}
