package util

import (
	"testing"

	"github.com/package-url/packageurl-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("DEPCHAIN_TEST_SET", "value")

	assert.Equal(t, "value", GetEnvDefault("DEPCHAIN_TEST_SET", "fallback"))
	assert.Equal(t, "fallback", GetEnvDefault("DEPCHAIN_TEST_UNSET_KEY", "fallback"))
}

func TestStripVersion(t *testing.T) {
	tests := []struct {
		segment  string
		expected string
	}{
		{"express@4.17.1", "express"},
		{"@babel/core@7.0.0", "@babel/core"},
		{"@babel/core", "@babel/core"},
		{"lodash", "lodash"},
		{"left-pad@unknown", "left-pad"},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripVersion(tt.segment))
		})
	}
}

func TestNpmPURL(t *testing.T) {
	assert.Equal(t, "pkg:npm/lodash@4.17.20", NpmPURL("lodash", "4.17.20"))
	assert.Equal(t, "pkg:npm/lodash", NpmPURL("lodash", "unknown"))

	scoped := NpmPURL("@babel/core", "7.0.0")
	parsed, err := packageurl.FromString(scoped)
	require.NoError(t, err)
	assert.Equal(t, "@babel", parsed.Namespace)
	assert.Equal(t, "core", parsed.Name)
	assert.Equal(t, "7.0.0", parsed.Version)
}

func TestGetBasePURL(t *testing.T) {
	base, err := GetBasePURL("pkg:npm/lodash@4.17.20?arch=x64")
	require.NoError(t, err)
	assert.Equal(t, "pkg:npm/lodash", base)

	_, err = GetBasePURL("not a purl")
	assert.Error(t, err)
}

func TestIsVersionInRange(t *testing.T) {
	tests := []struct {
		name    string
		version string
		rng     string
		inRange bool
		decided bool
	}{
		{"below fix", "1.2.5", "<1.2.6", true, true},
		{"at fix", "1.2.6", "<1.2.6", false, true},
		{"compound or", "0.1.0", ">=1.0.0 <1.2.6 || <0.2.1", true, true},
		{"compound outside", "0.5.0", ">=1.0.0 <1.2.6 || <0.2.1", false, true},
		{"unknown range", "1.0.0", "unknown", false, false},
		{"empty range", "1.0.0", "", false, false},
		{"bad version", "unknown", "<1.0.0", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inRange, decided := IsVersionInRange(tt.version, tt.rng)
			assert.Equal(t, tt.decided, decided)
			assert.Equal(t, tt.inRange, inRange)
		})
	}
}

func TestFileExists(t *testing.T) {
	assert.True(t, FileExists("helpers.go"))
	assert.False(t, FileExists("does-not-exist.go"))
}

func TestGetStringOrDefault(t *testing.T) {
	assert.Equal(t, "web", GetStringOrDefault("web", "root"))
	assert.Equal(t, "root", GetStringOrDefault("", "root"))
}
