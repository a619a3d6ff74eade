// Package util provides helper functions shared by the depchain packages:
// environment handling, package-url construction and version range checks.
package util

import (
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/package-url/packageurl-go"
)

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// IsEmpty checks if a string is empty or contains only whitespace
func IsEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// GetStringOrDefault returns value or default if empty
func GetStringOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// SplitScope splits an npm package name into scope and bare name.
// Example: @babel/core -> ("@babel", "core"), lodash -> ("", "lodash")
func SplitScope(pkg string) (string, string) {
	if strings.HasPrefix(pkg, "@") {
		if idx := strings.Index(pkg, "/"); idx > 0 {
			return pkg[:idx], pkg[idx+1:]
		}
	}
	return "", pkg
}

// StripVersion removes the "@version" suffix from a path segment, keeping the
// leading "@" of scoped packages. Example: @babel/core@7.0.0 -> @babel/core
func StripVersion(segment string) string {
	idx := strings.LastIndex(segment, "@")
	if idx <= 0 {
		return segment
	}
	return segment[:idx]
}

// NpmPURL builds the package url for an npm package. An empty or unknown
// version produces the base form.
// Example: (lodash, 4.17.20) -> pkg:npm/lodash@4.17.20
func NpmPURL(pkg, version string) string {
	namespace, name := SplitScope(pkg)
	if version == "unknown" {
		version = ""
	}
	purl := packageurl.NewPackageURL(packageurl.TypeNPM, namespace, name, version, nil, "")
	return purl.ToString()
}

// GetBasePURL removes the version component from a PURL to create a base package identifier
// This is the key used for the purl hub that links findings across analyses
// Example: pkg:npm/lodash@4.17.20 -> pkg:npm/lodash
func GetBasePURL(purlStr string) (string, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return "", err
	}

	base := packageurl.PackageURL{
		Type:      parsed.Type,
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
	}

	return strings.ToLower(base.ToString()), nil
}

// IsVersionInRange reports whether version satisfies an npm style range such
// as "<1.2.6" or ">=1.0.0 <1.2.6 || <0.2.1". The second return value is false
// when either side cannot be parsed as semver.
func IsVersionInRange(version, versionRange string) (bool, bool) {
	if IsEmpty(versionRange) || versionRange == "unknown" {
		return false, false
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false, false
	}

	constraint, err := semver.NewConstraint(versionRange)
	if err != nil {
		return false, false
	}

	return constraint.Check(v), true
}
