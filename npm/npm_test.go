package npm

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNpm writes a shell script standing in for npm that prints body and exits with code
func fakeNpm(t *testing.T, body string, code int) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	dir := t.TempDir()
	payload := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(payload, []byte(body), 0o644))

	script := filepath.Join(dir, "npm")
	content := "#!/bin/sh\ncat '" + payload + "'\nexit " + strconv.Itoa(code) + "\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))
	return script
}

func TestRunNotFound(t *testing.T) {
	r := NewRunner("", nil)
	r.Binary = "nonexistentcommand12345"

	res, err := r.Run(context.Background(), "ls")
	assert.Error(t, err)
	assert.Equal(t, ExitNotFound, res.ExitCode)

	_, err = r.Tree(context.Background())
	assert.Error(t, err)
}

func TestRunTimeout(t *testing.T) {
	if _, err := os.Stat("/bin/sleep"); err != nil {
		t.Skip("sleep command not found, skipping timeout test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	r := NewRunner("", nil)
	r.Binary = "/bin/sleep"
	res, _ := r.Run(ctx, "2")

	assert.Equal(t, ExitTimeout, res.ExitCode)
}

func TestAuditAcceptsNonZeroExit(t *testing.T) {
	r := NewRunner(t.TempDir(), nil)
	r.Binary = fakeNpm(t, `{"auditReportVersion":2,"vulnerabilities":{"qs":{"name":"qs","severity":"high","via":["qs"]}}}`, 1)

	report, err := r.Audit(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.Vulnerabilities, "qs")
}

func TestTreeDecodesOutput(t *testing.T) {
	r := NewRunner(t.TempDir(), nil)
	r.Binary = fakeNpm(t, `{"name":"app","dependencies":{"qs":{"version":"6.7.0"}}}`, 0)

	tree, err := r.Tree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "qs", tree.Children["qs"].Name)
}

func TestEmptyOutputIsError(t *testing.T) {
	r := NewRunner(t.TempDir(), nil)
	r.Binary = fakeNpm(t, "", 1)

	_, err := r.Audit(context.Background())
	assert.Error(t, err)
}
