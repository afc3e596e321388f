package logging

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStatementRedactsPasswords(t *testing.T) {
	out := SanitizeStatement("SELECT 1; -- password=hunter2 more")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, RedactedText)
}

func TestSanitizeStatementTruncates(t *testing.T) {
	stmt := strings.Repeat("SELECT ", 200)
	out := SanitizeStatement(stmt)
	assert.LessOrEqual(t, len(out), MaxStatementLogLength+3)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestSanitizeErrorRedactsSecrets(t *testing.T) {
	err := errors.New("connect postgres://ops:s3cret@db:5432/x failed with Bearer aaa.bbb.ccc and password=oops")
	out := SanitizeError(err)

	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "aaa.bbb.ccc")
	assert.NotContains(t, out, "oops")
}

func TestSanitizeErrorNil(t *testing.T) {
	assert.Equal(t, "", SanitizeError(nil))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "lon...", TruncateString("longer", 3))
}
