package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2032-02-02")
	require.NoError(t, err)
	assert.Equal(t, "2032-02-02", d.ISOFormat())

	_, err = ParseDate("02/02/2032")
	assert.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	d, _ := ParseDate("2032-02-02")

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2032-02-02"`, string(raw))

	var parsed Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-08-31"`), &parsed))
	assert.Equal(t, "2026-08-31", parsed.ISOFormat())
}
