package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
)

func TestPrintKeys(t *testing.T) {
	var buf bytes.Buffer
	printKeys(&buf, nil)
	assert.Equal(t, "No API keys found\n", buf.String())

	buf.Reset()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	printKeys(&buf, []models.APIKey{
		{Key: "0123456789abcdef", Name: "indexer", Active: true, CreatedAt: created},
		{Key: "short", Name: "old", Active: false, CreatedAt: created},
	})

	out := buf.String()
	assert.Contains(t, out, "01234567... indexer [active] created 2025-06-01")
	assert.Contains(t, out, "short... old [inactive]")
	assert.NotContains(t, out, "89abcdef")
}

func TestUsage(t *testing.T) {
	var buf bytes.Buffer
	usage(&buf)
	assert.Contains(t, buf.String(), "-create <name>")
	assert.Contains(t, buf.String(), "MONGODB_URI")
}
