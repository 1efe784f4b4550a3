package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("HDDT_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnvOrDefault("HDDT_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("HDDT_TEST_MISSING", "fallback"))
}

func TestDebugEnabled(t *testing.T) {
	assert.False(t, DebugEnabled())

	t.Setenv("HDDT_DEBUG", "true")
	assert.True(t, DebugEnabled())

	t.Setenv("HDDT_DEBUG", "0")
	assert.False(t, DebugEnabled())

	t.Setenv("HDDT_DEBUG", "not-a-bool")
	assert.False(t, DebugEnabled())
}
