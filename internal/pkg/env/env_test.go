package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	t.Setenv("COACHHUB_TEST_KEY", "from-os")
	Env = map[string]string{"COACHHUB_TEST_KEY": "from-file"}
	defer func() { Env = nil }()

	assert.Equal(t, "from-file", GetEnv("COACHHUB_TEST_KEY", "def"))
}

func TestGetEnvFallsBackToOSAndDefault(t *testing.T) {
	Env = nil
	t.Setenv("COACHHUB_TEST_KEY", "from-os")

	assert.Equal(t, "from-os", GetEnv("COACHHUB_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("COACHHUB_TEST_MISSING", "def"))
}

func TestGetEnvInt(t *testing.T) {
	Env = map[string]string{"A": "42", "B": "nope"}
	defer func() { Env = nil }()

	assert.Equal(t, 42, GetEnvInt("A", 1))
	assert.Equal(t, 7, GetEnvInt("B", 7))
	assert.Equal(t, 9, GetEnvInt("C", 9))
}

func TestGetEnvBool(t *testing.T) {
	Env = map[string]string{"ON": "true", "OFF": "0", "BAD": "maybe"}
	defer func() { Env = nil }()

	assert.True(t, GetEnvBool("ON", false))
	assert.False(t, GetEnvBool("OFF", true))
	assert.True(t, GetEnvBool("BAD", true))
	assert.False(t, GetEnvBool("MISSING", false))
}
