package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitDefaults(t *testing.T) {
	err := Init()
	assert.NoError(t, err)

	conf := GetConfig()
	assert.Equal(t, DEVELOPMENT, conf.Env)
	assert.Equal(t, 4, conf.NumUserRoutines)
	assert.Equal(t, 7, conf.AttributionLookbackDays)
	assert.Equal(t, "max", conf.ConversionDedupePolicy)
	assert.True(t, IsDevelopment())
}

func TestInitOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("NUM_USER_ROUTINES", "16")
	t.Setenv("CONVERSION_DEDUPE_POLICY", "last")

	err := Init()
	assert.NoError(t, err)

	conf := GetConfig()
	assert.Equal(t, "production", conf.Env)
	assert.Equal(t, 16, conf.NumUserRoutines)
	assert.Equal(t, "last", conf.ConversionDedupePolicy)
	assert.False(t, IsDevelopment())
}

func TestInitClampsUserRoutines(t *testing.T) {
	t.Setenv("NUM_USER_ROUTINES", "0")

	err := Init()
	assert.NoError(t, err)
	assert.Equal(t, 1, GetConfig().NumUserRoutines)
}
