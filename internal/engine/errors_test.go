package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := ConfigError("missing parameter %q", "spinup_parameters")
	assert.Equal(t, `CONFIGURATION: missing parameter "spinup_parameters"`, err.Error())

	err.Module = "spinup"
	err.Err = errors.New("variable not found")
	assert.Equal(t,
		`CONFIGURATION: missing parameter "spinup_parameters" (module=spinup): variable not found`,
		err.Error())
}

func TestError_Classification(t *testing.T) {
	wrapped := fmt.Errorf("unit 7: %w", DataQualityError("layer %q is not a record", "fire_layer"))

	assert.True(t, IsDataQualityError(wrapped))
	assert.False(t, IsConfigError(wrapped))
	assert.False(t, IsConfigError(errors.New("plain")))
}

func TestError_WithDetail(t *testing.T) {
	err := ConfigError("x").WithDetail("spatial_unit", "17")
	assert.Equal(t, "17", err.Details["spatial_unit"])
}
