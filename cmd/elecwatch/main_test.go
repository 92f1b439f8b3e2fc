package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/elecwatch/internal/models"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitConfig, exitCode(configError(errors.New("bad"))))
	assert.Equal(t, exitSave, exitCode(&exitError{code: exitSave, err: errors.New("disk full")}))
	assert.Equal(t, exitConfig, exitCode(errors.New("unknown flag")))
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "unknown", formatHours(models.Sentinel))
	assert.Equal(t, "9.5", formatHours(9.5))
}
