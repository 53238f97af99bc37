package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunVersion(t *testing.T) {
	t.Setenv("PORTO_STATE", t.TempDir())
	t.Setenv("PORTO_TREE", t.TempDir())

	assert.Equal(t, 0, run([]string{"version"}))
}

func TestRunUnknownCommand(t *testing.T) {
	t.Setenv("PORTO_STATE", t.TempDir())
	t.Setenv("PORTO_TREE", t.TempDir())

	assert.Equal(t, 1, run([]string{"frobnicate"}))
}
