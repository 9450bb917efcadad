package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Error("Failed to load configuration", "bad level")
	p.Info("Target", "alice")
	p.Success("done")

	assert.Equal(t, "Failed to load configuration: bad level\nTarget: alice\ndone\n", buf.String())
}

func TestPrinterColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetColor(true)

	p.Success("done")
	assert.Equal(t, green+"done"+reset+"\n", buf.String())
}

func TestPrinterQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetQuiet(true)

	p.Info("Target", "alice")
	p.Warning("careful")
	p.Error("broken")

	assert.Equal(t, "broken\n", buf.String())
}
