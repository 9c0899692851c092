package refresh

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelsAndWriters(t *testing.T) {
	var out, errw bytes.Buffer
	l := NewDefaultLogger("refresh", false)
	l.out = &out
	l.err = &errw

	l.Infof("loaded %d surfaces", 42)
	l.Warnf("missing skin")
	l.Errorf("device lost")
	l.Debugf("hidden")

	assert.Contains(t, out.String(), "INFO")
	assert.Contains(t, out.String(), "loaded 42 surfaces")
	assert.Contains(t, out.String(), "[refresh]")
	assert.NotContains(t, out.String(), "hidden", "debug suppressed while the gate is off")

	assert.Contains(t, errw.String(), "WARN")
	assert.Contains(t, errw.String(), "ERROR")

	l.SetDebug(true)
	l.Debugf("now visible")
	assert.Contains(t, out.String(), "now visible")
}

func TestTaggedSharesGateAndWriters(t *testing.T) {
	var out bytes.Buffer
	root := NewDefaultLogger("refresh", false)
	root.out = &out

	child := Tagged(root, "render")
	child.Infof("pass done")
	assert.Contains(t, out.String(), "[refresh/render]")

	// Flipping debug on the child (vk_log handler) gates the root too.
	child.SetDebug(true)
	assert.True(t, root.DebugEnabled())
	root.Debugf("shared gate")
	assert.True(t, strings.Contains(out.String(), "shared gate"))

	// Non-default loggers pass through unchanged.
	nop := NewNopLogger()
	assert.Equal(t, nop, Tagged(nop, "x"))
}
