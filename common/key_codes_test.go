package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyCodesMatchGLFW(t *testing.T) {
	assert.Equal(t, Key('W'), KeyW)
	assert.Equal(t, Key('A'), KeyA)
	assert.Equal(t, Key(' '), KeySpace)
	assert.Equal(t, Key(256), KeyEsc)
}

func TestKeyPrintable(t *testing.T) {
	assert.True(t, KeyW.Printable())
	assert.True(t, KeySpace.Printable())
	assert.False(t, KeyEsc.Printable())
	assert.False(t, KeyLeftShift.Printable())
}
