package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMSAASampleCountValid(t *testing.T) {
	assert.True(t, MSAAOff.Valid())
	assert.True(t, MSAA4x.Valid())
	assert.True(t, MSAA8x.Valid())
	assert.True(t, MSAA16x.Valid())
	assert.False(t, MSAASampleCount(0).Valid())
	assert.False(t, MSAASampleCount(2).Valid())
	assert.False(t, MSAASampleCount(32).Valid())
}
