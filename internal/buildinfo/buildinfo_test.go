package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextVersion(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{"nil context", nil, UnknownValue},
		{"empty version", NewContext("", "2026-01-01"), UnknownValue},
		{"valid version", NewContext("1.0.0", "2026-01-01"), "1.0.0"},
		{"pre-release tag", NewContext("1.1.0-rc.1", ""), "1.1.0-rc.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContextString(t *testing.T) {
	assert.Equal(t, "1.0.0 (built 2026-01-01)", NewContext("1.0.0", "2026-01-01").String())
	assert.Equal(t, "unknown (built unknown)", (*Context)(nil).String())
}
