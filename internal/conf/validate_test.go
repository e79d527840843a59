package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings(t *testing.T) *Settings {
	t.Helper()
	settings := &Settings{}
	require.NoError(t, initTestViper().Unmarshal(settings))
	return settings
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"offload sample rate", func(s *Settings) { s.Offload.SampleRate = 1000 }, "offload sample rate"},
		{"zero buffer size", func(s *Settings) { s.Offload.BufferSize = 0 }, "buffer size"},
		{"worker mode", func(s *Settings) { s.Offload.Worker.Mode = "remote" }, "worker mode"},
		{"negative concurrency", func(s *Settings) { s.Offload.Worker.Concurrency = -2 }, "concurrency"},
		{"capture channels", func(s *Settings) { s.Capture.Channels = 6 }, "channels"},
		{"silence threshold", func(s *Settings) { s.Capture.SilenceThreshold = 2 }, "silence threshold"},
		{"recording limit", func(s *Settings) { s.Capture.Recording.MaxFileSize = -1 }, "recording limits"},
		{"web port", func(s *Settings) { s.WebServer.Port = "http" }, "web server port"},
		{"disabled web port ignored", func(s *Settings) {
			s.WebServer.Enabled = false
			s.WebServer.Port = "http"
		}, ""},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "DSN is required"},
		{"sentry bad dsn", func(s *Settings) {
			s.Sentry.Enabled = true
			s.Sentry.DSN = "ftp://example"
		}, "http(s) URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			settings := validSettings(t)
			tt.mutate(settings)

			err := ValidateSettings(settings)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationErrorCollectsSections(t *testing.T) {
	t.Parallel()

	settings := validSettings(t)
	settings.Offload.BufferSize = 0
	settings.Capture.BitsPerSample = 8

	err := ValidateSettings(settings)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}
