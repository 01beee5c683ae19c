package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusScanning.Terminal())
	assert.True(t, StatusClean.Terminal())
	assert.True(t, StatusQuarantined.Terminal())
	assert.True(t, StatusRejected.Terminal())
}

func TestShareValid(t *testing.T) {
	now := time.Now()
	used := now.Add(-time.Minute)

	tests := []struct {
		name  string
		share Share
		want  bool
	}{
		{
			name:  "active",
			share: Share{ExpiresAt: now.Add(time.Hour)},
			want:  true,
		},
		{
			name:  "expired",
			share: Share{ExpiresAt: now.Add(-time.Hour)},
			want:  false,
		},
		{
			name:  "one-time unused",
			share: Share{ExpiresAt: now.Add(time.Hour), OneTimeUse: true},
			want:  true,
		},
		{
			name:  "one-time used",
			share: Share{ExpiresAt: now.Add(time.Hour), OneTimeUse: true, UsedAt: &used},
			want:  false,
		},
		{
			name:  "reusable after use",
			share: Share{ExpiresAt: now.Add(time.Hour), UsedAt: &used},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.share.Valid(now))
		})
	}
}
