package slack_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmelnikov/slackvault/internal/slack"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		ts      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "whole seconds",
			ts:   "1609459200.000000",
			want: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "fractional seconds",
			ts:   "1609459200.500000",
			want: time.Date(2021, 1, 1, 0, 0, 0, 500000000, time.UTC),
		},
		{
			name: "no fraction",
			ts:   "1609459200",
			want: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "not a number",
			ts:      "not-a-timestamp",
			wantErr: true,
		},
		{
			name:    "empty",
			ts:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := slack.ParseTimestamp(tt.ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestampDeterministic(t *testing.T) {
	first, err := slack.ParseTimestamp("1712345678.123456")
	require.NoError(t, err)

	second, err := slack.ParseTimestamp("1712345678.123456")
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestParseOptionalTimestamp(t *testing.T) {
	got, err := slack.ParseOptionalTimestamp("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = slack.ParseOptionalTimestamp("1609459200.000000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), *got)

	_, err = slack.ParseOptionalTimestamp("garbage")
	assert.Error(t, err)
}
