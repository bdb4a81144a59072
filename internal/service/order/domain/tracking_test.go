package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingChecksum(t *testing.T) {
	// 1*1 + 2*3 + 3*1 + 4*3 + 5*1 + 6*3 + 7*1 + 8*3 + 9*1 + 0*3 = 85 -> check 5
	assert.Equal(t, 5, TrackingChecksum([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 0}))
	// weighted sum already a multiple of ten yields check 0, not 10
	assert.Equal(t, 0, TrackingChecksum([]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}))
	assert.Equal(t, 0, TrackingChecksum([]int{5, 5, 5, 5, 5, 5, 0, 0, 0, 0}))
}

func TestGenerateTrackingID(t *testing.T) {
	id := GenerateTrackingID("UPS")

	require.True(t, strings.HasPrefix(id, "UPS-"))
	assert.Len(t, id, len("UPS-")+11)
	assert.True(t, ValidTrackingID(id))

	// fresh IDs should not collide in practice
	assert.NotEqual(t, id, GenerateTrackingID("UPS"))
}

func TestValidTrackingID(t *testing.T) {
	assert.True(t, ValidTrackingID("UPS-12345678905"))

	cases := map[string]string{
		"corrupted digit":   "UPS-12345678915",
		"wrong check digit": "UPS-12345678904",
		"payload too short": "UPS-1234567890",
		"payload too long":  "UPS-123456789055",
		"no carrier prefix": "12345678905",
		"non-digit payload": "UPS-12345X78905",
		"empty":             "",
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, ValidTrackingID(id))
		})
	}
}
