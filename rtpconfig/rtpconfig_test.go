package rtpconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRTPConfiguration(t *testing.T) {
	cfg := DefaultRTPConfiguration()
	assert.Equal(t, 3478, cfg.ICEStunPort)
	assert.False(t, cfg.UseSRTP)
	assert.False(t, cfg.SRTPForced)
	assert.False(t, cfg.UseICE)
	assert.Empty(t, cfg.LocalRTPAddress)
	assert.Empty(t, cfg.ICEStunAddress)
}
