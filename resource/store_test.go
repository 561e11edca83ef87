package resource

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndGet(t *testing.T) {
	s := NewStore()

	h := s.Publish(SlotInput, "clip.mov", "video/quicktime", []byte("bytes"))
	require.NotEmpty(t, h.Token)

	got, ok := s.Get(h.Token)
	require.True(t, ok)
	assert.Equal(t, "clip.mov", got.Name)
	assert.Equal(t, "video/quicktime", got.MIME)
	assert.Equal(t, []byte("bytes"), got.Data)
}

func TestPublishSupersedesSlot(t *testing.T) {
	s := NewStore()

	first := s.Publish(SlotOutput, "a.mp4", "video/mp4", []byte("a"))
	second := s.Publish(SlotOutput, "b.mp4", "video/mp4", []byte("b"))

	_, ok := s.Get(first.Token)
	assert.False(t, ok, "superseded handle must be revoked")

	got, ok := s.Get(second.Token)
	require.True(t, ok)
	assert.Equal(t, "b.mp4", got.Name)
	assert.Equal(t, 1, s.Live())
}

func TestAtMostOneHandlePerSlot(t *testing.T) {
	s := NewStore()

	for i := 0; i < 10; i++ {
		s.Publish(SlotInput, fmt.Sprintf("in%d.mov", i), "video/quicktime", nil)
		s.Publish(SlotOutput, fmt.Sprintf("out%d.mp4", i), "video/mp4", nil)
	}

	assert.Equal(t, 2, s.Live())
}

func TestRevoke(t *testing.T) {
	s := NewStore()

	h := s.Publish(SlotInput, "clip.mov", "video/quicktime", nil)
	assert.True(t, s.Revoke(SlotInput))
	assert.False(t, s.Revoke(SlotInput))

	_, ok := s.Get(h.Token)
	assert.False(t, ok)
}

func TestRevokeAll(t *testing.T) {
	s := NewStore()

	s.Publish(SlotInput, "clip.mov", "video/quicktime", nil)
	s.Publish(SlotOutput, "out.mp4", "video/mp4", nil)

	s.RevokeAll()
	assert.Equal(t, 0, s.Live())

	_, ok := s.Current(SlotInput)
	assert.False(t, ok)
	_, ok = s.Current(SlotOutput)
	assert.False(t, ok)
}
