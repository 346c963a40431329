package audiobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AudioAt_GrowsAndZeroInitializes(t *testing.T) {
	p := NewPool(64)
	buf := p.AudioAt(2)
	require.Len(t, buf.Samples, 64)
	for _, s := range buf.Samples {
		assert.Equal(t, float32(0), s)
	}
	numAudio, _, _ := p.Counts()
	assert.Equal(t, 3, numAudio)
}

func TestPool_SetSizes_TruncatesAndRegrows(t *testing.T) {
	p := NewPool(32)
	p.SetSizes(4, 2, 1)
	numAudio, numNote, numAutomation := p.Counts()
	assert.Equal(t, 4, numAudio)
	assert.Equal(t, 2, numNote)
	assert.Equal(t, 1, numAutomation)

	p.SetSizes(1, 0, 0)
	numAudio, numNote, numAutomation = p.Counts()
	assert.Equal(t, 1, numAudio)
	assert.Equal(t, 0, numNote)
	assert.Equal(t, 0, numAutomation)

	p.SetSizes(3, 1, 1)
	numAudio, numNote, numAutomation = p.Counts()
	assert.Equal(t, 3, numAudio)
	assert.Equal(t, 1, numNote)
	assert.Equal(t, 1, numAutomation)
}

func TestPool_At_DispatchesByKind(t *testing.T) {
	p := NewPool(16)
	audio, ok := p.At(BufferID{Kind: KindAudio, Index: 0}).(*AudioBuffer)
	require.True(t, ok)
	assert.Len(t, audio.Samples, 16)

	note, ok := p.At(BufferID{Kind: KindNote, Index: 0}).(*NoteBuffer)
	require.True(t, ok)
	assert.Empty(t, note.Events)

	automation, ok := p.At(BufferID{Kind: KindAutomation, Index: 0}).(*AutomationBuffer)
	require.True(t, ok)
	assert.Empty(t, automation.Events)
}

func TestAudioBuffer_Clear(t *testing.T) {
	b := &AudioBuffer{Samples: []float32{1, 2, 3}, IsConstant: false}
	b.Clear()
	assert.Equal(t, []float32{0, 0, 0}, b.Samples)
	assert.True(t, b.IsConstant)
}

func TestPool_NoteAndAutomationAt_PreallocateEventCapacity(t *testing.T) {
	p := NewPoolWithEventCapacity(16, 32)

	note := p.NoteAt(0)
	assert.Empty(t, note.Events)
	assert.Equal(t, 32, cap(note.Events), "note buffer should pre-size Events so typical blocks never grow-reallocate it")

	automation := p.AutomationAt(0)
	assert.Empty(t, automation.Events)
	assert.Equal(t, 32, cap(automation.Events))
}

func TestNoteBuffer_Clear_RetainsBackingArray(t *testing.T) {
	b := &NoteBuffer{Events: make([]NoteEvent, 0, 8)}
	b.Events = append(b.Events, NoteEvent{FrameOffset: 1}, NoteEvent{FrameOffset: 2})
	b.Clear()
	assert.Empty(t, b.Events)
	assert.Equal(t, 8, cap(b.Events))
}
