package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarviscal/internal/model"
)

func TestTranscriptKeysAreUniqueUUIDs(t *testing.T) {
	tr := NewTranscript()
	a := tr.AddUser("hi")
	b := tr.AddAssistant("hello")

	assert.NotEqual(t, a.Key, b.Key)
	_, err := uuid.Parse(a.Key)
	assert.NoError(t, err)
	assert.Equal(t, model.RoleUser, a.Role)
	assert.Equal(t, model.RoleAssistant, b.Role)
	assert.False(t, a.Timestamp.IsZero())
}

func TestTranscriptStreamingAccumulates(t *testing.T) {
	tr := NewTranscript()
	tr.AddUser("tell me")
	tr.AppendChunk("Once ")
	tr.AppendChunk("upon ")
	tr.AppendChunk("a time")

	msg, ok := tr.FinishStream()
	require.True(t, ok)
	assert.Equal(t, "Once upon a time", msg.Content)
	assert.Equal(t, 2, tr.Len())

	_, ok = tr.FinishStream()
	assert.False(t, ok)

	// A new turn opens a new message.
	tr.AppendChunk("Again")
	msg, ok = tr.FinishStream()
	require.True(t, ok)
	assert.Equal(t, "Again", msg.Content)
	assert.Equal(t, 3, tr.Len())
}

func TestTranscriptMessagesIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.AddUser("x")
	msgs := tr.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "x", tr.Messages()[0].Content)

	tr.Reset()
	assert.Zero(t, tr.Len())
}
