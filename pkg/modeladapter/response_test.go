package modeladapter_test

import (
	"strings"
	"testing"

	"github.com/germanamz/lamplighter/pkg/chats/content"
	"github.com/germanamz/lamplighter/pkg/chats/message"
	"github.com/germanamz/lamplighter/pkg/chats/role"
	"github.com/germanamz/lamplighter/pkg/modeladapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret_Final(t *testing.T) {
	r := modeladapter.Interpret(message.NewText("", role.Assistant, "All lights are off."))

	final, ok := r.(modeladapter.Final)
	require.True(t, ok)
	assert.Equal(t, "All lights are off.", final.Text)
}

func TestInterpret_ToolCalls(t *testing.T) {
	reply := message.New("", role.Assistant,
		content.Text{Text: "Checking."},
		content.ToolCall{ID: "c1", Name: "get_lights", Arguments: `{}`},
		content.ToolCall{ID: "c2", Name: "change_state", Arguments: `{"id":3,"isOn":true}`},
	)

	r := modeladapter.Interpret(reply)

	calls, ok := r.(modeladapter.ToolCalls)
	require.True(t, ok)
	assert.Equal(t, "Checking.", calls.Text)
	require.Len(t, calls.Requests, 2)
	assert.Equal(t, "c1", calls.Requests[0].ID)
	assert.Equal(t, "change_state", calls.Requests[1].Name)
}

func TestInterpret_FillsMissingIDs(t *testing.T) {
	reply := message.New("", role.Assistant,
		content.ToolCall{Name: "get_lights"},
		content.ToolCall{Name: "get_lights"},
	)

	calls, ok := modeladapter.Interpret(reply).(modeladapter.ToolCalls)
	require.True(t, ok)

	a, b := calls.Requests[0].ID, calls.Requests[1].ID
	assert.True(t, strings.HasPrefix(a, "call_"))
	assert.True(t, strings.HasPrefix(b, "call_"))
	assert.NotEqual(t, a, b)

	assert.Empty(t, reply.ToolCalls()[0].ID, "the reply itself is not modified")
}
