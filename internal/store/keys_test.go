package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "providers:hp1", providerKey("hp1"))
	assert.Equal(t, "providers:hp1:requests:req9", requestKey("hp1", "req9"))
	assert.Equal(t, "providers:hp1:requests:req9:responses", responsesKey("hp1", "req9"))
	assert.Equal(t, "donors:d42", donorKey("d42"))
	assert.Equal(t, "donors:d42:messages", donorMessagesKey("d42"))
}

func TestTerminalResponse(t *testing.T) {
	assert.True(t, terminalResponse("willing"))
	assert.True(t, terminalResponse("declined"))
	assert.False(t, terminalResponse("contacted"))
	assert.False(t, terminalResponse("responded"))
}
