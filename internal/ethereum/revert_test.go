package ethereum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRevertReason_RoundTrip(t *testing.T) {
	data, err := EncodeRevertReason("Round not active")
	require.NoError(t, err)

	reason, ok := DecodeRevertReason(data)
	require.True(t, ok)
	assert.Equal(t, "Round not active", reason)
}

func TestDecodeRevertReason_Unknown(t *testing.T) {
	_, ok := DecodeRevertReason([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	assert.False(t, ok)

	_, ok = DecodeRevertReason(nil)
	assert.False(t, ok)
}

func TestReasonFromMessage(t *testing.T) {
	assert.Equal(t, "Already voted", reasonFromMessage("execution reverted: Already voted"))
	assert.Equal(t, "Already voted", reasonFromMessage("VM Exception while processing transaction: reverted with reason string 'Already voted'"))
	assert.Equal(t, "", reasonFromMessage("execution reverted"))
}

func TestRevertFromRPCError_NotRevert(t *testing.T) {
	assert.Nil(t, revertFromRPCError(-32000, "insufficient funds for gas", ""))
}

func TestRevertError_Message(t *testing.T) {
	assert.Equal(t, "execution reverted: x", (&RevertError{Reason: "x"}).Error())
	assert.Equal(t, "execution reverted", (&RevertError{}).Error())
	assert.Equal(t, "execution reverted: 0x0102", (&RevertError{Data: []byte{1, 2}}).Error())
}
