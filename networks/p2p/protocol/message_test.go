package protocol

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeader(MessageKeepalive)
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, MessageKeepalive, got.Type)
	require.Equal(t, ProtocolVersion, got.VersionUsing)
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'X', 'X', 1, 1, 1, 1, 0, 0})
	_, err := DecodeHeader(buf)
	require.Equal(t, ErrBadMagic, err)
}

func TestKeepaliveRoundTrip(t *testing.T) {
	var k Keepalive
	for i := range k.Peers {
		k.Peers[i] = WireEndpoint{IP: net.ParseIP("::1"), Port: uint16(7075 + i)}
	}

	var buf bytes.Buffer
	require.NoError(t, k.Encode(&buf))

	h, err := DecodeHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, MessageKeepalive, h.Type)

	got, err := DecodeKeepalive(&buf, h)
	require.NoError(t, err)
	require.Equal(t, k.Peers[0].Port, got.Peers[0].Port)
}

func TestPublishRoundTrip(t *testing.T) {
	blk := &types.OpenBlock{
		SourceHash:     common.Hash{1},
		Representative: common.Account{2},
		OpenAccount:    common.Account{3},
	}
	p := Publish{Block: blk}

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))

	h, err := DecodeHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, MessagePublish, h.Type)

	got, err := DecodePublish(&buf, h)
	require.NoError(t, err)
	require.Equal(t, blk.Hash(), got.Block.Hash())
}

func TestConfirmAckRoundTrip(t *testing.T) {
	v := &types.Vote{
		Account:   common.Account{7},
		Sequence:  42,
		BlockHash: common.Hash{9},
	}
	v.Sig = common.Uint512{1, 2, 3}
	ack := ConfirmAck{Vote: v}

	var buf bytes.Buffer
	require.NoError(t, ack.Encode(&buf))

	h, err := DecodeHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, MessageConfirmAck, h.Type)

	got, err := DecodeConfirmAck(&buf, h)
	require.NoError(t, err)
	require.Equal(t, v.Account, got.Vote.Account)
	require.Equal(t, v.Sequence, got.Vote.Sequence)
	require.Equal(t, v.BlockHash, got.Vote.BlockHash)
}
