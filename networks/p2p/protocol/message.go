// Package protocol implements the node's wire framing: a fixed message
// header followed by a message-specific body, mirroring the corpus's own
// layered codec approach (a small fixed header struct, then a per-message
// body decoded against the header's declared type) even though the corpus
// itself has no peer wire protocol of this shape — this package is written
// in its idiom (explicit Encode/Decode methods, io.Reader/io.Writer framing,
// errors.New for malformed input) rather than ported from anywhere in it.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"net"

	"github.com/ravine-network/ravine/blockchain/types"
	"github.com/ravine-network/ravine/common"
)

// magic identifies the wire protocol; every header begins with these two
// bytes so a stray connection from an unrelated protocol is rejected fast.
var magic = [2]byte{'R', 'A'}

// ProtocolVersion is this node's implementation version; ProtocolVersionMin is the
// oldest version it will still exchange messages with.
const (
	ProtocolVersion    uint8 = 1
	ProtocolVersionMin uint8 = 1
)

// MessageType tags the body that follows a Header.
type MessageType uint8

const (
	MessageInvalid    MessageType = 0
	MessageKeepalive  MessageType = 2
	MessagePublish    MessageType = 3
	MessageConfirmReq MessageType = 4
	MessageConfirmAck MessageType = 5
)

// keepaliveEndpointCount is how many peer endpoints one keepalive message
// carries, matching the original protocol's fixed batch size.
const keepaliveEndpointCount = 8

var ErrBadMagic = errors.New("protocol: bad magic bytes")
var ErrTruncated = errors.New("protocol: truncated message")
var ErrUnsupportedVersion = errors.New("protocol: peer version too old")

// Header precedes every message on the wire: 8 bytes fixed, with the
// trailing byte reused as the block type for publish messages, the block
// type being the only variable a wire reader must know up front.
type Header struct {
	VersionMax   uint8
	VersionUsing uint8
	VersionMin   uint8
	Type         MessageType
	Extensions   uint16
	BlockType    types.BlockType
}

func (h Header) Encode(w io.Writer) error {
	buf := [8]byte{
		magic[0], magic[1],
		h.VersionMax, h.VersionUsing, h.VersionMin,
		byte(h.Type),
		byte(h.Extensions), byte(h.Extensions >> 8),
	}
	_, err := w.Write(buf[:])
	return err
}

func DecodeHeader(r io.Reader) (Header, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, ErrTruncated
	}
	if buf[0] != magic[0] || buf[1] != magic[1] {
		return Header{}, ErrBadMagic
	}
	h := Header{
		VersionMax:   buf[2],
		VersionUsing: buf[3],
		VersionMin:   buf[4],
		Type:         MessageType(buf[5]),
		Extensions:   uint16(buf[6]) | uint16(buf[7])<<8,
	}
	if h.VersionUsing < ProtocolVersionMin {
		return Header{}, ErrUnsupportedVersion
	}
	if h.Type == MessagePublish {
		h.BlockType = types.BlockType(buf[7])
	}
	return h, nil
}

// NewHeader builds a header advertising this node's version range for msg.
func NewHeader(msg MessageType) Header {
	return Header{
		VersionMax:   ProtocolVersion,
		VersionUsing: ProtocolVersion,
		VersionMin:   ProtocolVersionMin,
		Type:         msg,
	}
}

// WireEndpoint is an IPv6 address (v4 addresses are mapped) plus port, the
// fixed 18-byte shape a keepalive message batches eight of.
type WireEndpoint struct {
	IP   net.IP
	Port uint16
}

func (e WireEndpoint) encode(w io.Writer) error {
	ip16 := e.IP.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}
	var buf [18]byte
	copy(buf[:16], ip16)
	binary.BigEndian.PutUint16(buf[16:], e.Port)
	_, err := w.Write(buf[:])
	return err
}

func decodeWireEndpoint(r io.Reader) (WireEndpoint, error) {
	var buf [18]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return WireEndpoint{}, ErrTruncated
	}
	ip := make(net.IP, 16)
	copy(ip, buf[:16])
	return WireEndpoint{IP: ip, Port: binary.BigEndian.Uint16(buf[16:])}, nil
}

// Keepalive gossips a fixed batch of peer endpoints; flooding these among
// connected peers is this network's only peer-discovery mechanism (no DHT).
type Keepalive struct {
	Peers [keepaliveEndpointCount]WireEndpoint
}

func (k Keepalive) Encode(w io.Writer) error {
	if err := NewHeader(MessageKeepalive).Encode(w); err != nil {
		return err
	}
	for _, p := range k.Peers {
		if err := p.encode(w); err != nil {
			return err
		}
	}
	return nil
}

func DecodeKeepalive(r io.Reader, h Header) (Keepalive, error) {
	var k Keepalive
	for i := range k.Peers {
		p, err := decodeWireEndpoint(r)
		if err != nil {
			return Keepalive{}, err
		}
		k.Peers[i] = p
	}
	return k, nil
}

// Publish announces a newly processed block to peers.
type Publish struct {
	Block types.Block
}

func (p Publish) Encode(w io.Writer) error {
	raw := types.EncodeBlock(p.Block)
	h := NewHeader(MessagePublish)
	h.BlockType = p.Block.Type()
	if err := h.encodeWithBlockType(w); err != nil {
		return err
	}
	_, err := w.Write(raw)
	return err
}

func (h Header) encodeWithBlockType(w io.Writer) error {
	buf := [8]byte{
		magic[0], magic[1],
		h.VersionMax, h.VersionUsing, h.VersionMin,
		byte(h.Type),
		byte(h.Extensions), byte(h.BlockType),
	}
	_, err := w.Write(buf[:])
	return err
}

// DecodePublish reads the block body following a publish header. The body
// carries its own leading block-type byte (written by EncodeBlock), which
// is redundant with the header's BlockType field, kept there only so a
// receiver inspecting just the header can route the message without
// buffering the body first.
func DecodePublish(r io.Reader, h Header) (Publish, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return Publish{}, ErrTruncated
	}
	blk, err := types.DecodeBlock(raw)
	if err != nil {
		return Publish{}, err
	}
	return Publish{Block: blk}, nil
}

// ConfirmReq asks peers to vote on which of root's candidates they
// consider valid, naming every block currently competing.
type ConfirmReq struct {
	Blocks []types.Block
}

func (c ConfirmReq) Encode(w io.Writer) error {
	if err := NewHeader(MessageConfirmReq).Encode(w); err != nil {
		return err
	}
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(c.Blocks)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	for _, blk := range c.Blocks {
		raw := types.EncodeBlock(blk)
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(raw)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}
	return nil
}

func DecodeConfirmReq(r io.Reader, h Header) (ConfirmReq, error) {
	var countBuf [2]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return ConfirmReq{}, ErrTruncated
	}
	count := binary.BigEndian.Uint16(countBuf[:])

	out := ConfirmReq{Blocks: make([]types.Block, 0, count)}
	for i := uint16(0); i < count; i++ {
		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return ConfirmReq{}, ErrTruncated
		}
		raw := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
		if _, err := io.ReadFull(r, raw); err != nil {
			return ConfirmReq{}, ErrTruncated
		}
		blk, err := types.DecodeBlock(raw)
		if err != nil {
			return ConfirmReq{}, err
		}
		out.Blocks = append(out.Blocks, blk)
	}
	return out, nil
}

// ConfirmAck carries a signed vote in response to a confirm_req.
type ConfirmAck struct {
	Vote *types.Vote
}

func (c ConfirmAck) Encode(w io.Writer) error {
	if err := NewHeader(MessageConfirmAck).Encode(w); err != nil {
		return err
	}
	var buf [32 + 64 + 8 + 32]byte
	copy(buf[0:32], c.Vote.Account.Bytes())
	copy(buf[32:96], c.Vote.Sig.Bytes())
	binary.BigEndian.PutUint64(buf[96:104], c.Vote.Sequence)
	copy(buf[104:136], c.Vote.BlockHash.Bytes())
	_, err := w.Write(buf[:])
	return err
}

func DecodeConfirmAck(r io.Reader, h Header) (ConfirmAck, error) {
	var buf [32 + 64 + 8 + 32]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ConfirmAck{}, ErrTruncated
	}
	v := &types.Vote{
		Account:   common.BytesToUint256(buf[0:32]),
		Sequence:  binary.BigEndian.Uint64(buf[96:104]),
		BlockHash: common.BytesToHash(buf[104:136]),
	}
	copy(v.Sig[:], buf[32:96])
	return ConfirmAck{Vote: v}, nil
}
