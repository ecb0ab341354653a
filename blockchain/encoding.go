package blockchain

import (
	"encoding/binary"

	"github.com/ravine-network/ravine/blockchain/types"
)

// Account and pending records are stored as fixed-width binary, the same
// convention the block wire codec uses, since every field here has a
// statically known size.

func encodeAccountInfo(info types.AccountInfo) []byte {
	buf := make([]byte, 32+32+32+32+8+8+1)
	off := 0
	copy(buf[off:], info.Head[:])
	off += 32
	copy(buf[off:], info.Representative[:])
	off += 32
	copy(buf[off:], info.OpenBlock[:])
	off += 32
	copy(buf[off:], info.Balance[:])
	off += 32
	binary.BigEndian.PutUint64(buf[off:], info.ModifiedAt)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], info.BlockCount)
	off += 8
	buf[off] = info.Epoch
	return buf
}

func decodeAccountInfo(raw []byte) types.AccountInfo {
	var info types.AccountInfo
	off := 0
	copy(info.Head[:], raw[off:off+32])
	off += 32
	copy(info.Representative[:], raw[off:off+32])
	off += 32
	copy(info.OpenBlock[:], raw[off:off+32])
	off += 32
	copy(info.Balance[:], raw[off:off+32])
	off += 32
	info.ModifiedAt = binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	info.BlockCount = binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	info.Epoch = raw[off]
	return info
}

func encodePendingInfo(info types.PendingInfo) []byte {
	buf := make([]byte, 32+32+1)
	copy(buf[0:32], info.Source[:])
	copy(buf[32:64], info.Amount[:])
	buf[64] = info.Epoch
	return buf
}

func decodePendingInfo(raw []byte) types.PendingInfo {
	var info types.PendingInfo
	copy(info.Source[:], raw[0:32])
	copy(info.Amount[:], raw[32:64])
	info.Epoch = raw[64]
	return info
}
