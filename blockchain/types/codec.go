package types

import (
	"bytes"
	"fmt"

	"github.com/ravine-network/ravine/common"
)

// Wire encoding is fixed-width binary rather than a self-describing format
// like RLP: every block variant has a statically known field layout, so
// there is no arbitrary-arity list to encode and a length-prefixed scheme
// would only add overhead for no benefit. The one-byte BlockType tag at the
// front lets Decode recover the variant without external context.

// EncodeBlock serializes a block into its wire representation.
func EncodeBlock(b Block) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(b.Type()))

	switch blk := b.(type) {
	case *SendBlock:
		buf.Write(blk.PreviousHash[:])
		buf.Write(blk.Destination[:])
		buf.Write(blk.Balance[:])
	case *ReceiveBlock:
		buf.Write(blk.PreviousHash[:])
		buf.Write(blk.SourceHash[:])
	case *OpenBlock:
		buf.Write(blk.SourceHash[:])
		buf.Write(blk.Representative[:])
		buf.Write(blk.OpenAccount[:])
	case *ChangeBlock:
		buf.Write(blk.PreviousHash[:])
		buf.Write(blk.Representative[:])
	case *StateBlock:
		buf.Write(blk.StateAccount[:])
		buf.Write(blk.PreviousHash[:])
		buf.Write(blk.Representative[:])
		buf.Write(blk.Balance[:])
		buf.Write(blk.Link[:])
	}

	sig := b.Signature()
	buf.Write(sig[:])
	var workBytes [8]byte
	w := uint64(b.Work())
	for i := 0; i < 8; i++ {
		workBytes[i] = byte(w >> (8 * uint(i)))
	}
	buf.Write(workBytes[:])

	return buf.Bytes()
}

// DecodeBlock parses a wire-format block, returning the concrete variant
// behind the Block interface.
func DecodeBlock(data []byte) (Block, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("blockchain/types: empty block payload")
	}
	t := BlockType(data[0])
	r := bytes.NewReader(data[1:])

	var block Block
	switch t {
	case BlockTypeSend:
		var blk SendBlock
		if err := readFields(r, blk.PreviousHash[:], blk.Destination[:], blk.Balance[:]); err != nil {
			return nil, err
		}
		block = &blk
	case BlockTypeReceive:
		var blk ReceiveBlock
		if err := readFields(r, blk.PreviousHash[:], blk.SourceHash[:]); err != nil {
			return nil, err
		}
		block = &blk
	case BlockTypeOpen:
		var blk OpenBlock
		if err := readFields(r, blk.SourceHash[:], blk.Representative[:], blk.OpenAccount[:]); err != nil {
			return nil, err
		}
		block = &blk
	case BlockTypeChange:
		var blk ChangeBlock
		if err := readFields(r, blk.PreviousHash[:], blk.Representative[:]); err != nil {
			return nil, err
		}
		block = &blk
	case BlockTypeState:
		var blk StateBlock
		if err := readFields(r, blk.StateAccount[:], blk.PreviousHash[:], blk.Representative[:], blk.Balance[:], blk.Link[:]); err != nil {
			return nil, err
		}
		block = &blk
	default:
		return nil, fmt.Errorf("blockchain/types: unknown block type %d", t)
	}

	var sig common.Uint512
	if err := readFields(r, sig[:]); err != nil {
		return nil, err
	}
	block.SetSignature(sig)

	var workBytes [8]byte
	if err := readFields(r, workBytes[:]); err != nil {
		return nil, err
	}
	var w uint64
	for i := 0; i < 8; i++ {
		w |= uint64(workBytes[i]) << (8 * uint(i))
	}
	block.SetWork(common.Work(w))

	return block, nil
}

func readFields(r *bytes.Reader, fields ...[]byte) error {
	for _, f := range fields {
		n, err := r.Read(f)
		if err != nil || n != len(f) {
			return fmt.Errorf("blockchain/types: truncated block payload")
		}
	}
	return nil
}
