package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EncodeBlock serializes a Block into the payload a leader hands to the
// shredder, reusing the same CBOR codec the process substrate's
// RemoteConn uses for framed messages (see process/remote.go) rather than
// inventing a second byte-level format for a structure spec.md does not
// give a fixed wire layout for.
func EncodeBlock(b Block) ([]byte, error) {
	data, err := cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding block: %w", err)
	}
	return data, nil
}

// DecodeBlock is the inverse of EncodeBlock, used by chain.State once a
// shredded block payload has been fully reconstructed.
func DecodeBlock(data []byte) (Block, error) {
	var b Block
	if err := cbor.Unmarshal(data, &b); err != nil {
		return Block{}, fmt.Errorf("wire: decoding block: %w", err)
	}
	return b, nil
}
