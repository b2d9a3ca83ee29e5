package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sltlabs/slt-node/internal/cryptoprim"
)

// MaxDatagram is the MTU enforced on every gossip datagram.
const MaxDatagram = 1280

// Magic is the fixed 8-byte prefix every gossip datagram must begin with.
var Magic = [8]byte{0x3f, 0xd1, 0x0f, 0xe2, 0x5e, 0x76, 0xfa, 0xe6}

// Envelope tags identify the payload following the magic prefix.
const (
	TagTelemetryNote byte = 0
	TagShredNote     byte = 1
	TagTransaction   byte = 2
	TagOpen          byte = 3
)

// ErrBadMagic, ErrOversized, and ErrUnknownTag are the local (drop, never
// propagate) classification of malformed-datagram errors from spec.md §7.
var (
	ErrBadMagic    = errors.New("wire: bad magic prefix")
	ErrOversized   = errors.New("wire: datagram exceeds MTU")
	ErrUnknownTag  = errors.New("wire: unknown envelope tag")
	ErrShortBuffer = errors.New("wire: buffer too short")
)

// Envelope is the decoded form of a gossip datagram: exactly one of the
// four payload fields is non-nil, selected by Tag.
type Envelope struct {
	Tag       byte
	Telemetry *TelemetryNote
	Shred     *ShredNote
	Tx        *Transaction
	Open      *Open
}

// EncodeTelemetryNote serializes n as a complete, MTU-checked datagram.
func EncodeTelemetryNote(n TelemetryNote) ([]byte, error) {
	buf := make([]byte, 0, MaxDatagram)
	buf = append(buf, Magic[:]...)
	buf = append(buf, TagTelemetryNote)
	buf = append(buf, n.From[:]...)
	buf = append(buf, n.Signature[:]...)
	buf = appendUint64(buf, uint64(n.Slot))
	buf = append(buf, n.Endpoint.Addr[:]...)
	buf = appendUint16(buf, n.Endpoint.Port)
	buf = appendUint16(buf, n.Version.Major)
	buf = appendUint16(buf, n.Version.Minor)
	buf = appendUint16(buf, n.Version.Patch)
	return checkSize(buf)
}

// EncodeTransaction serializes tx as a complete, MTU-checked datagram.
func EncodeTransaction(tx Transaction) ([]byte, error) {
	buf := make([]byte, 0, MaxDatagram)
	buf = append(buf, Magic[:]...)
	buf = append(buf, TagTransaction)
	buf = appendUint64(buf, tx.Nonce)
	buf = append(buf, tx.From[:]...)
	buf = appendUint64(buf, tx.Amount.Uint64())
	buf = append(buf, tx.To[:]...)
	buf = append(buf, tx.Work[:]...)
	buf = append(buf, tx.Signature[:]...)
	return checkSize(buf)
}

// EncodeOpen serializes o as a complete, MTU-checked datagram.
func EncodeOpen(o Open) ([]byte, error) {
	buf := make([]byte, 0, MaxDatagram)
	buf = append(buf, Magic[:]...)
	buf = append(buf, TagOpen)
	buf = append(buf, o.Account[:]...)
	buf = append(buf, o.Representative[:]...)
	buf = append(buf, o.Work[:]...)
	buf = append(buf, o.Signature[:]...)
	return checkSize(buf)
}

// EncodeShredNote serializes s as a complete, MTU-checked datagram.
func EncodeShredNote(s ShredNote) ([]byte, error) {
	buf := make([]byte, 0, MaxDatagram)
	buf = append(buf, Magic[:]...)
	buf = append(buf, TagShredNote)
	buf = append(buf, s.From[:]...)
	buf = append(buf, s.Signature[:]...)
	buf = appendUint64(buf, uint64(s.Slot))
	buf = appendUint32(buf, s.Header.NBatches)
	buf = appendUint32(buf, s.Header.NDataShreds)
	buf = appendUint32(buf, s.Header.OverallDataSize)
	buf = appendUint32(buf, s.Header.BatchIndex)
	buf = appendUint32(buf, s.Header.ShredIndex)
	buf = append(buf, s.Data...)
	return checkSize(buf)
}

// Decode parses a raw datagram into an Envelope, rejecting bad magic,
// oversized input, and unknown tags as local errors.
func Decode(datagram []byte) (Envelope, error) {
	if len(datagram) > MaxDatagram {
		return Envelope{}, ErrOversized
	}
	if len(datagram) < len(Magic)+1 {
		return Envelope{}, ErrShortBuffer
	}
	for i := range Magic {
		if datagram[i] != Magic[i] {
			return Envelope{}, ErrBadMagic
		}
	}
	body := datagram[len(Magic):]
	tag := body[0]
	body = body[1:]

	switch tag {
	case TagTelemetryNote:
		n, err := decodeTelemetryNote(body)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Tag: tag, Telemetry: &n}, nil
	case TagShredNote:
		s, err := decodeShredNote(body)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Tag: tag, Shred: &s}, nil
	case TagTransaction:
		tx, err := decodeTransaction(body)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Tag: tag, Tx: &tx}, nil
	case TagOpen:
		o, err := decodeOpen(body)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Tag: tag, Open: &o}, nil
	default:
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}

func decodeTelemetryNote(b []byte) (TelemetryNote, error) {
	const fixedLen = cryptoprim.PublicLen + cryptoprim.SignatureLen + 8 + 4 + 2 + 2 + 2 + 2
	var n TelemetryNote
	if len(b) < fixedLen {
		return n, ErrShortBuffer
	}
	off := 0
	copy(n.From[:], b[off:off+cryptoprim.PublicLen])
	off += cryptoprim.PublicLen
	copy(n.Signature[:], b[off:off+cryptoprim.SignatureLen])
	off += cryptoprim.SignatureLen
	n.Slot = cryptoprim.Slot(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	copy(n.Endpoint.Addr[:], b[off:off+4])
	off += 4
	n.Endpoint.Port = binary.LittleEndian.Uint16(b[off:])
	off += 2
	n.Version.Major = binary.LittleEndian.Uint16(b[off:])
	off += 2
	n.Version.Minor = binary.LittleEndian.Uint16(b[off:])
	off += 2
	n.Version.Patch = binary.LittleEndian.Uint16(b[off:])
	return n, nil
}

func decodeTransaction(b []byte) (Transaction, error) {
	const fixedLen = 8 + cryptoprim.PublicLen + 8 + cryptoprim.PublicLen + cryptoprim.WorkLen + cryptoprim.SignatureLen
	var tx Transaction
	if len(b) < fixedLen {
		return tx, ErrShortBuffer
	}
	off := 0
	tx.Nonce = binary.LittleEndian.Uint64(b[off:])
	off += 8
	copy(tx.From[:], b[off:off+cryptoprim.PublicLen])
	off += cryptoprim.PublicLen
	tx.Amount = cryptoprim.Amount(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	copy(tx.To[:], b[off:off+cryptoprim.PublicLen])
	off += cryptoprim.PublicLen
	copy(tx.Work[:], b[off:off+cryptoprim.WorkLen])
	off += cryptoprim.WorkLen
	copy(tx.Signature[:], b[off:off+cryptoprim.SignatureLen])
	return tx, nil
}

func decodeOpen(b []byte) (Open, error) {
	const fixedLen = cryptoprim.PublicLen*2 + cryptoprim.WorkLen + cryptoprim.SignatureLen
	var o Open
	if len(b) < fixedLen {
		return o, ErrShortBuffer
	}
	off := 0
	copy(o.Account[:], b[off:off+cryptoprim.PublicLen])
	off += cryptoprim.PublicLen
	copy(o.Representative[:], b[off:off+cryptoprim.PublicLen])
	off += cryptoprim.PublicLen
	copy(o.Work[:], b[off:off+cryptoprim.WorkLen])
	off += cryptoprim.WorkLen
	copy(o.Signature[:], b[off:off+cryptoprim.SignatureLen])
	return o, nil
}

func decodeShredNote(b []byte) (ShredNote, error) {
	const fixedLen = cryptoprim.PublicLen + cryptoprim.SignatureLen + 8 + 4*5
	var s ShredNote
	if len(b) < fixedLen {
		return s, ErrShortBuffer
	}
	off := 0
	copy(s.From[:], b[off:off+cryptoprim.PublicLen])
	off += cryptoprim.PublicLen
	copy(s.Signature[:], b[off:off+cryptoprim.SignatureLen])
	off += cryptoprim.SignatureLen
	s.Slot = cryptoprim.Slot(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	s.Header.NBatches = binary.LittleEndian.Uint32(b[off:])
	off += 4
	s.Header.NDataShreds = binary.LittleEndian.Uint32(b[off:])
	off += 4
	s.Header.OverallDataSize = binary.LittleEndian.Uint32(b[off:])
	off += 4
	s.Header.BatchIndex = binary.LittleEndian.Uint32(b[off:])
	off += 4
	s.Header.ShredIndex = binary.LittleEndian.Uint32(b[off:])
	off += 4
	s.Data = append([]byte(nil), b[off:]...)
	return s, nil
}

func checkSize(buf []byte) ([]byte, error) {
	if len(buf) > MaxDatagram {
		return nil, ErrOversized
	}
	return buf, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}
