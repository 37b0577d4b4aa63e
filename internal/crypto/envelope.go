package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// EnvelopeVersion is the current envelope layout version.
const EnvelopeVersion = 1

// KDFPBKDF2SHA256 identifies PBKDF2 with HMAC-SHA256.
const KDFPBKDF2SHA256 = 1

var envelopeMagic = []byte("PWMV")

// Envelope is the encrypted-at-rest container for a vault document.
//
// Serialized layout (big endian):
//
//	magic "PWMV" | version u8 | kdf u8 | iterations u32 |
//	salt len u16 | salt | iv (16) | ciphertext len u32 | ciphertext |
//	mac (32) | sha256 of everything before it (32)
type Envelope struct {
	Version    uint8
	KDF        uint8
	Iterations uint32
	Salt       []byte
	IV         []byte
	Ciphertext []byte
	MAC        []byte
}

// header returns the authenticated header bytes: every field that precedes
// the ciphertext.
func (e *Envelope) header() []byte {
	var buf bytes.Buffer
	buf.Write(envelopeMagic)
	buf.WriteByte(e.Version)
	buf.WriteByte(e.KDF)
	binary.Write(&buf, binary.BigEndian, e.Iterations)
	binary.Write(&buf, binary.BigEndian, uint16(len(e.Salt)))
	buf.Write(e.Salt)
	buf.Write(e.IV)
	binary.Write(&buf, binary.BigEndian, uint32(len(e.Ciphertext)))
	return buf.Bytes()
}

// validate checks the structural invariants of a version 1 envelope.
func (e *Envelope) validate() error {
	switch {
	case e.Version != EnvelopeVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptEnvelope, e.Version)
	case e.KDF != KDFPBKDF2SHA256:
		return fmt.Errorf("%w: unknown kdf %d", ErrCorruptEnvelope, e.KDF)
	case e.Iterations < MinIterations || e.Iterations > MaxIterations:
		return fmt.Errorf("%w: iteration count %d out of range", ErrCorruptEnvelope, e.Iterations)
	case len(e.Salt) != SaltSize:
		return fmt.Errorf("%w: salt length %d", ErrCorruptEnvelope, len(e.Salt))
	case len(e.IV) != IVSize:
		return fmt.Errorf("%w: iv length %d", ErrCorruptEnvelope, len(e.IV))
	case len(e.Ciphertext) == 0 || len(e.Ciphertext)%aes.BlockSize != 0:
		return fmt.Errorf("%w: ciphertext length %d", ErrCorruptEnvelope, len(e.Ciphertext))
	case len(e.MAC) != MACSize:
		return fmt.Errorf("%w: mac length %d", ErrCorruptEnvelope, len(e.MAC))
	}
	return nil
}

// MarshalBinary encodes the envelope with a trailing checksum.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	out := e.header()
	out = append(out, e.Ciphertext...)
	out = append(out, e.MAC...)
	sum := sha256.Sum256(out)
	return append(out, sum[:]...), nil
}

// ParseEnvelope decodes an envelope. Truncated data, bad lengths and a
// checksum mismatch all return ErrCorruptEnvelope; no key is derived here.
func ParseEnvelope(data []byte) (*Envelope, error) {
	const fixed = 4 + 1 + 1 + 4 + 2
	if len(data) < fixed+sha256.Size {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrCorruptEnvelope, len(data))
	}

	body, sum := data[:len(data)-sha256.Size], data[len(data)-sha256.Size:]
	want := sha256.Sum256(body)
	if subtle.ConstantTimeCompare(want[:], sum) != 1 {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptEnvelope)
	}
	if !bytes.Equal(body[:4], envelopeMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptEnvelope)
	}

	r := &reader{buf: body[4:]}
	e := &Envelope{}
	e.Version = r.u8()
	e.KDF = r.u8()
	e.Iterations = r.u32()
	e.Salt = r.bytes(int(r.u16()))
	e.IV = r.bytes(IVSize)
	e.Ciphertext = r.bytes(int(r.u32()))
	e.MAC = r.bytes(MACSize)
	if r.err || len(r.buf) != 0 {
		return nil, fmt.Errorf("%w: truncated or trailing data", ErrCorruptEnvelope)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// reader is a bounds-checked cursor; any overrun sets err and yields zeros.
type reader struct {
	buf []byte
	err bool
}

func (r *reader) bytes(n int) []byte {
	if r.err || n < 0 || n > len(r.buf) {
		r.err = true
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	return out
}

func (r *reader) u8() uint8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
