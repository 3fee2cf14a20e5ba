package block

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxVarBytesLen bounds length-prefixed byte strings read off the wire.
const maxVarBytesLen = 4_000_000

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// writeCompactSize emits the Bitcoin-family variable length integer.
func writeCompactSize(w io.Writer, n uint64) error {
	switch {
	case n < 0xfd:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n <= 0xffff:
		if _, err := w.Write([]byte{0xfd}); err != nil {
			return err
		}
		return writeUint16(w, uint16(n))
	case n <= 0xffffffff:
		if _, err := w.Write([]byte{0xfe}); err != nil {
			return err
		}
		return writeUint32(w, uint32(n))
	default:
		if _, err := w.Write([]byte{0xff}); err != nil {
			return err
		}
		return writeUint64(w, n)
	}
}

func readCompactSize(r io.Reader) (uint64, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, err
	}

	switch tag[0] {
	case 0xfd:
		v, err := readUint16(r)
		return uint64(v), err
	case 0xfe:
		v, err := readUint32(r)
		return uint64(v), err
	case 0xff:
		return readUint64(r)
	default:
		return uint64(tag[0]), nil
	}
}

func writeVarBytes(w io.Writer, b []byte) error {
	if err := writeCompactSize(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader) ([]byte, error) {
	n, err := readCompactSize(r)
	if err != nil {
		return nil, err
	}
	if n > maxVarBytesLen {
		return nil, errors.New("byte string over wire limit")
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
