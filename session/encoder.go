package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const credentialsFormatVersionCurrent = 1

var (
	// ErrInvalidFormat is returned by Decode for unknown versions and truncated input.
	ErrInvalidFormat = errors.New("invalid credentials format")
	errTokenTooLong  = errors.New("token too long")
)

// Encode serializes c as:
//
//	version:u8 | user_id:u64 | issued_at:i64 | expires_at:i64 |
//	len:u16 access_token | len:u16 refresh_token
//
// Integers are big-endian.
func Encode(c Credentials) ([]byte, error) {
	if len(c.AccessToken) > math.MaxUint16 || len(c.RefreshToken) > math.MaxUint16 {
		return nil, errTokenTooLong
	}

	var buf bytes.Buffer
	buf.Grow(1 + 8*3 + 4 + len(c.AccessToken) + len(c.RefreshToken))

	buf.WriteByte(credentialsFormatVersionCurrent)

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], c.UserID)
	buf.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(c.IssuedAt))
	buf.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(c.ExpiresAt))
	buf.Write(scratch[:])

	writeString(&buf, c.AccessToken)
	writeString(&buf, c.RefreshToken)

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
}

// Decode parses data produced by Encode.
func Decode(data []byte) (Credentials, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Credentials{}, ErrInvalidFormat
	}
	if version != credentialsFormatVersionCurrent {
		return Credentials{}, ErrInvalidFormat
	}

	var c Credentials
	if err := binary.Read(reader, binary.BigEndian, &c.UserID); err != nil {
		return Credentials{}, ErrInvalidFormat
	}
	if err := binary.Read(reader, binary.BigEndian, &c.IssuedAt); err != nil {
		return Credentials{}, ErrInvalidFormat
	}
	if err := binary.Read(reader, binary.BigEndian, &c.ExpiresAt); err != nil {
		return Credentials{}, ErrInvalidFormat
	}
	if c.AccessToken, err = readString(reader); err != nil {
		return Credentials{}, ErrInvalidFormat
	}
	if c.RefreshToken, err = readString(reader); err != nil {
		return Credentials{}, ErrInvalidFormat
	}
	if reader.Len() != 0 {
		return Credentials{}, ErrInvalidFormat
	}

	return c, nil
}

func readString(r *bytes.Reader) (string, error) {
	var l uint16
	if err := binary.Read(r, binary.BigEndian, &l); err != nil {
		return "", err
	}
	if int(l) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
