package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

// CurrentSchemaVersion is the schema version written by Encode. Blobs carrying
// an older version decode with zero values for the missing fields.
const CurrentSchemaVersion = sessionFormatVersionCurrent

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.Credential) > math.MaxUint16 {
		return nil, errors.New("credential too long")
	}
	var credLen [2]byte
	binary.BigEndian.PutUint16(credLen[:], uint16(len(s.Credential)))
	buf.Write(credLen[:])
	buf.WriteString(s.Credential)

	for _, field := range []string{
		s.Identity.ID,
		s.Identity.Email,
		s.Identity.DisplayName,
		s.Identity.Role,
	} {
		if len(field) > 255 {
			return nil, errors.New("identity field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	if err := binary.Write(&buf, binary.BigEndian, s.Generation); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent &&
		version != sessionFormatVersionV1 {
		return nil, errors.New("invalid session version")
	}

	s := &Session{SchemaVersion: version}

	var credLen [2]byte
	if _, err := io.ReadFull(reader, credLen[:]); err != nil {
		return nil, err
	}
	credential := make([]byte, binary.BigEndian.Uint16(credLen[:]))
	if _, err := io.ReadFull(reader, credential); err != nil {
		return nil, err
	}
	s.Credential = string(credential)

	fields := []*string{
		&s.Identity.ID,
		&s.Identity.Email,
		&s.Identity.DisplayName,
		&s.Identity.Role,
	}
	for _, field := range fields {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(reader, value); err != nil {
			return nil, err
		}
		*field = string(value)
	}

	if version >= sessionFormatVersionCurrent {
		if err := binary.Read(reader, binary.BigEndian, &s.Generation); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}
	if s.Credential == "" {
		return nil, errors.New("empty credential")
	}
	if s.ExpiresAt <= s.IssuedAt {
		return nil, errors.New("expiry not after issuance")
	}

	return s, nil
}
