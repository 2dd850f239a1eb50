package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionV1 = 1

// Encode serializes a session record into the compact binary wire form
// stored in Redis.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionV1)

	for _, field := range []string{
		s.SessionID,
		s.UserID,
		s.Role,
		s.DeviceFingerprint,
		s.IPAddress,
		s.UserAgent,
	} {
		if err := writeField(&buf, field); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastValidatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses the wire form produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionV1 {
		return nil, errors.New("invalid session record version")
	}

	s := &Session{}
	for _, field := range []*string{
		&s.SessionID,
		&s.UserID,
		&s.Role,
		&s.DeviceFingerprint,
		&s.IPAddress,
		&s.UserAgent,
	} {
		if *field, err = readField(reader); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastValidatedAt); err != nil {
		return nil, err
	}

	return s, nil
}

func writeField(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("session field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readField(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
