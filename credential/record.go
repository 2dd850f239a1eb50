package credential

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Purpose tags what kind of one-time credential a record holds.
type Purpose uint8

const (
	// PurposeOTP is a short numeric code bound to a contact identifier.
	PurposeOTP Purpose = iota
	// PurposeMagicLink is a URL-embedded single-use token.
	PurposeMagicLink
)

func (p Purpose) String() string {
	switch p {
	case PurposeMagicLink:
		return "magic_link"
	default:
		return "otp"
	}
}

// Record is a single one-time credential. Records are immutable after Save:
// they are destroyed by consumption or expiry, never rewritten.
type Record struct {
	SubjectID string
	Purpose   Purpose
	Payload   string
	ExpiresAt int64
	Extra     map[string]string
}

const recordVersionV1 = 1

func encodeRecord(rec *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	buf.WriteByte(byte(rec.Purpose))

	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}

	if err := writeString(&buf, rec.SubjectID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, rec.Payload); err != nil {
		return nil, err
	}

	if len(rec.Extra) > 255 {
		return nil, errors.New("credential record extra map too large")
	}
	buf.WriteByte(byte(len(rec.Extra)))
	for k, v := range rec.Extra {
		if err := writeString(&buf, k); err != nil {
			return nil, err
		}
		if err := writeString(&buf, v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid credential record version")
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	rec := &Record{Purpose: Purpose(purpose)}

	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, err
	}

	if rec.SubjectID, err = readString(reader); err != nil {
		return nil, err
	}
	if rec.Payload, err = readString(reader); err != nil {
		return nil, err
	}

	extraCount, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if extraCount > 0 {
		rec.Extra = make(map[string]string, extraCount)
		for i := 0; i < int(extraCount); i++ {
			k, err := readString(reader)
			if err != nil {
				return nil, err
			}
			v, err := readString(reader)
			if err != nil {
				return nil, err
			}
			rec.Extra[k] = v
		}
	}

	return rec, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("credential record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
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
