package session

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// encodeV1 builds a version-1 blob by hand: the v1 layout has no Generation
// field between the identity fields and the timestamps.
func encodeV1(t *testing.T, sess *Session) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteByte(sessionFormatVersionV1)

	var credLen [2]byte
	binary.BigEndian.PutUint16(credLen[:], uint16(len(sess.Credential)))
	buf.Write(credLen[:])
	buf.WriteString(sess.Credential)

	for _, field := range []string{
		sess.Identity.ID,
		sess.Identity.Email,
		sess.Identity.DisplayName,
		sess.Identity.Role,
	} {
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	if err := binary.Write(&buf, binary.BigEndian, sess.IssuedAt); err != nil {
		t.Fatalf("write issued at: %v", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, sess.ExpiresAt); err != nil {
		t.Fatalf("write expires at: %v", err)
	}

	return buf.Bytes()
}

func TestDecodeV1BlobZeroGeneration(t *testing.T) {
	sess := testSession()

	got, err := Decode(encodeV1(t, sess))
	if err != nil {
		t.Fatalf("decode v1 blob: %v", err)
	}
	if got.SchemaVersion != sessionFormatVersionV1 {
		t.Fatalf("expected schema version %d, got %d", sessionFormatVersionV1, got.SchemaVersion)
	}
	if got.Generation != 0 {
		t.Fatalf("v1 blob must decode with zero generation, got %d", got.Generation)
	}
	if got.Credential != sess.Credential || got.Identity != sess.Identity {
		t.Fatalf("v1 decode mismatch: %+v", got)
	}
}
