package auth

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"
)

// secToNTEpoch is the offset between the Unix epoch (1970-01-01) and the
// Windows NT epoch (1601-01-01), in seconds.
const secToNTEpoch = 11_644_473_600

// policyVersion is the fixed signature policy version Xbox Live expects.
const policyVersion = int32(1)

// ntFiletime converts a Unix timestamp to Windows NT filetime ticks
// (100ns units since 1601-01-01).
func ntFiletime(unixSeconds int64) uint64 {
	return uint64(unixSeconds+secToNTEpoch) * 10_000_000
}

// Sign produces the base64 value of the Xbox Live "Signature" request
// header for a POST to urlPath with the given JSON body.
//
// The signed buffer is: policy version (int32 BE), NT filetime (uint64 BE),
// "POST", the request's URL path, an empty authorization token, and the
// body -- each field followed by a single null byte. The buffer is hashed
// with SHA-256 and signed with the caller's P-256 key; the resulting frame
// is policy version + filetime + raw (r||s) signature, base64-encoded.
func Sign(signingKey *ecdsa.PrivateKey, urlPath string, body []byte) (string, error) {
	filetime := ntFiletime(time.Now().Unix())

	var buf bytes.Buffer
	writeNullTerminated(&buf, beInt32(policyVersion))
	writeNullTerminated(&buf, beUint64(filetime))
	writeNullTerminated(&buf, []byte("POST"))
	writeNullTerminated(&buf, []byte(urlPath))
	writeNullTerminated(&buf, []byte(""))
	writeNullTerminated(&buf, body)

	digest := sha256.Sum256(buf.Bytes())

	r, s, err := ecdsa.Sign(rand.Reader, signingKey, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	sig := encodeP1363(r, s, (signingKey.Curve.Params().BitSize+7)/8)

	var out bytes.Buffer
	out.Write(beInt32(policyVersion))
	out.Write(beUint64(filetime))
	out.Write(sig)
	return base64.StdEncoding.EncodeToString(out.Bytes()), nil
}

func writeNullTerminated(buf *bytes.Buffer, field []byte) {
	buf.Write(field)
	buf.WriteByte(0)
}

func beInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func beUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// encodeP1363 concatenates r and s as two fixed-width big-endian integers
// (IEEE P1363 / "raw" ECDSA signature format), as Xbox Live expects rather
// than ASN.1 DER.
func encodeP1363(r, s *big.Int, size int) []byte {
	out := make([]byte, size*2)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out
}
