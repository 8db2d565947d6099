package auth

import (
	"crypto/ecdsa"
	"encoding/base64"
)

// ProofKey is the JWK-shaped advertisement of a P-256 public key that Xbox
// Live uses to bind signed requests (ProofOfPossession) to a keypair.
// It is derived fresh from the session's signing key on every call rather
// than cached or pinned to disk.
type ProofKey struct {
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// NewProofKey builds a ProofKey from an ECDSA P-256 public key.
func NewProofKey(pub *ecdsa.PublicKey) ProofKey {
	size := (pub.Curve.Params().BitSize + 7) / 8
	return ProofKey{
		Alg: "ES256",
		Use: "sig",
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, size))),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, size))),
	}
}
