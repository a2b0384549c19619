// Package cryptox derives and verifies the local PIN used to unlock the
// doctor view. PINs are never stored; only a salted PBKDF2-SHA256 digest is.
// Records written by older clients carry an unsalted SHA-256 hex digest and
// are reported as needing a rehash after a successful match.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SchemePBKDF2       = "pbkdf2-sha256"
	SchemeLegacySHA256 = "sha256"

	PBKDF2Iterations = 120_000
	keyLen           = 32
	saltLen          = 16
)

// PINRecord is what gets persisted for a PIN.
type PINRecord struct {
	Scheme string
	Salt   []byte
	Hash   []byte
}

func DerivePIN(pin, salt []byte) []byte {
	return pbkdf2.Key(pin, salt, PBKDF2Iterations, keyLen, sha256.New)
}

// LegacyPINHash is the unsalted digest format of older clients: the
// lower-case hex of SHA-256(pin).
func LegacyPINHash(pin []byte) []byte {
	sum := sha256.Sum256(pin)
	return []byte(hex.EncodeToString(sum[:]))
}

// NewPINRecord derives a PBKDF2 record with a fresh random salt.
func NewPINRecord(pin []byte) PINRecord {
	salt := common.GenerateRandByteArray(saltLen)
	return PINRecord{Scheme: SchemePBKDF2, Salt: salt, Hash: DerivePIN(pin, salt)}
}

// VerifyPIN compares pin against rec in constant time. rehash is true when
// the match was against a legacy record that should be upgraded.
func VerifyPIN(pin []byte, rec PINRecord) (ok bool, rehash bool) {
	switch rec.Scheme {
	case SchemePBKDF2:
		if len(rec.Salt) == 0 {
			return false, false
		}
		return subtle.ConstantTimeCompare(DerivePIN(pin, rec.Salt), rec.Hash) == 1, false
	case SchemeLegacySHA256, "":
		ok := subtle.ConstantTimeCompare(LegacyPINHash(pin), rec.Hash) == 1
		return ok, ok
	default:
		return false, false
	}
}
