package explorer

import (
	"bytes"
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Base58CheckEncode appends a double-SHA256 checksum to payload and encodes
// it with the Bitcoin alphabet, as TRON addresses are written.
func Base58CheckEncode(payload []byte) string {
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, payload...)
	buf = append(buf, checksum4(payload)...)
	return base58.Encode(buf)
}

// Base58CheckDecode reverses Base58CheckEncode and verifies the checksum.
func Base58CheckDecode(s string) ([]byte, bool) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) < 5 {
		return nil, false
	}
	payload, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(sum, checksum4(payload)) {
		return nil, false
	}
	return payload, true
}

// IsTronAddress reports whether s is a base58check TRON mainnet address.
func IsTronAddress(s string) bool {
	if len(s) != 34 || s[0] != 'T' {
		return false
	}
	payload, ok := Base58CheckDecode(s)
	return ok && len(payload) == 21 && payload[0] == tronAddressPrefix
}

func checksum4(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:4]
}
