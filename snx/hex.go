package snx

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeHexCookie turns the hex encoded active key from the authentication
// exchange into the cookie string presented in the handshake. Byte
// sequences that are not valid UTF-8 are replaced, not rejected.
func DecodeHexCookie(key string) (string, error) {
	b, err := hex.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("DecodeHexCookie: invalid hex key: %w", err)
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}
