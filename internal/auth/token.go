package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MachineTokenPrefix marks agent bearer tokens so they are recognizable in
// configs and logs without being confused with session JWTs.
const MachineTokenPrefix = "sw_"

// NewMachineToken generates the secret bearer token handed to an agent at
// machine creation. It is shown to the user exactly once.
func NewMachineToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return MachineTokenPrefix + hex.EncodeToString(buf), nil
}

// IsMachineToken reports whether s has the machine token shape. It does not
// validate the token against the store.
func IsMachineToken(s string) bool {
	return strings.HasPrefix(s, MachineTokenPrefix) && len(s) > len(MachineTokenPrefix)
}
