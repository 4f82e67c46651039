package domain

import (
	"crypto/rand"
	"encoding/hex"
)

// ObjectIDLength is the length of identifiers produced by NewObjectID.
const ObjectIDLength = 24

// NewObjectID returns a random 24 character lowercase hex identifier.
func NewObjectID() string {
	b := make([]byte, ObjectIDLength/2)
	if _, err := rand.Read(b); err != nil {
		panic("domain: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// IsObjectID reports whether s has the shape of an identifier from NewObjectID.
func IsObjectID(s string) bool {
	if len(s) != ObjectIDLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
