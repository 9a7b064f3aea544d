package util

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// ShortUUID generates a short UUID with 22 symbols
func ShortUUID() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:]) // 22 symbols
}

// PrefixedID returns prefix_ followed by a short UUID, e.g. grid_XXXX.
func PrefixedID(prefix string) string {
	return prefix + "_" + ShortUUID()
}
