package utils

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// CalculateHash returns a quoted xxhash of the data, usable as a version
func CalculateHash(data []byte) string {
	return fmt.Sprintf("\"%016x\"", xxhash.Sum64(data))
}

// GenerateRandomID generates a random ID for subscriptions
func GenerateRandomID() string {
	return uuid.NewString()
}
