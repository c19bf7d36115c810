package util

import (
	"crypto/rand"
	"math/big"
)

// randomNameLength sets the length of random container name suffixes (12).
const randomNameLength = 12

// letters defines the character set for random names.
var letters = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

// RandName generates a 12-character random container name suffix.
//
// Returns:
//   - string: Random Docker-compatible name suffix.
func RandName() string {
	nameBuffer := make([]rune, randomNameLength)
	for i := range nameBuffer {
		index, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		nameBuffer[i] = letters[index.Int64()]
	}

	return string(nameBuffer)
}
