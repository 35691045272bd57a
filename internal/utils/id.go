package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func GenerateNanoID(size int) string {
	id, err := gonanoid.Generate(idAlphabet, size)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateNanoIDWithPrefix returns "<prefix>_<id>".
func GenerateNanoIDWithPrefix(prefix string, size int) string {
	return fmt.Sprintf("%s_%s", prefix, GenerateNanoID(size))
}

func GenerateSlug() string {
	return GenerateNanoID(16)
}

func Now() time.Time {
	return time.Now().UTC()
}
