package utils

import "strings"

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

func IsStringInSliceFold(s string, slice []string) bool {
	for _, v := range slice {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any element of values is present in slice.
func ContainsAny(slice []string, values []string) bool {
	for _, v := range values {
		if IsStringInSlice(v, slice) {
			return true
		}
	}
	return false
}

func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
