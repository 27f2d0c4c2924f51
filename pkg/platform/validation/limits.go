package validation

import (
	"fmt"

	dErrors "voxid/pkg/domain-errors"
)

const (
	// MaxBodySize caps JSON request bodies.
	MaxBodySize = 64 * 1024

	// DefaultMaxAudioBytes caps a single uploaded voice sample.
	DefaultMaxAudioBytes = 10 << 20

	// MinAudioBytes is the smallest payload that can hold a RIFF/WAVE header.
	MinAudioBytes = 44
)

const (
	MaxEmailLength        = 255
	MaxRefreshTokenLength = 2048
	MaxPhraseLength       = 1024
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckByteRange validates a payload size against inclusive bounds.
func CheckByteRange(fieldName string, n, min, max int64) error {
	if n < min {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is too small", fieldName))
	}
	if n > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max size of %d bytes", fieldName, max))
	}
	return nil
}
