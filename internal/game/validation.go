// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ValidationError represents an input validation error. Invalid input is
// rejected before any state mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateNickname checks that a creature nickname is valid. Nicknames
// may be empty (the species name is shown instead).
func ValidateNickname(nickname string) error {
	if nickname == "" {
		return nil
	}
	if !utf8.ValidString(nickname) {
		return &ValidationError{Field: "nickname", Message: "must be valid UTF-8"}
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLen {
		return &ValidationError{Field: "nickname", Message: fmt.Sprintf("exceeds maximum length of %d", MaxNicknameLen)}
	}
	if hasControlChars(nickname) {
		return &ValidationError{Field: "nickname", Message: "cannot contain control characters"}
	}
	return nil
}

// hasControlChars returns true if the string contains control characters.
func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
