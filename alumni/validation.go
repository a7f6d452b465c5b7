// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package alumni

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength = 100
	maxCityLength = 200
)

// ProfileInput is what a user submits through the "add profile" form.
type ProfileInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	City      string `json:"city"`
}

// Sanitize trims every field and collapses inner runs of whitespace.
func (p ProfileInput) Sanitize() ProfileInput {
	return ProfileInput{
		FirstName: sanitizeField(p.FirstName),
		LastName:  sanitizeField(p.LastName),
		City:      sanitizeField(p.City),
	}
}

// Validate checks that every field is present and reasonably sized.
func (p ProfileInput) Validate() error {
	var errs []error

	if err := validateField("first name", p.FirstName, maxNameLength); err != nil {
		errs = append(errs, err)
	}

	if err := validateField("last name", p.LastName, maxNameLength); err != nil {
		errs = append(errs, err)
	}

	if err := validateField("city", p.City, maxCityLength); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateField(name, value string, maxLength int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s can't be empty", name)
	}

	if n := utf8.RuneCountInString(value); n > maxLength {
		return fmt.Errorf("%s too long (max %d characters, got %d)", name, maxLength, n)
	}

	return nil
}

func sanitizeField(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
