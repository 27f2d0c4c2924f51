package models

import (
	limits "voxid/pkg/platform/validation"
	s "voxid/pkg/string"
	"voxid/pkg/validation"
)

// EnrollRequest carries the form fields of a multipart enrollment upload.
// The audio part itself is handled by the audio package.
type EnrollRequest struct {
	UserID   string `validate:"required,uuid"`
	Filename string `validate:"required,wavfile"`
}

func (r *EnrollRequest) Normalize() {
	s.TrimStrings(&r.UserID, &r.Filename)
}

func (r *EnrollRequest) Validate() error {
	return validation.Validate(r)
}

// LoginRequest carries the form fields of a multipart login upload. Email is
// the optional disambiguator.
type LoginRequest struct {
	Email    string `validate:"omitempty,email,max=255"`
	Filename string `validate:"required,wavfile"`
}

func (r *LoginRequest) Normalize() {
	s.TrimStrings(&r.Filename)
	r.Email = s.NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if err := limits.CheckStringLength("email", r.Email, limits.MaxEmailLength); err != nil {
		return err
	}
	return validation.Validate(r)
}

// HasDisambiguator reports whether the caller supplied an email.
func (r *LoginRequest) HasDisambiguator() bool {
	return r.Email != ""
}
