package models

import (
	s "voxid/pkg/string"
	"voxid/pkg/validation"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=2048"`
}

func (r *RefreshRequest) Normalize() {
	s.TrimStrings(&r.RefreshToken)
}

func (r *RefreshRequest) Validate() error {
	return validation.Validate(r)
}
