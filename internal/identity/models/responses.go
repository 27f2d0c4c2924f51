package models

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type MeResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	VoiceEnrolled bool   `json:"voice_enrolled"`
}

func NewMeResponse(i *Identity) *MeResponse {
	return &MeResponse{
		ID:            i.ID.String(),
		Email:         i.Email,
		Name:          i.DisplayName(),
		VoiceEnrolled: i.VoiceEnrolled,
	}
}
