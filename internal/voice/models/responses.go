package models

type EnrollResponse struct {
	Status string `json:"status"`
	Phrase string `json:"phrase"`
}

// LoginResponse covers both the success and the ambiguous shapes.
type LoginResponse struct {
	Status       string   `json:"status"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	ExpiresIn    int      `json:"expires_in,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
	Email        string   `json:"email,omitempty"`
	Similarity   float64  `json:"similarity,omitempty"`
	Candidates   []string `json:"candidates,omitempty"`
	Message      string   `json:"message,omitempty"`
}
