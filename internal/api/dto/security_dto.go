package dto

// LoginRequest payload for credential login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest payload for account registration.
type RegisterRequest struct {
	Username  string   `json:"username"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Password  string   `json:"password"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
}

// ResultResponse mirrors the success envelope returned by register/decode.
type ResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
