package adminauth

import "time"

type LoginRequest struct {
	Username    string `json:"username" form:"username" doc:"Admin username"`
	Password    string `json:"password" form:"password"`
	Code        string `json:"code,omitempty" form:"code" doc:"TOTP code or recovery code" example:"123456"`
	TrustDevice bool   `json:"trust_device,omitempty" form:"trust_device" doc:"Skip the second factor on this browser until the device expires"`
}

type VerifyRequest struct {
	Code string `json:"code" form:"code" doc:"TOTP code or recovery code" example:"123456"`
}

type SessionResponse struct {
	Authenticated       bool       `json:"authenticated"`
	AccountID           uint       `json:"account_id,omitempty"`
	IssuedAt            *time.Time `json:"issued_at,omitempty"`
	Method              string     `json:"method,omitempty"`
	SecondFactorPending bool       `json:"second_factor_pending,omitempty"`
	CSRFToken           string     `json:"csrf_token,omitempty"`
}

type PendingResponse struct {
	SecondFactorRequired bool `json:"second_factor_required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
