package schemas

// -- Browser Login Schemas --

type BrowserLoginStartRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BrowserLoginResponse answers both start and verify. SessionID is set only while a
// second factor is pending. Screenshot is a PNG, base64 encoded on the wire.
type BrowserLoginResponse struct {
	Success     bool   `json:"success"`
	SessionID   string `json:"session_id,omitempty"`
	State       string `json:"state"`
	LiAt        string `json:"li_at,omitempty"`
	ProfileName string `json:"profile_name,omitempty"`
	Screenshot  []byte `json:"screenshot,omitempty"`
	Error       string `json:"error,omitempty"`
}

type BrowserLoginVerifyRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}
