package server

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/login"
)

func loginResponse(res login.Result) schemas.BrowserLoginResponse {
	return schemas.BrowserLoginResponse{
		Success:     res.Success,
		SessionID:   res.SessionID,
		State:       string(res.State),
		LiAt:        res.Credential,
		ProfileName: res.ProfileName,
		Screenshot:  res.Screenshot,
		Error:       res.Error,
	}
}

func loginError(err error) schemas.BrowserLoginResponse {
	return schemas.BrowserLoginResponse{Success: false, State: "failed", Error: err.Error()}
}

func (s *Server) handleLoginStart(w http.ResponseWriter, r *http.Request) {
	var req schemas.BrowserLoginStartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, loginError(err))
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		err := badRequest("email and password are required")
		writeError(w, err, loginError(err))
		return
	}

	res, err := s.deps.Login.Start(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err, loginError(err))
		return
	}
	s.logger.Info("Browser login started.", zap.String("state", string(res.State)), zap.Bool("success", res.Success))
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (s *Server) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req schemas.BrowserLoginVerifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, loginError(err))
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Code) == "" {
		err := badRequest("session_id and code are required")
		writeError(w, err, loginError(err))
		return
	}

	res, err := s.deps.Login.Verify(r.Context(), req.SessionID, strings.TrimSpace(req.Code))
	if err != nil {
		writeError(w, err, loginError(err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (s *Server) handleLoginClose(w http.ResponseWriter, r *http.Request) {
	var req schemas.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, errorBody(err))
		return
	}
	s.deps.Login.Close(req.SessionID)
	writeJSON(w, http.StatusOK, schemas.SuccessResponse{Success: true})
}
