package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/login"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds request bodies; every request here is a small JSON object.
const maxBodyBytes = 1 << 20

// loginRetryAfter is suggested to callers turned away for lack of a browser slot.
const loginRetryAfter = 30 * time.Second

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads the JSON body into v. An empty body leaves v at its zero value.
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

// statusFor maps an error to the HTTP status it is reported with. Business failures that
// are not listed here are reported as 200 with success=false.
func statusFor(err error) int {
	var rl *platform.RateLimitError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, platform.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, login.ErrSessionNotFound), errors.Is(err, platform.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, login.ErrSessionExpired), errors.Is(err, platform.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, login.ErrCapacityExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &rl):
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

// writeError reports err using body, a response struct whose error fields were already set.
// Retry-After is added for capacity and rate limit failures.
func writeError(w http.ResponseWriter, err error, body any) {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", seconds(loginRetryAfter))
	case http.StatusTooManyRequests:
		var rl *platform.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", seconds(rl.RetryAfter))
		}
	}
	writeJSON(w, status, body)
}

func seconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

func errorBody(err error) schemas.ErrorResponse {
	return schemas.ErrorResponse{Success: false, Error: err.Error()}
}
