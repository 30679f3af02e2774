package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/jwt"
	lgmw "github.com/MrEthical07/loginguard/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxLoginBody = 8 << 10

type handler struct {
	guard  *loginguard.Guard
	tokens *jwt.Manager
	logger *zap.Logger
	reveal bool
	now    func() time.Time
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type lockoutResponse struct {
	Identity      string     `json:"identity"`
	State         string     `json:"state"`
	Failures      int        `json:"failures"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.guard.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("login unavailable", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	switch res.Reason {
	case loginguard.ReasonNone:
	case loginguard.ReasonLockedOut:
		if h.reveal {
			wait := res.LockedUntil.Sub(h.now())
			if wait < time.Second {
				wait = time.Second
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			respondWithError(w, http.StatusTooManyRequests, "account temporarily locked")
			return
		}
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	default:
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	session, err := h.tokens.Issue(res.AccountRef, res.Identity)
	if err != nil {
		h.logger.Error("issue session token", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, loginResponse{
		Name:      res.Name,
		Email:     res.Identity,
		UserID:    res.AccountRef,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	claims, _ := lgmw.SessionFromContext(r.Context())
	out := map[string]any{
		"user_id": claims.Subject,
		"email":   claims.Email,
	}
	if claims.ExpiresAt != nil {
		out["expires_at"] = claims.ExpiresAt.Time.UTC()
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *handler) lockoutStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityParam(w, r)
	if !ok {
		return
	}

	st, err := h.guard.Status(r.Context(), identity)
	if err != nil {
		h.adminFailure(w, err)
		return
	}

	resp := lockoutResponse{
		Identity: loginguard.NormalizeIdentity(identity),
		State:    st.State.String(),
		Failures: st.Failures,
	}
	if !st.LastFailureAt.IsZero() {
		t := st.LastFailureAt.UTC()
		resp.LastFailureAt = &t
	}
	if !st.LockedUntil.IsZero() {
		t := st.LockedUntil.UTC()
		resp.LockedUntil = &t
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *handler) unlock(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityParam(w, r)
	if !ok {
		return
	}

	if err := h.guard.Unlock(r.Context(), identity); err != nil {
		h.adminFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, loginguard.ErrLockoutUnavailable) {
		h.logger.Error("lockout backend unavailable", zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	h.logger.Error("lockout administration failed", zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}

func identityParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, err := url.PathUnescape(chi.URLParam(r, "identity"))
	if err != nil || loginguard.NormalizeIdentity(identity) == "" {
		respondWithError(w, http.StatusBadRequest, "invalid identity")
		return "", false
	}
	return identity, true
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
