package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"schedulehub.org/internal/audit"
	"schedulehub.org/internal/auth"
)

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	MiddleName string `json:"middleName"`
	Role       string `json:"role"`
	FacultyID  *int64 `json:"facultyId"`
}

// displayName prefers fullName and otherwise joins the name parts.
func (r registerRequest) displayName() string {
	if name := strings.TrimSpace(r.FullName); name != "" {
		return name
	}
	var parts []string
	for _, p := range []string{r.LastName, r.FirstName, r.MiddleName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type authenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var role auth.Role
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			handleError(w, r, err)
			return
		}
		role = parsed
	}
	pair, err := a.auth.Register(r.Context(), auth.Registration{
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.displayName(),
		Role:      role,
		FacultyID: req.FacultyID,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
		"role":  string(role),
	})
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	pair, err := a.auth.Authenticate(r.Context(), auth.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{"email": email})
		}
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login.succeeded", map[string]any{"email": email})
	writeJSON(w, http.StatusOK, pair)
}

// handleRefreshToken answers every failure with a bare 401 so callers cannot
// tell an expired token from a forged one.
func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		_ = audit.LogEvent(r.Context(), "auth.refresh.failed", nil)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set(authHeader, bearer+pair.AccessToken)
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, err := a.directory.Me(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
