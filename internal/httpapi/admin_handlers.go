package httpapi

import (
	"net/http"
	"strings"

	"schedulehub.org/internal/audit"
	"schedulehub.org/internal/auth"
)

type createAdminRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	FacultyID *int64 `json:"facultyId"`
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	FullName  *string `json:"fullName"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
	FacultyID *int64  `json:"facultyId"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.directory.ListUsers(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(users))
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.directory.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
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
	user, err := a.directory.CreateAdmin(r.Context(), auth.NewUser{
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		Role:      role,
		FacultyID: req.FacultyID,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.created", map[string]any{
		"target_id":  user.ID,
		"role":       string(user.Role),
		"faculty_id": user.FacultyID,
	})
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUserRole takes role and facultyId as query parameters.
func (a *API) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	facultyID, err := optionalID(r, "facultyId")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.directory.UpdateRole(r.Context(), id, role, facultyID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.role_changed", map[string]any{
		"target_id":  user.ID,
		"role":       string(user.Role),
		"faculty_id": user.FacultyID,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := auth.UserUpdate{
		Email:     req.Email,
		FullName:  req.FullName,
		Password:  req.Password,
		FacultyID: req.FacultyID,
	}
	if req.Role != nil && strings.TrimSpace(*req.Role) != "" {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			handleError(w, r, err)
			return
		}
		upd.Role = &role
	}
	user, err := a.directory.UpdateUser(r.Context(), id, upd)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.updated", map[string]any{
		"target_id":  user.ID,
		"role":       string(user.Role),
		"faculty_id": user.FacultyID,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.directory.DeleteUser(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.deleted", map[string]any{"target_id": id})
	w.WriteHeader(http.StatusNoContent)
}
