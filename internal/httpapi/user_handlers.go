package httpapi

import (
	"net/http"
	"strings"

	"kauntabook.org/internal/audit"
	"kauntabook.org/internal/auth"
)

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	Status    *string `json:"status"`
}

type listUsersResponse struct {
	Users      []*auth.User    `json:"users"`
	Pagination auth.Pagination `json:"pagination"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, id)
	case http.MethodPut:
		a.updateUser(w, r, id)
	case http.MethodDelete:
		a.deleteUser(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireRole(w, r, auth.RoleSuperAdmin, auth.RoleAdmin); !ok {
		return
	}

	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1, 1, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), 10, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	filter := auth.UserFilter{
		Search: q.Get("search"),
		Role:   auth.Role(strings.TrimSpace(q.Get("role"))),
		Status: auth.Status(strings.TrimSpace(q.Get("status"))),
		Page:   page,
		Limit:  limit,
	}

	users, pagination, err := a.users.List(r.Context(), filter)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listUsersResponse{Users: users, Pagination: pagination})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireRole(w, r, auth.RoleSuperAdmin, auth.RoleAdmin); !ok {
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireRole(w, r, auth.RoleSuperAdmin)
	if !ok {
		return
	}

	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.Create(r.Context(), actor, auth.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      auth.Role(strings.TrimSpace(req.Role)),
	}, requestMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "users.create", map[string]any{
		"target_user_id": user.ID,
		"email":          user.Email,
		"role":           string(user.Role),
	})
	a.publishActivity(auth.ActionCreateUser, actor, "USER", user.ID)

	w.Header().Set("Location", "/v1/users/"+user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    user,
	})
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.requireRole(w, r, auth.RoleSuperAdmin)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	upd := auth.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.Role != nil {
		role := auth.Role(strings.TrimSpace(*req.Role))
		upd.Role = &role
	}
	if req.Status != nil {
		status := auth.Status(strings.TrimSpace(*req.Status))
		upd.Status = &status
	}

	user, err := a.users.Update(r.Context(), actor, id, upd, requestMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "users.update", map[string]any{
		"target_user_id": user.ID,
	})
	a.publishActivity(auth.ActionUpdateUser, actor, "USER", user.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    user,
	})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.requireRole(w, r, auth.RoleSuperAdmin)
	if !ok {
		return
	}

	if err := a.users.Delete(r.Context(), actor, id, requestMeta(r)); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "users.delete", map[string]any{
		"target_user_id": id,
	})
	a.publishActivity(auth.ActionDeleteUser, actor, "USER", id)

	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted successfully"})
}
