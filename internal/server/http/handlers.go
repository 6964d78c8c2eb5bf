package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/ratelimit"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst. An empty body is allowed when optional.
func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case optional && errors.Is(err, io.EOF):
		return nil
	default:
		return errs.Validation("Invalid request body")
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errs.Validation("Invalid " + name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errs.Validation("Invalid " + name)
	}
	return n, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, tok, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setAuthCookies(w, tok)
	writeOK(w, http.StatusCreated, "User registered successfully", map[string]any{"user": toUser(u)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, tok, err := s.auth.Login(r.Context(), req.Email, req.Password, ratelimit.ClientIP(r, s.trustXFF))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setAuthCookies(w, tok)
	writeOK(w, http.StatusOK, "Login successful", map[string]any{"user": toUser(u)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		raw = c.Value
	}
	if raw == "" {
		var req refreshRequest
		if err := decode(w, r, &req, true); err != nil {
			s.writeError(w, r, err)
			return
		}
		raw = req.RefreshToken
	}
	tok, err := s.auth.Refresh(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setAuthCookies(w, tok)
	writeOK(w, http.StatusOK, "Token refreshed successfully", map[string]string{
		"accessToken":  tok.AccessToken,
		"refreshToken": tok.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.auth.Logout(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	clearAuthCookies(w, s.cookie)
	writeOK(w, http.StatusOK, "Logout successful", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	u, t, err := s.auth.Me(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "User retrieved successfully", map[string]any{
		"user":   toUser(u),
		"tenant": toTenant(t),
	})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.notes.List(r.Context(), id, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := "Notes retrieved successfully"
	if p.Total == 0 {
		msg = "No notes found"
	}
	writeOK(w, http.StatusOK, msg, toPage(p))
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, usage, err := s.notes.Create(r.Context(), id, req.Title, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Note created successfully", map[string]any{
		"note":  toNote(n),
		"usage": toUsage(usage),
	})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	noteID, err := pathUUID(r, "noteId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.notes.Get(r.Context(), id, noteID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Note retrieved successfully", map[string]any{"note": toNote(n)})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	noteID, err := pathUUID(r, "noteId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req noteRequest
	if err := decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.notes.Update(r.Context(), id, noteID, req.Title, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Note updated successfully", map[string]any{"note": toNote(n)})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	noteID, err := pathUUID(r, "noteId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, usage, err := s.notes.Delete(r.Context(), id, noteID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Note deleted successfully", map[string]any{
		"deletedNote": toNote(n),
		"usage":       toUsage(usage),
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	tenantID, err := pathUUID(r, "tenantId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.tenants.Usage(r.Context(), id, tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Usage retrieved successfully", toUsage(u))
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	tenantID, err := pathUUID(r, "tenantId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.tenants.UpgradePlan(r.Context(), id, tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := res.TenantName + " upgraded to the pro plan"
	if res.AlreadyPro {
		msg = res.TenantName + " is already on the pro plan"
	}
	writeOK(w, http.StatusOK, msg, map[string]any{
		"plan":       string(res.Plan),
		"alreadyPro": res.AlreadyPro,
	})
}
