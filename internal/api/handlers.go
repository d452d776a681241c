package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tOgg1/leasedesk/internal/auth"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/workflow"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}

	user, err := s.store.Users.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.writeDomainError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", auth.ErrInvalidCredentials.Error(), nil)
		return
	}

	token, expires, err := s.issuer.Issue(user)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	logger := s.log(r)
	logger.Info().Str("user_id", user.ID).Msg("login")
	writeJSON(w, http.StatusOK, map[string]any{
		"token":                token,
		"expires_at":           expires.Format(time.RFC3339),
		"user":                 user,
		"must_change_password": user.MustChangePassword,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.Users.Get(r.Context(), claimsFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuildingID     string          `json:"building_id"`
		SelectedSpaces json.RawMessage `json:"selected_spaces"`
		TotalPrice     float64         `json:"total_price"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}

	sub, err := s.engine.SubmitRequest(r.Context(), workflow.SubmitInput{
		RequesterID:    claimsFrom(r.Context()).Subject,
		BuildingID:     req.BuildingID,
		SelectedSpaces: req.SelectedSpaces,
		TotalPrice:     req.TotalPrice,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id": requestIDFrom(r.Context()),
		"request":    sub.Request,
		"approvals":  sub.Approvals,
	})
}

// handleChangePassword replaces the caller's password after checking the
// current one. It also clears must_change_password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	if req.NewPassword == "" {
		s.writeDomainError(w, r, models.Invalid("new_password", "new password is required"))
		return
	}

	ctx := r.Context()
	user, err := s.store.Users.Get(ctx, claimsFrom(ctx).Subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !auth.CheckPassword(req.OldPassword, user.PasswordHash) {
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", auth.ErrInvalidCredentials.Error(), nil)
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.store.Users.SetPassword(ctx, user.ID, hash); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	logger := s.log(r)
	logger.Info().Msg("password changed")
	w.WriteHeader(http.StatusNoContent)
}

// handleListRequests lists the caller's requests. Administrators may pass
// all=1 and an optional status to see every request.
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		requests []*models.RentalRequest
		err      error
	)
	if isAdmin(ctx) && r.URL.Query().Get("all") == "1" {
		requests, err = s.engine.ListAllRequests(ctx, models.RequestStatus(r.URL.Query().Get("status")))
	} else {
		requests, err = s.engine.ListRequests(ctx, claimsFrom(ctx).Subject)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": nonNil(requests)})
}

// handleGetRequest is visible to the requester, administrators and signers
// in the request's chain.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	detail, err := s.engine.ViewRequest(ctx, claimsFrom(ctx).Subject, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleRequestHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := s.engine.RequestHistory(ctx, claimsFrom(ctx).Subject, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if history == nil {
		history = []*models.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": history})
}

// handlePendingApprovals returns the caller's signer inbox. Administrators
// may inspect another signer with signer_id.
func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	signerID := r.URL.Query().Get("signer_id")
	if signerID == "" || !isAdmin(ctx) {
		signer, err := s.engine.SignerForUser(ctx, claimsFrom(ctx).Subject)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		signerID = signer.ID
	}

	tasks, err := s.engine.Inbox(ctx, signerID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signer_id": signerID, "tasks": nonNil(tasks)})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Comment string `json:"comment"`
	}
	// The body is optional.
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}

	res, err := s.engine.Approve(r.Context(), chi.URLParam(r, "id"), claimsFrom(r.Context()).Subject, req.Comment)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}

	res, err := s.engine.Decline(r.Context(), chi.URLParam(r, "id"), claimsFrom(r.Context()).Subject, req.Reason)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := claimsFrom(ctx).Subject
	if isAdmin(ctx) && r.URL.Query().Get("all") == "1" {
		userID = ""
	}
	contracts, err := s.engine.ListContracts(ctx, userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": nonNil(contracts)})
}

func (s *Server) handleUpdateContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status      *string `json:"status"`
		ZeroRisk    *bool   `json:"zero_risk"`
		ZeroRiskDoc *string `json:"zero_risk_doc"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}

	var update models.ContractUpdate
	if req.Status != nil {
		status, err := models.ParseContractStatus(*req.Status)
		if err != nil {
			s.writeDomainError(w, r, models.Invalid("status", err.Error()))
			return
		}
		update.Status = models.Some(status)
	}
	if req.ZeroRisk != nil {
		update.ZeroRisk = models.Some(*req.ZeroRisk)
	}
	if req.ZeroRiskDoc != nil {
		update.ZeroRiskDoc = models.Some(*req.ZeroRiskDoc)
	}

	contract, err := s.engine.UpdateContract(r.Context(), claimsFrom(r.Context()).Subject, chi.URLParam(r, "id"), update)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeDomainError(w, r, models.Invalid("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	notes, err := s.engine.ListNotifications(r.Context(), claimsFrom(r.Context()).Subject, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(notes)})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.MarkNotificationRead(r.Context(), claimsFrom(r.Context()).Subject, chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSigners(w http.ResponseWriter, r *http.Request) {
	filter := models.SignerFilter{Position: strings.TrimSpace(r.URL.Query().Get("position"))}
	if region := strings.TrimSpace(r.URL.Query().Get("region_id")); region != "" {
		filter.RegionID = &region
	}
	signers, err := s.signers.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signers": nonNil(signers)})
}

func (s *Server) handleCreateSigner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string  `json:"name"`
		Position     string  `json:"position"`
		Email        string  `json:"email"`
		Phone        string  `json:"phone"`
		RegionID     *string `json:"region_id"`
		SigningOrder int     `json:"signing_order"`
		Status       string  `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}

	signer := &models.Signer{
		Name:         req.Name,
		Position:     req.Position,
		Email:        req.Email,
		Phone:        req.Phone,
		RegionID:     req.RegionID,
		SigningOrder: req.SigningOrder,
		Status:       models.SignerStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	}
	if err := s.signers.Create(r.Context(), claimsFrom(r.Context()).Subject, signer); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signer)
}

// signerPatch decodes a partial signer update. region_id distinguishes an
// absent key from an explicit null (make global).
type signerPatch struct {
	Name         *string         `json:"name"`
	Position     *string         `json:"position"`
	Email        *string         `json:"email"`
	Phone        *string         `json:"phone"`
	RegionID     json.RawMessage `json:"region_id"`
	SigningOrder *int            `json:"signing_order"`
	Status       *string         `json:"status"`
}

func (p signerPatch) update() (models.SignerUpdate, error) {
	var u models.SignerUpdate
	if p.Name != nil {
		u.Name = models.Some(*p.Name)
	}
	if p.Position != nil {
		u.Position = models.Some(*p.Position)
	}
	if p.Email != nil {
		u.Email = models.Some(*p.Email)
	}
	if p.Phone != nil {
		u.Phone = models.Some(*p.Phone)
	}
	if len(p.RegionID) > 0 {
		var region *string
		if err := json.Unmarshal(p.RegionID, &region); err != nil {
			return u, models.Invalid("region_id", "region_id must be a string or null")
		}
		u.RegionID = models.Some(region)
	}
	if p.SigningOrder != nil {
		u.SigningOrder = models.Some(*p.SigningOrder)
	}
	if p.Status != nil {
		status, err := models.ParseSignerStatus(*p.Status)
		if err != nil {
			return u, models.Invalid("status", err.Error())
		}
		u.Status = models.Some(status)
	}
	return u, nil
}

func (s *Server) handleUpdateSigner(w http.ResponseWriter, r *http.Request) {
	var patch signerPatch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error(), nil)
		return
	}
	update, err := patch.update()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	signer, err := s.signers.Update(r.Context(), claimsFrom(r.Context()).Subject, chi.URLParam(r, "id"), update)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signer)
}

func (s *Server) handleDeleteSigner(w http.ResponseWriter, r *http.Request) {
	if err := s.signers.Delete(r.Context(), claimsFrom(r.Context()).Subject, chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResolveChain(w http.ResponseWriter, r *http.Request) {
	chain, err := s.signers.ResolveChain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signers": nonNil(chain)})
}

// nonNil renders empty listings as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
