package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/usecase"
)

type AdvanceStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type ClaimsResponse struct {
	Claims []domain.ClaimView `json:"claims"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Reason  domain.DenyReason `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type Handler struct {
	claims  usecase.ClaimGateway
	catalog usecase.CatalogReader
}

func NewHandler(claims usecase.ClaimGateway, catalog usecase.CatalogReader) *Handler {
	return &Handler{claims: claims, catalog: catalog}
}

func (h *Handler) Routes(r chi.Router, auth *Authenticator) {
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/deals", h.ListDeals)
		r.Get("/deals/{id}", h.GetDeal)
		r.With(RequireAuth).Post("/deals/{id}/claim", h.ClaimDeal)
		r.With(RequireAuth).Get("/me/claims", h.ListMyClaims)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/claims/{id}", h.GetClaim)
			r.Post("/claims/{id}/status", h.AdvanceStatus)
		})
	})
}

func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: page: %v", domain.ErrInvalidRequest, err))
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: limit: %v", domain.ErrInvalidRequest, err))
		return
	}

	filter := domain.DealFilter{
		Category:    domain.Category(q.Get("category")),
		AccessLevel: domain.AccessLevel(q.Get("access_level")),
		Search:      q.Get("search"),
		Page:        page,
		Limit:       limit,
	}
	result, err := h.catalog.ListDeals(r.Context(), IdentityFrom(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.catalog.GetDeal(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (h *Handler) ClaimDeal(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.IssueClaim(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (h *Handler) ListMyClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.claims.ListUserClaims(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if claims == nil {
		claims = []domain.ClaimView{}
	}
	writeJSON(w, http.StatusOK, ClaimsResponse{Claims: claims})
}

func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.GetClaim(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var req AdvanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrInvalidRequest))
		return
	}
	target, err := domain.ParseClaimStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claim, err := h.claims.AdvanceStatus(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), target, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("not a number")
	}
	return n, nil
}

var statusByCode = map[string]int{
	domain.CodeDealNotFound:      http.StatusNotFound,
	domain.CodeAccessDenied:      http.StatusForbidden,
	domain.CodeAlreadyClaimed:    http.StatusConflict,
	domain.CodeCapacityExhausted: http.StatusConflict,
	domain.CodeInvalidTransition: http.StatusConflict,
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeTransient:         http.StatusServiceUnavailable,
	domain.CodeUnauthenticated:   http.StatusUnauthorized,
	domain.CodeForbidden:         http.StatusForbidden,
	domain.CodeInvalidRequest:    http.StatusBadRequest,
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		message = "internal server error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Reason:  domain.ReasonOf(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
