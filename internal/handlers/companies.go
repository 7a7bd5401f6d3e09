package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/otcheredev/roadservice-api/internal/services"
)

type CompanyHandler struct {
	companies *services.CompanyService
	audit     *services.AuditTrail
}

func NewCompanyHandler(companies *services.CompanyService, audit *services.AuditTrail) *CompanyHandler {
	return &CompanyHandler{companies: companies, audit: audit}
}

// MyCompany returns the caller's tenant
func (h *CompanyHandler) MyCompany(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	company, err := h.companies.MyCompany(r.Context(), actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, company)
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req models.CompanyRequest
	if err := decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	company, err := h.companies.Create(r.Context(), actor, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, company)
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	offset, limit := page(r)
	companies, err := h.companies.List(r.Context(), actor, offset, limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, companies)
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	company, err := h.companies.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, company)
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var patch models.CompanyUpdate
	if err := decode(w, r, &patch); err != nil {
		respond.Error(w, r, err)
		return
	}

	company, err := h.companies.Update(r.Context(), actor, chi.URLParam(r, "id"), patch)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, company)
}

func (h *CompanyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	stats, err := h.companies.Stats(r.Context(), actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

// AuditLogs lists audit entries for the caller's tenant, or all for a super admin
func (h *CompanyHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	offset, limit := page(r)
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	entries, err := h.audit.List(r.Context(), actor, limit, offset)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, entries)
}
