package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"codearena/internal/api/middleware"
	"codearena/internal/app/service"
	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type ProblemHandler struct {
	problemService *service.ProblemService
}

func NewProblemHandler(ps *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{problemService: ps}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listProblems)
	r.Get("/{slug}", h.getProblem)

	r.Group(func(auth chi.Router) {
		auth.Use(middleware.Authenticator)
		auth.Get("/solved/me", h.listSolved)
		auth.With(middleware.AdminOnly).Post("/", h.createProblem)
	})
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	difficulty := model.ProblemDifficulty(r.URL.Query().Get("difficulty"))

	problems, total, err := h.problemService.ListProblems(r.Context(), limit, offset, difficulty)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"problems": problems,
		"total":    total,
	})
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	problem, err := h.problemService.GetProblemBySlug(r.Context(), slug, middleware.IsAdmin(r.Context()))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.CreateProblemRequest
	if err := common.DecodeJSONBody(r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	problem, err := h.problemService.CreateProblem(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *ProblemHandler) listSolved(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	solved, err := h.problemService.ListSolvedProblems(r.Context(), userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"solved": solved})
}
