package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"codearena/internal/api/middleware"
	"codearena/internal/app/service"
	"codearena/internal/common"
)

type ContestHandler struct {
	contestService *service.ContestService
}

func NewContestHandler(cs *service.ContestService) *ContestHandler {
	return &ContestHandler{contestService: cs}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listContests)
	r.Get("/{contestID}", h.getContest)
	r.Get("/{contestID}/leaderboard", h.leaderboard)

	r.Group(func(auth chi.Router) {
		auth.Use(middleware.Authenticator)
		auth.Get("/{contestID}/progress", h.getProgress)
		auth.Post("/{contestID}/problems/{problemID}/visit", h.recordVisit)
	})
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	contests, total, err := h.contestService.ListContests(r.Context(), limit, offset)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"contests": contests,
		"total":    total,
	})
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contestService.GetContest(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	standings, err := h.contestService.Leaderboard(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"standings": standings})
}

func (h *ContestHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	progress, err := h.contestService.GetProgress(r.Context(), userID, chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, progress)
}

func (h *ContestHandler) recordVisit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	err := h.contestService.RecordVisit(r.Context(), userID,
		chi.URLParam(r, "contestID"), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
