package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"prep_arena/internal/api/middleware"
	"prep_arena/internal/app/service"
	"prep_arena/internal/common"

	"github.com/go-chi/chi/v5"
)

type ProblemHandler struct {
	problemService *service.ProblemService
}

func NewProblemHandler(ps *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{problemService: ps}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Get("/", h.listProblems)
		public.Get("/{problemID}", h.getProblem)
	})

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/{problemID}/bookmark", h.toggleBookmark)
		authed.Get("/bookmarks", h.listBookmarks)

		authed.Group(func(admin chi.Router) {
			admin.Use(middleware.AdminOnly)
			admin.Post("/", h.createProblem)
		})
	})
}

func (h *ProblemHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req service.CreateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	problem, err := h.problemService.CreateProblem(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	resp, err := h.problemService.ListProblems(r.Context(), q.Get("difficulty"), q.Get("topic"), q.Get("tag"), page, limit)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problemID := chi.URLParam(r, "problemID")

	problem, err := h.problemService.GetProblem(r.Context(), problemID, middleware.IsAdmin(r.Context()))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookmarked, err := h.problemService.ToggleBookmark(r.Context(), userID, chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]bool{"bookmarked": bookmarked})
}

func (h *ProblemHandler) listBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ids, err := h.problemService.ListBookmarks(r.Context(), userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string][]string{"bookmarks": ids})
}
