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

type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

func NewSubmissionHandler(ss *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/", h.submit)
		authed.Post("/bulk", h.submitBulk)
		authed.Get("/me", h.listMine)
		authed.Get("/problem/{problemID}", h.listMineForProblem)
	})
}

func (h *SubmissionHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.submissionService.Submit(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, submitResponse{
		Message:      "Submission recorded",
		SubmitResult: result,
	})
}

type submitResponse struct {
	Message string `json:"message"`
	*service.SubmitResult
}

func (h *SubmissionHandler) submitBulk(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.BulkSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.submissionService.SubmitBulk(r.Context(), userID, req); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithMessage(w, http.StatusCreated, "Submissions recorded")
}

func (h *SubmissionHandler) listMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	submissions, err := h.submissionService.ListMySubmissions(r.Context(), userID, limit)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"submissions": submissions})
}

func (h *SubmissionHandler) listMineForProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	submissions, err := h.submissionService.ListMySubmissionsForProblem(r.Context(), userID, chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"submissions": submissions})
}
