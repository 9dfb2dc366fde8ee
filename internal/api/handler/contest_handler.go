package handler

import (
	"encoding/json"
	"net/http"

	"prep_arena/internal/api/middleware"
	"prep_arena/internal/app/service"
	"prep_arena/internal/common"

	"github.com/go-chi/chi/v5"
)

type ContestHandler struct {
	contestService *service.ContestService
	ratingService  *service.RatingService
}

func NewContestHandler(cs *service.ContestService, rs *service.RatingService) *ContestHandler {
	return &ContestHandler{contestService: cs, ratingService: rs}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Get("/", h.listContests)
		public.Get("/{contestID}", h.getContest)
		public.Get("/{contestID}/scoreboard", h.scoreboard)
	})

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/{contestID}/register", h.register)

		authed.Group(func(admin chi.Router) {
			admin.Use(middleware.AdminOnly)
			admin.Post("/", h.createContest)
			admin.Post("/{contestID}/problems", h.addContestProblem)
			admin.Post("/{contestID}/finalize", h.finalizeContest)
		})
	})
}

func (h *ContestHandler) createContest(w http.ResponseWriter, r *http.Request) {
	var req service.CreateContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	contest, err := h.contestService.CreateContest(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, contest)
}

func (h *ContestHandler) addContestProblem(w http.ResponseWriter, r *http.Request) {
	var req service.CreateContestProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	problem, err := h.contestService.AddContestProblem(r.Context(), chi.URLParam(r, "contestID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *ContestHandler) register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.contestService.Register(r.Context(), chi.URLParam(r, "contestID"), userID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Registered for contest")
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	contests, err := h.contestService.ListContests(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contests)
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contestService.GetContest(r.Context(), chi.URLParam(r, "contestID"), middleware.IsAdmin(r.Context()))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) scoreboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.contestService.Scoreboard(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"scoreboard": entries})
}

func (h *ContestHandler) finalizeContest(w http.ResponseWriter, r *http.Request) {
	if err := h.ratingService.FinalizeContest(r.Context(), chi.URLParam(r, "contestID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Contest finalized")
}
