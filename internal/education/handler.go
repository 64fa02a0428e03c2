package education

import (
	"net/http"

	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/utils"
)

type Handler struct {
	Config config.Config
	Repo   Repository
}

func NewHandler(cfg config.Config, repo Repository) *Handler {
	return &Handler{Config: cfg, Repo: repo}
}

type CompleteLessonRequest struct {
	LessonID string `json:"lesson_id"`
	Points   int64  `json:"points"`
}

func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	usr, ok := r.Context().Value(utils.UserKey).(user.User)
	if !ok {
		utils.BuildErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req CompleteLessonRequest
	if status, err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.BuildErrorResponse(w, status, "Invalid request", map[string]string{"error": err.Error()})
		return
	}

	if req.LessonID == "" || req.Points <= 0 {
		utils.BuildErrorResponse(w, http.StatusBadRequest, "A lesson id and positive points are required", nil)
		return
	}

	score, err := h.Repo.CompleteLesson(usr.ID.String(), req.LessonID, req.Points)
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to record lesson", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Lesson completed", map[string]interface{}{
		"score_earned": req.Points,
		"total_score":  score.Score,
	})
}

func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	usr, _ := r.Context().Value(utils.UserKey).(user.User)

	score, err := h.Repo.GetScore(usr.ID.String())
	if err != nil {
		utils.BuildErrorResponse(w, http.StatusInternalServerError, "Failed to fetch score", nil)
		return
	}

	utils.BuildSuccessResponse(w, http.StatusOK, "Education score", score)
}
