package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"CLIS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts the dashboard API on a RequireAuth 済みのグループ。
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/dashboard/stats", h.GetStats)
}

// GetStats godoc
// @Summary ダッシュボード集計（viewer は自分の貸出のみ）
// @Tags dashboard
// @Produce json
// @Success 200 {object} Stats
// @Router /dashboard/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	st, err := h.svc.GetStats(c.Request.Context(), auth.CallerID(c), auth.CallerRole(c) == auth.RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL", "message": "failed to collect stats"}})
		return
	}
	c.JSON(http.StatusOK, st)
}
