package borrows

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"CLIS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts the ledger API. r は RequireAuth 済みのグループ、
// admin は RequireRole("admin") 済みのグループを渡す。
func RegisterRoutes(r gin.IRoutes, admin gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 一覧・詳細は全ロール（非adminは自分の分のみ）
	r.GET("/borrowed", h.ListBorrows)
	r.GET("/borrowed/:id", h.GetBorrow)

	// 貸出・返却・編集・削除は admin のみ
	admin.POST("/borrowed", h.CreateBorrow)
	admin.PUT("/borrowed/:id", h.UpdateBorrow)
	admin.DELETE("/borrowed/:id", h.DeleteBorrow)
	admin.POST("/borrowed/:id/return", h.ReturnBorrow)
	admin.POST("/borrowed/sweep", h.RunSweep)
}

// ---------- handlers ----------

// ListBorrows godoc
// @Summary 貸出一覧
// @Tags borrowed
// @Produce json
// @Success 200 {array} BorrowResponse
// @Router /borrowed [get]
func (h *Handler) ListBorrows(c *gin.Context) {
	f := Filter{}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid user_id format"))
			return
		}
		f.UserID = &id
	}
	if v := c.Query("item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid item_id format"))
			return
		}
		f.ItemID = &id
	}
	if v := c.Query("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			c.JSON(toHTTPStatus(err), errorFromErr(err))
			return
		}
		f.Status = &st
	}
	if v := c.Query("overdue_only"); v == "true" || v == "1" {
		f.OverdueOnly = true
	}

	// 非adminは自分の貸出しか見えない
	if auth.CallerRole(c) != auth.RoleAdmin {
		uid := auth.CallerID(c)
		f.UserID = &uid
	}

	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 100),
		Offset: parseIntDefault(c.Query("skip"), 0),
	}

	res, err := h.svc.ListBorrows(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetBorrow(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid borrow id"))
		return
	}

	res, err := h.svc.GetBorrow(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}

	if auth.CallerRole(c) != auth.RoleAdmin && res.UserID != auth.CallerID(c) {
		c.JSON(http.StatusForbidden, errorBody(CodeConflict, "not authorized to view this borrow log"))
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateBorrow godoc
// @Summary 貸出登録（在庫予約つき）
// @Tags borrowed
// @Accept json
// @Produce json
// @Success 201 {object} BorrowResponse
// @Router /borrowed [post]
func (h *Handler) CreateBorrow(c *gin.Context) {
	var req CreateBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.CreateBorrow(c.Request.Context(), auth.CallerID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateBorrow(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid borrow id"))
		return
	}

	var req UpdateBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}

	res, err := h.svc.UpdateBorrow(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteBorrow(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid borrow id"))
		return
	}

	if err := h.svc.DeleteBorrow(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Borrow log deleted successfully"})
}

// ReturnBorrow godoc
// @Summary 返却登録（在庫解放つき）
// @Tags borrowed
// @Accept json
// @Produce json
// @Success 200 {object} BorrowResponse
// @Router /borrowed/{id}/return [post]
func (h *Handler) ReturnBorrow(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid borrow id"))
		return
	}

	var req ReturnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
			return
		}
	}

	res, err := h.svc.ReturnBorrow(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item returned successfully", "borrow_log": res})
}

// RunSweep: 手動で延滞判定を1回走らせる（定期実行と同じ経路）
func (h *Handler) RunSweep(c *gin.Context) {
	now := h.svc.Now()
	n, err := h.svc.RunOverdueSweep(c.Request.Context(), now)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, SweepResponse{TransitionedCount: n, RanAt: now})
}

// ---------- helpers ----------

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	var api *APIError
	if errors.As(err, &api) {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
