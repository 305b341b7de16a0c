package items

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"CLIS-backend/internal/platform/auth"
)

type Handler struct {
	svc        *Service
	uploadsDir string
}

// RegisterRoutes mounts the item API. r は RequireAuth 済みのグループ、
// admin は RequireRole("admin") 済みのグループを渡す。
func RegisterRoutes(r gin.IRoutes, admin gin.IRoutes, svc *Service, uploadsDir string) {
	h := &Handler{svc: svc, uploadsDir: uploadsDir}

	r.GET("/items", h.ListItems)
	r.GET("/items/:id", h.GetItem)

	admin.POST("/items", h.CreateItem)
	admin.PUT("/items/:id", h.UpdateItem)
	admin.DELETE("/items/:id", h.DeleteItem)
}

// ---------- handlers ----------

// ListItems godoc
// @Summary 物品一覧
// @Tags items
// @Produce json
// @Success 200 {array} ItemResponse
// @Router /items [get]
func (h *Handler) ListItems(c *gin.Context) {
	f := Filter{Search: c.Query("search")}
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid category_id format"))
			return
		}
		f.CategoryID = &id
	}
	if v := c.Query("storage_location"); v != "" {
		f.StorageLocation = &v
	}
	if v := c.Query("condition"); v != "" {
		f.Condition = &v
	}
	if v := c.Query("low_stock"); v == "true" || v == "1" {
		f.LowStock = true
	}
	if v := c.Query("borrowable_only"); v == "true" || v == "1" {
		f.BorrowableOnly = true
	}

	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 100),
		Offset: parseIntDefault(c.Query("skip"), 0),
	}

	list, err := h.svc.ListItems(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	out := make([]ItemResponse, 0, len(list))
	for _, d := range list {
		out = append(out, buildItemResponse(d))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid item id"))
		return
	}
	d, err := h.svc.GetItem(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, buildItemResponse(d))
}

// CreateItem godoc
// @Summary 物品登録（画像は multipart の image パート）
// @Tags items
// @Accept mpfd
// @Produce json
// @Success 201 {object} ItemResponse
// @Router /items [post]
func (h *Handler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid form or missing required fields"))
		return
	}
	imageURL, err := saveImageUpload(c, h.uploadsDir)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}

	d, err := h.svc.CreateItem(c.Request.Context(), auth.CallerID(c), req, imageURL)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, buildItemResponse(d))
}

func (h *Handler) UpdateItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid item id"))
		return
	}
	var req UpdateItemRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid form"))
		return
	}
	imageURL, err := saveImageUpload(c, h.uploadsDir)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}

	d, err := h.svc.UpdateItem(c.Request.Context(), id, req, imageURL)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, buildItemResponse(d))
}

func (h *Handler) DeleteItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid item id"))
		return
	}
	if err := h.svc.DeleteItem(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
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
