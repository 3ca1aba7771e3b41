package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 商品レビューの投稿（一覧はProductHandler側）
type RatingHandler struct {
	uc *usecase.RatingUsecase
}

func NewRatingHandler(uc *usecase.RatingUsecase) *RatingHandler {
	return &RatingHandler{uc: uc}
}

type RateProductRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func (h *RatingHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/products")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("/:id/ratings", h.rate)
}

func (h *RatingHandler) rate(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req RateProductRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.RateProduct(c.Request().Context(), userID, usecase.RateProductInput{
		ProductID: productID,
		Score:     req.Score,
		Comment:   req.Comment,
	}); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "rated"})
}
