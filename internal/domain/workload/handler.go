package workload

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/platform/auth"
)

type Handler struct {
	rec *Recommender
}

func NewHandler(rec *Recommender) *Handler {
	return &Handler{rec: rec}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleRegistrar))
	readGroup.GET("/doctors/recommendations", h.Recommend)
	readGroup.GET("/doctors/recommendations/suggest", h.Suggest)
}

func (h *Handler) Recommend(c echo.Context) error {
	order, ok := ParseOrder(c.QueryParam("order"))
	if !ok {
		return apperr.Invalid("order", "oneof", "must be one of: roster load")
	}
	list, err := h.rec.Recommend(c.Request().Context(), order)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  list,
		"total": len(list),
	})
}

func (h *Handler) Suggest(c echo.Context) error {
	d, err := h.rec.Suggest(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
