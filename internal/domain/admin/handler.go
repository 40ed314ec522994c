package admin

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getadoc/getadoc/internal/platform/auth"
	"github.com/getadoc/getadoc/internal/platform/httpx"
	"github.com/getadoc/getadoc/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))

	g.GET("/users", h.ListUsers)
	g.GET("/appointments", h.ListAppointments)
	g.DELETE("/users/:id", h.DeleteUser)
}

func (h *Handler) ListUsers(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), actor, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", echo.Map{"users": users, "page": p.Page(total)})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), actor, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", echo.Map{"appointments": items, "page": p.Page(total)})
}

func (h *Handler) DeleteUser(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	summary, err := h.svc.DeleteAccount(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("%s and all associated records deleted successfully", summary.Role)
	return httpx.OK(c, http.StatusOK, msg, echo.Map{"deleted": summary})
}
