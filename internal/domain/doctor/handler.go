package doctor

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/getadoc/getadoc/internal/platform/auth"
	"github.com/getadoc/getadoc/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/doctors")

	// Any authenticated actor can browse doctors.
	g.GET("", h.ListDoctors)
	g.GET("/:id", h.GetDoctor)

	g.POST("/create", h.CreateProfile, auth.RequireRole(auth.RoleDoctor))
	g.PUT("/availability", h.UpdateAvailability, auth.RequireRole(auth.RoleDoctor))
}

type createProfileRequest struct {
	Specialization string           `json:"specialization" validate:"required"`
	Experience     *int             `json:"experience" validate:"required,gte=0,lte=100"`
	Fees           *decimal.Decimal `json:"fees" validate:"required"`
}

func (h *Handler) CreateProfile(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	var req createProfileRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}

	p, err := h.svc.CreateProfile(c.Request().Context(), actor, CreateInput{
		Specialization:  req.Specialization,
		ExperienceYears: req.Experience,
		Fee:             req.Fees,
	})
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, "Doctor profile Created", echo.Map{"doctor": p})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", echo.Map{"doctors": doctors})
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	doctor, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", echo.Map{"doctor": doctor})
}

type availabilityRequest struct {
	AvailableSlots []string `json:"availableSlots" validate:"required"`
}

func (h *Handler) UpdateAvailability(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	var req availabilityRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.SetAvailability(c.Request().Context(), actor, req.AvailableSlots); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "Availability updated", nil)
}
