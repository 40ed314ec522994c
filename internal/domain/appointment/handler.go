package appointment

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	g := api.Group("/appointments")

	g.POST("/book", h.Book, auth.RequireRole(auth.RolePatient))
	g.GET("/my-appointments", h.ListMine, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.DELETE("/:id", h.Delete, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.PUT("/complete", h.Complete, auth.RequireRole(auth.RoleDoctor))
	g.PUT("/:id/status", h.SetStatus, auth.RequireRole(auth.RoleDoctor))
}

// Missing fields are reported by the service as one message; the tags
// only reject malformed values.
type bookRequest struct {
	DoctorID string `json:"doctorId" validate:"omitempty,uuid"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time     string `json:"time"`
}

func (r bookRequest) doctorID() uuid.UUID {
	if r.DoctorID == "" {
		return uuid.Nil
	}
	return uuid.MustParse(r.DoctorID)
}

func (h *Handler) Book(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	var req bookRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}

	a, err := h.svc.Book(c.Request().Context(), actor, BookInput{
		DoctorProfileID: req.doctorID(),
		Date:            req.Date,
		Time:            req.Time,
	})
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, "Appointment booked successfully", echo.Map{"appointment": a})
}

func (h *Handler) ListMine(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListMine(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", echo.Map{"appointments": items})
}

func (h *Handler) Delete(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "Appointment deleted successfully", nil)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}

	a, err := h.svc.SetStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Appointment %s successfully", a.Status)
	return httpx.OK(c, http.StatusOK, msg, echo.Map{"appointment": a})
}

type completeRequest struct {
	AppointmentID       string     `json:"appointmentId" validate:"required,uuid"`
	PrescriptionContent string     `json:"prescriptionContent"`
	Medicines           []Medicine `json:"medicines"`
}

func (h *Handler) Complete(c echo.Context) error {
	actor, err := httpx.Actor(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}

	a, err := h.svc.Complete(c.Request().Context(), actor, CompleteInput{
		AppointmentID:       uuid.MustParse(req.AppointmentID),
		PrescriptionContent: req.PrescriptionContent,
		Medicines:           req.Medicines,
	})
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "Appointment marked as completed and prescription saved", echo.Map{"appointment": a})
}
