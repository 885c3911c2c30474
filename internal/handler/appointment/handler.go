package appointment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/handler"
	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/appointment"
)

type Handler struct {
	svc *appointment.Service
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g handler.Groups) {
	g.Patient.POST("/appointments", h.RequestAppointment)
	g.Patient.GET("/appointments", h.ListOwn)

	admin := g.Admin.Group("/admin/appointments")
	{
		admin.GET("", h.List)
		admin.GET("/:id", h.Get)
		admin.PATCH("/:id", h.AdminUpdate)
		admin.PATCH("/:id/cancel", h.Cancel)
	}

	caregiver := g.Caregiver.Group("/caregiver/appointments")
	{
		caregiver.GET("", h.ListAssigned)
		caregiver.PATCH("/:id", h.CaregiverUpdate)
	}
}

type listQuery struct {
	Status      []model.AppointmentStatus `form:"status" binding:"omitempty,dive,appointment_status"`
	Department  string                    `form:"department"`
	PatientID   string                    `form:"patientId" binding:"omitempty,uuid"`
	CaregiverID string                    `form:"caregiverId" binding:"omitempty,uuid"`
}

func (q listQuery) filter() model.AppointmentFilter {
	f := model.AppointmentFilter{Status: q.Status, Department: q.Department}
	if id, err := uuid.Parse(q.PatientID); err == nil {
		f.PatientID = &id
	}
	if id, err := uuid.Parse(q.CaregiverID); err == nil {
		f.CaregiverID = &id
	}
	return f
}

func (h *Handler) RequestAppointment(c *gin.Context) {
	patientID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}

	var req model.RequestAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	apt, err := h.svc.RequestAppointment(c.Request.Context(), patientID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.AppointmentResponse{Message: "Appointment requested successfully", Appointment: apt})
}

func (h *Handler) ListOwn(c *gin.Context) {
	patientID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}
	h.respondList(c, func() ([]*model.Appointment, error) {
		return h.svc.ListForPatient(c.Request.Context(), patientID)
	})
}

func (h *Handler) ListAssigned(c *gin.Context) {
	caregiverID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}
	h.respondList(c, func() ([]*model.Appointment, error) {
		return h.svc.ListForCaregiver(c.Request.Context(), caregiverID)
	})
}

func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	h.respondList(c, func() ([]*model.Appointment, error) {
		return h.svc.List(c.Request.Context(), q.filter())
	})
}

func (h *Handler) respondList(c *gin.Context, list func() ([]*model.Appointment, error)) {
	apts, err := list()
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apts)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "appointment")
	if !ok {
		return
	}

	apt, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apt)
}

func (h *Handler) AdminUpdate(c *gin.Context) {
	actorID, role, ok := handler.MustUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "appointment")
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	apt, err := h.svc.AdminUpdate(c.Request.Context(), id, appointment.Actor{ID: actorID, Role: role}, req.Update())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.AppointmentResponse{Message: "Appointment updated successfully", Appointment: apt})
}

func (h *Handler) Cancel(c *gin.Context) {
	actorID, role, ok := handler.MustUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "appointment")
	if !ok {
		return
	}

	// The body is optional.
	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		handler.RespondBindError(c, err)
		return
	}

	apt, err := h.svc.Cancel(c.Request.Context(), id, appointment.Actor{ID: actorID, Role: role}, req.Status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.AppointmentResponse{Message: "Appointment cancelled successfully", Appointment: apt})
}

func (h *Handler) CaregiverUpdate(c *gin.Context) {
	caregiverID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "appointment")
	if !ok {
		return
	}

	var req model.CaregiverUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	apt, err := h.svc.CaregiverUpdate(c.Request.Context(), id, caregiverID, req.Status, req.EndTime)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.AppointmentResponse{Message: "Appointment and patient updated successfully", Appointment: apt})
}
