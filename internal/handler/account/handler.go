package account

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/david-solomon-henshaw/MedAppV1/internal/handler"
	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/account"
)

type Handler struct {
	svc *account.Service
}

func NewHandler(svc *account.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g handler.Groups) {
	g.Public.POST("/patients/register", h.RegisterPatient)
	g.Patient.GET("/patients/me/profile", h.Profile)

	g.Admin.POST("/admins", h.RegisterAdmin)
	g.Admin.POST("/caregivers", h.CreateCaregiver)
	g.Admin.GET("/caregivers", h.ListCaregivers)
	g.Admin.PATCH("/caregivers/:id", h.UpdateCaregiver)
	g.Admin.DELETE("/caregivers/:id", h.DeleteCaregiver)

	g.Caregiver.GET("/caregivers/me/profile", h.CaregiverProfile)
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req model.RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	patient, err := h.svc.RegisterPatient(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Patient registered successfully", "patient": patient})
}

func (h *Handler) RegisterAdmin(c *gin.Context) {
	actorID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}

	var req model.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	admin, err := h.svc.RegisterAdmin(c.Request.Context(), actorID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Admin registered successfully", "admin": admin})
}

func (h *Handler) CreateCaregiver(c *gin.Context) {
	actorID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}

	var req model.CreateCaregiverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	caregiver, err := h.svc.CreateCaregiver(c.Request.Context(), actorID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Caregiver created successfully", "caregiver": caregiver})
}

func (h *Handler) ListCaregivers(c *gin.Context) {
	caregivers, err := h.svc.ListCaregivers(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, caregivers)
}

func (h *Handler) Profile(c *gin.Context) {
	patientID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}

	profile, err := h.svc.PatientProfile(c.Request.Context(), patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile.Patient, "statistics": profile.Statistics})
}

func (h *Handler) UpdateCaregiver(c *gin.Context) {
	actorID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "caregiver")
	if !ok {
		return
	}

	var req model.UpdateCaregiverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	caregiver, err := h.svc.UpdateCaregiver(c.Request.Context(), actorID, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Caregiver updated successfully", "caregiver": caregiver})
}

func (h *Handler) DeleteCaregiver(c *gin.Context) {
	actorID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "caregiver")
	if !ok {
		return
	}

	if err := h.svc.DeleteCaregiver(c.Request.Context(), actorID, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Caregiver deleted successfully"})
}

func (h *Handler) CaregiverProfile(c *gin.Context) {
	caregiverID, _, ok := handler.MustUser(c)
	if !ok {
		return
	}

	caregiver, err := h.svc.GetCaregiver(c.Request.Context(), caregiverID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": caregiver})
}
