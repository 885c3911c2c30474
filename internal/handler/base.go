package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
)

// Keys set on the gin context by the middleware chain.
const (
	ContextUserID    = "user_id"
	ContextRole      = "role"
	ContextRequestID = "request_id"
)

// Groups are the route groups handlers attach to. Admin, Patient and
// Caregiver already require a session with that role.
type Groups struct {
	API       *gin.RouterGroup
	Public    *gin.RouterGroup
	Admin     *gin.RouterGroup
	Patient   *gin.RouterGroup
	Caregiver *gin.RouterGroup
}

// CurrentUser returns the identity set by the authentication middleware.
func CurrentUser(c *gin.Context) (uuid.UUID, model.Role, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, "", false
	}
	uid, ok := id.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(model.Role)
	return uid, r, true
}

// MustUser is CurrentUser for routes behind authentication. It writes a 401
// and returns false when no identity is present.
func MustUser(c *gin.Context) (uuid.UUID, model.Role, bool) {
	id, role, ok := CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse("Access denied. No token provided."))
	}
	return id, role, ok
}

// ParamID parses the :id path parameter, writing a 400 when it is malformed.
func ParamID(c *gin.Context, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Invalid "+resource+" ID"))
		return uuid.Nil, false
	}
	return id, true
}
