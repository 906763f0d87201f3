package appointment

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/service/appointment"
	"github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/httputil"
	"github.com/jwalitptl/medvault-api/pkg/validator"
)

type Handler struct {
	service   *appointment.Service
	validator validator.Validator
}

func NewHandler(service *appointment.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

// RegisterRoutes mounts every appointment route under r. authenticate must
// place the caller's principal in the context.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	appointments := r.Group("/appointments", authenticate, middleware.NoStore())
	{
		appointments.GET("/available", h.ListAvailableSlots)
		appointments.GET("/:id", h.GetAppointment)
	}

	patient := r.Group("/patient/appointments", authenticate, middleware.RequireRole(model.RolePatient))
	{
		patient.POST("", h.CreateAppointment)
		patient.GET("", h.ListPatientAppointments)
		patient.GET("/completed", h.ListCompleted)
		patient.GET("/analytics", h.PatientAnalytics)
	}

	doctor := r.Group("/doctor/appointments", authenticate, middleware.RequireRole(model.RoleDoctor))
	{
		doctor.GET("", h.ListDoctorAppointments)
		doctor.GET("/today", h.ListToday)
		doctor.GET("/analytics", h.DoctorAnalytics)
		doctor.PUT("/:id/approve", h.ApproveAppointment)
		doctor.PUT("/:id/reject", h.RejectAppointment)
		doctor.PUT("/:id/complete", h.CompleteAppointment)
		doctor.PUT("/:id/reschedule", h.RescheduleAppointment)
	}

	admin := r.Group("/admin", authenticate, middleware.RequireRole(model.RoleAdmin, model.RoleMasterAdmin))
	{
		admin.GET("/appointments", h.ListAllAppointments)
		admin.GET("/analytics", h.HospitalAnalytics)
	}
}

func (h *Handler) ListAvailableSlots(c *gin.Context) {
	doctorID, err := parseID(c.Query("doctorId"), "doctorId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	date := c.Query("date")

	slots, err := h.service.ListAvailableSlots(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"doctorId": doctorID,
		"date":     date,
		"slots":    slots,
	})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	principal := mustPrincipal(c)
	id, err := parseID(c.Param("id"), "appointment id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !canRead(principal, apt) {
		httputil.RespondWithError(c, errors.Forbidden("not a participant of this appointment"))
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	principal := mustPrincipal(c)

	var req model.CreateAppointmentRequest
	if !h.bind(c, &req) {
		return
	}
	req.PatientID = principal.UserID
	req.PatientName = principal.Name

	apt, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithStatus(c, http.StatusCreated, apt)
}

func (h *Handler) ListPatientAppointments(c *gin.Context) {
	principal := mustPrincipal(c)
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apts, err := h.service.ListForPatient(c.Request.Context(), principal.UserID, status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apts)
}

func (h *Handler) ListCompleted(c *gin.Context) {
	principal := mustPrincipal(c)

	apts, err := h.service.CompletedForPatient(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apts)
}

func (h *Handler) PatientAnalytics(c *gin.Context) {
	principal := mustPrincipal(c)

	summary, err := h.service.PatientAnalytics(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

func (h *Handler) ListDoctorAppointments(c *gin.Context) {
	principal := mustPrincipal(c)
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apts, err := h.service.ListForDoctor(c.Request.Context(), principal.UserID, status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apts)
}

func (h *Handler) ListToday(c *gin.Context) {
	principal := mustPrincipal(c)

	apts, err := h.service.TodayForDoctor(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apts)
}

func (h *Handler) DoctorAnalytics(c *gin.Context) {
	principal := mustPrincipal(c)

	summary, err := h.service.DoctorAnalytics(c.Request.Context(), principal.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

func (h *Handler) ApproveAppointment(c *gin.Context) {
	id, ok := h.ownedByDoctor(c)
	if !ok {
		return
	}

	apt, err := h.service.Approve(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) RejectAppointment(c *gin.Context) {
	id, ok := h.ownedByDoctor(c)
	if !ok {
		return
	}

	var req model.RejectAppointmentRequest
	if !h.bind(c, &req) {
		return
	}

	apt, err := h.service.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, ok := h.ownedByDoctor(c)
	if !ok {
		return
	}

	apt, err := h.service.Complete(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, ok := h.ownedByDoctor(c)
	if !ok {
		return
	}

	var req model.RescheduleAppointmentRequest
	if !h.bind(c, &req) {
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ListAllAppointments(c *gin.Context) {
	filters, err := adminFilters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if id := c.Query("doctorId"); id != "" {
		doctorID, err := parseID(id, "doctorId")
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		filters.DoctorID = doctorID
	}
	if filters.Status, err = parseStatus(c.Query("status")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apts, err := h.service.ListAll(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apts)
}

func (h *Handler) HospitalAnalytics(c *gin.Context) {
	filters, err := adminFilters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	summary, err := h.service.HospitalAnalytics(c.Request.Context(), filters.HospitalID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

// ownedByDoctor parses :id and checks the appointment was booked with the
// calling doctor. It writes the error response itself.
func (h *Handler) ownedByDoctor(c *gin.Context) (uuid.UUID, bool) {
	principal := mustPrincipal(c)
	id, err := parseID(c.Param("id"), "appointment id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return uuid.Nil, false
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return uuid.Nil, false
	}
	if apt.DoctorID != principal.UserID {
		httputil.RespondWithError(c, errors.Forbidden("appointment belongs to another doctor"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body"))
		return false
	}
	if err := h.validator.Validate(req); err != nil {
		httputil.RespondWithError(c, err)
		return false
	}
	return true
}

// adminFilters scopes ADMIN callers to their own hospital. MASTER_ADMIN may
// pick any hospital or none.
func adminFilters(c *gin.Context) (*model.AppointmentFilters, error) {
	principal := mustPrincipal(c)
	filters := &model.AppointmentFilters{}

	if id := c.Query("hospitalId"); id != "" {
		hospitalID, err := parseID(id, "hospitalId")
		if err != nil {
			return nil, err
		}
		filters.HospitalID = hospitalID
	}

	if principal.Role == model.RoleAdmin {
		if filters.HospitalID != uuid.Nil && filters.HospitalID != principal.HospitalID {
			return nil, errors.Forbidden("admins may only view their own hospital")
		}
		filters.HospitalID = principal.HospitalID
	}
	return filters, nil
}

func canRead(p *model.Principal, apt *model.Appointment) bool {
	switch p.Role {
	case model.RoleMasterAdmin:
		return true
	case model.RoleAdmin:
		return apt.HospitalID == p.HospitalID
	case model.RoleDoctor:
		return apt.DoctorID == p.UserID
	case model.RolePatient:
		return apt.PatientID == p.UserID
	}
	return false
}

func mustPrincipal(c *gin.Context) *model.Principal {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		// Routes are always mounted behind Authenticate.
		panic("handler reached without an authenticated principal")
	}
	return p
}

func parseID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, errors.Validation("%s is required", field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Validation("invalid %s", field)
	}
	return id, nil
}

func parseStatus(raw string) (model.AppointmentStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	status, err := model.ParseAppointmentStatus(raw)
	if err != nil {
		return "", errors.Validation("%v", err)
	}
	return status, nil
}
