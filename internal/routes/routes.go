package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth         *handler.AuthHandler
	Tutors       *handler.TutorHandler
	Availability *handler.AvailabilityHandler
	Bookings     *handler.BookingHandler
	Earnings     *handler.EarningsHandler
	Metrics      *handler.MetricsHandler
}

// Register mounts the ops endpoints at the root and the API under prefix.
func Register(r *gin.Engine, prefix string, auth *service.AuthService, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)

	public := api.Group("", middleware.OptionalJWT(auth))
	public.GET("/tutors", h.Tutors.List)
	public.GET("/tutors/:id", h.Tutors.Get)
	public.GET("/tutors/:id/availability", h.Tutors.Availability)

	secured := api.Group("", middleware.JWT(auth))
	secured.GET("/auth/me", h.Auth.Me)

	tutor := secured.Group("/me", middleware.RequireRoles(models.RoleTutor))
	tutor.GET("/tutor-profile", h.Tutors.GetOwn)
	tutor.PUT("/tutor-profile", h.Tutors.UpsertOwn)
	tutor.GET("/availability", h.Availability.Get)
	tutor.PUT("/availability", h.Availability.Replace)
	tutor.POST("/availability/slots", h.Availability.AddSlot)
	tutor.DELETE("/availability/slots/:slotId", h.Availability.DeleteSlot)
	tutor.POST("/availability/days/:day/toggle", h.Availability.ToggleDay)
	tutor.POST("/availability/days/:day/copy", h.Availability.CopyDay)
	tutor.POST("/availability/clear", h.Availability.Clear)
	tutor.GET("/earnings", middleware.WithResponseMeta(), h.Earnings.Summary)
	tutor.GET("/earnings/statement", h.Earnings.Statement)
	tutor.GET("/withdrawals", h.Earnings.ListWithdrawals)
	tutor.POST("/withdrawals", h.Earnings.RequestWithdrawal)

	bookings := secured.Group("/bookings")
	bookings.POST("", middleware.RequireRoles(models.RoleLearner), h.Bookings.Create)
	bookings.GET("", middleware.RequireRoles(models.RoleTutor, models.RoleLearner), h.Bookings.List)
	bookings.GET("/:id", h.Bookings.Get)
	bookings.POST("/:id/accept", middleware.RequireRoles(models.RoleTutor), h.Bookings.Accept)
	bookings.POST("/:id/decline", middleware.RequireRoles(models.RoleTutor), h.Bookings.Decline)
	bookings.POST("/:id/complete", middleware.RequireRoles(models.RoleTutor), h.Bookings.Complete)
	bookings.POST("/:id/cancel", middleware.RequireRoles(models.RoleLearner), h.Bookings.Cancel)
	bookings.PATCH("/:id/session", middleware.RequireRoles(models.RoleTutor), h.Bookings.UpdateSession)

	admin := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.PATCH("/withdrawals/:id", h.Earnings.UpdateWithdrawalStatus)
}
