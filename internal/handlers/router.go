package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcela/internal/metrics"
	"github.com/stwalsh4118/parcela/internal/middleware"
	"github.com/stwalsh4118/parcela/internal/models"
)

// Routes bundles every handler mounted under /api/v1. A nil handler
// leaves its routes unregistered.
type Routes struct {
	Health       *HealthHandler
	Lots         *LotHandler
	Maps         *MapHandler
	MapSocket    *MapSocketHandler
	Reservations *ReservationHandler
	Account      *AccountHandler
	Admin        *AdminHandler
	Support      *SupportHandler
	Profiles     *ProfileHandler
	Auth         *middleware.Authenticator
	Limiter      *middleware.RateLimiter
}

// Register mounts the health, metrics and API routes on router.
func Register(router *gin.Engine, r Routes) {
	if r.Health != nil {
		router.GET("/health", r.Health.Health)
		router.GET("/health/ready", r.Health.Ready)
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.OptionalAuth(r.Auth))
	if r.Health != nil {
		v1.GET("/info", r.Health.Info)
	}

	if r.Lots != nil {
		lots := v1.Group("/lots")
		{
			lots.GET("", r.Lots.ListLots)
			lots.GET("/by-feature/:feature_id", r.Lots.GetLotByFeature)
			lots.GET("/:id", r.Lots.GetLot)
			lots.GET("/:id/detail", r.Lots.LotDetail)
		}
		zones := v1.Group("/zones")
		{
			zones.GET("", r.Lots.ListZones)
			zones.GET("/:id", r.Lots.GetZone)
		}
	}

	maps := v1.Group("/map")
	if r.Maps != nil {
		maps.GET("/zones", r.Maps.Zones)
		maps.GET("/zone-labels", r.Maps.ZoneLabels)
		maps.GET("/lots", r.Maps.Lots)
		maps.GET("/lot-labels", r.Maps.LotLabels)
		maps.GET("/style", r.Maps.Style)
	}
	if r.MapSocket != nil {
		maps.GET("/ws", r.MapSocket.Serve)
	}

	authed := v1.Group("", middleware.RequireAuth(r.Auth))
	if r.Reservations != nil {
		wizard := authed.Group("/reservations/wizard")
		{
			wizard.POST("", r.Reservations.StartWizard)
			wizard.GET("/:id", r.Reservations.GetWizard)
			wizard.POST("/:id/lot", r.Reservations.SelectLot)
			wizard.POST("/:id/payment", r.Reservations.ChoosePayment)
			wizard.POST("/:id/confirm", r.Reservations.Confirm)
			wizard.POST("/:id/reset", r.Reservations.Reset)
			wizard.GET("/:id/lots", r.Reservations.Candidates)
			wizard.POST("/:id/submit", limited(r.Limiter, r.Reservations.Submit)...)
		}
		authed.GET("/me/reservations", r.Reservations.ListMine)
		authed.POST("/me/reservations/:id/withdraw", r.Reservations.Withdraw)
	}
	if r.Account != nil {
		me := authed.Group("/me")
		{
			me.GET("/dashboard", r.Account.Dashboard)
			me.GET("/saved-lots", r.Account.ListSavedLots)
			me.POST("/saved-lots", r.Account.SaveLot)
			me.DELETE("/saved-lots/:lot_id", r.Account.RemoveSavedLot)
			me.GET("/documents", r.Account.ListDocuments)
			me.POST("/documents", r.Account.UploadDocument)
		}
	}
	if r.Support != nil {
		tickets := authed.Group("/me/tickets")
		{
			tickets.GET("", r.Support.ListMine)
			tickets.POST("", r.Support.Open)
			tickets.GET("/:id", r.Support.Thread)
			tickets.POST("/:id/messages", r.Support.PostMessage)
		}
	}
	if r.Profiles != nil {
		authed.GET("/me/profile", r.Profiles.Get)
		authed.PATCH("/me/profile", r.Profiles.Update)
	}

	admin := authed.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	if r.Admin != nil {
		admin.GET("/stats", r.Admin.Stats)
		admin.GET("/reservations", r.Admin.ListReservations)
		admin.PATCH("/reservations/:id/status", r.Admin.TransitionReservation)
		admin.PATCH("/lots/:id", r.Admin.UpdateLot)
		admin.PATCH("/zones/:id", r.Admin.UpdateZone)
		admin.PATCH("/documents/:id", r.Admin.ReviewDocument)
	}
	if r.Support != nil {
		admin.GET("/tickets", r.Support.List)
		admin.GET("/tickets/:id", r.Support.Thread)
		admin.POST("/tickets/:id/reply", r.Support.Reply)
		admin.PATCH("/tickets/:id/status", r.Support.SetStatus)
	}
	if r.Profiles != nil {
		admin.GET("/users", r.Profiles.ListUsers)
		admin.PATCH("/users/:id/role", r.Profiles.SetRole)
	}
}

// limited prepends the rate limiter to h when one is configured.
func limited(l *middleware.RateLimiter, h gin.HandlerFunc) []gin.HandlerFunc {
	if l == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{l.Middleware(), h}
}
