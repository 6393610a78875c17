package router

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted by StorefrontGroups
type Handlers struct {
	Orders  *handler.OrderHandler
	Admin   *handler.AdminHandler
	Uploads *handler.UploadHandler
	System  *handler.SystemHandler
	Tagging *handler.TaggingHandler
}

// Guards are the per-route middleware. Nil rate limiters are skipped;
// AdminAuth is required.
type Guards struct {
	AdminAuth  gin.HandlerFunc
	OrderLimit gin.HandlerFunc
	LoginLimit gin.HandlerFunc
}

// StorefrontGroups returns the API route groups
func StorefrontGroups(h Handlers, g Guards) []*DomainGroup {
	orders := NewDomainGroup("orders", "/orders")
	orders.POST("", chain(g.OrderLimit, h.Orders.Submit)...)

	uploads := NewDomainGroup("uploads", "/uploads").Use(g.AdminAuth)
	uploads.POST("", h.Uploads.Upload)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.Info)

	tagging := NewDomainGroup("tagging", "/tagging")
	tagging.GET("/config", h.Tagging.GetConfig)
	audits := tagging.Group("audits", "/audits").Use(g.AdminAuth)
	audits.POST("", h.Tagging.RunAudit)
	audits.GET("", h.Tagging.RecentAudits)

	admin := NewDomainGroup("admin", "/admin")
	admin.POST("/login", chain(g.LoginLimit, h.Admin.Login)...)
	session := admin.Group("session", "").Use(g.AdminAuth)
	session.POST("/logout", h.Admin.Logout)
	session.GET("/orders", h.Admin.ListOrders)
	session.DELETE("/orders", h.Admin.DeleteOrdersBefore)
	session.GET("/orders/:id", h.Admin.GetOrder)
	session.DELETE("/orders/:id", h.Admin.DeleteOrder)

	return []*DomainGroup{orders, uploads, system, tagging, admin}
}

func chain(guard gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if guard == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{guard, h}
}
