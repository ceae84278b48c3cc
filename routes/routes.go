package routes

import (
	commonmw "catalog-service/common/middleware"
	"catalog-service/controllers"
	"catalog-service/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups the controllers mounted by RegisterRoutes.
type Handlers struct {
	Upload   *controllers.CatalogUploadHandler
	Products *controllers.ProductController
}

// RegisterRoutes mounts the catalog API. Every route requires an identity;
// imports also require a pharmacy or admin role and are rate limited per client.
func RegisterRoutes(r *gin.Engine, h Handlers, auth gin.HandlerFunc, uploadsPerMinute int) {
	catalog := r.Group("/catalog", auth)
	{
		catalog.GET("/template", h.Upload.Template)

		manage := catalog.Group("", middleware.CatalogManager())
		limited := manage.Group("", commonmw.RateLimitMiddleware(uploadsPerMinute, uploadsPerMinute))
		limited.POST("/upload", h.Upload.Upload)
		limited.POST("/preview", h.Upload.Preview)
		manage.GET("/uploads/:id", h.Upload.JobStatus)
	}

	products := r.Group("/products", auth)
	{
		products.GET("", h.Products.GetProducts)
	}
}
