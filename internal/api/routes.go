package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.POST("/drafts", handler.CreateDraft)
		api.GET("/drafts", handler.ListAutosaves)
		api.GET("/drafts/:sid", handler.GetDraft)
		api.DELETE("/drafts/:sid", handler.AbandonDraft)
		api.PUT("/drafts/:sid/fields", handler.UpdateFields)
		api.PUT("/drafts/:sid/location", handler.UpdateLocation)
		api.POST("/drafts/:sid/images", handler.AddImages)
		api.DELETE("/drafts/:sid/images/:index", handler.RemoveImage)
		api.POST("/drafts/:sid/submit", handler.SubmitDraft)
		api.POST("/drafts/:sid/description", handler.GenerateDescription)

		api.GET("/reference/municipalities", handler.Municipalities)
		api.GET("/reference/amenities", handler.Amenities)

		api.POST("/views/:collection", handler.CreateView)
		api.GET("/views/:collection/:vid", handler.GetView)
		api.POST("/views/:collection/:vid/search", handler.SearchView)
		api.POST("/views/:collection/:vid/sort", handler.SortView)
		api.POST("/views/:collection/:vid/page", handler.PageView)
		api.DELETE("/views/:collection/:vid", handler.CloseView)

		api.DELETE("/properties/:id", handler.DeleteProperty)
		api.POST("/properties/:id/approve", handler.ApproveProperty)
		api.POST("/properties/:id/favorite", handler.ToggleFavorite)
	}
}
