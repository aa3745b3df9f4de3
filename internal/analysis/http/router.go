package http

import "github.com/gin-gonic/gin"

// Register registers the analysis session routes
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions", h.ListSessions)
	rg.GET("/sessions/:id", h.GetSession)
	rg.DELETE("/sessions/:id", h.DeleteSession)

	rg.GET("/sessions/:id/timeseries", h.GetTimeseries)
	rg.GET("/sessions/:id/periodogram", h.GetPeriodogram)
	rg.GET("/sessions/:id/periodogram/peak", h.StagePeak)

	rg.GET("/sessions/:id/signals", h.ListSignals)
	rg.POST("/sessions/:id/signals", h.AddSignal)
	rg.PATCH("/sessions/:id/signals/:label", h.UpdateSignal)
	rg.DELETE("/sessions/:id/signals/:label", h.DeleteSignal)

	rg.POST("/sessions/:id/fit", h.RefineFit)
	rg.GET("/sessions/:id/log", h.GetLog)
	rg.GET("/sessions/:id/summary", h.GetSummary)
}
