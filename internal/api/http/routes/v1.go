package routes

import (
	"github.com/gin-gonic/gin"

	analysishttp "github.com/asterolab/lightcurve-backend/internal/analysis/http"
	"github.com/asterolab/lightcurve-backend/internal/api/http/middleware"
	"github.com/asterolab/lightcurve-backend/internal/archive"
)

type V1Deps struct {
	Analysis *analysishttp.Handler
	Archive  *archive.Handler
}

// RegisterV1 mounts the versioned API: analysis sessions and archive
// lookups, all behind the request-id middleware.
func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")
	api.Use(middleware.RequestIDMiddleware())

	dep.Analysis.Register(api)
	dep.Archive.Register(api.Group("/archive"))
}
