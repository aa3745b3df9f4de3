package bootstrap

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	analysishttp "github.com/asterolab/lightcurve-backend/internal/analysis/http"
	httpapi "github.com/asterolab/lightcurve-backend/internal/api/http"
	"github.com/asterolab/lightcurve-backend/internal/api/http/routes"
	"github.com/asterolab/lightcurve-backend/internal/archive"
)

type RouterDeps struct {
	ServiceName     string
	Version         string
	DB              *pgxpool.Pool
	Redis           *redis.Client
	AnalysisHandler *analysishttp.Handler
	ArchiveHandler  *archive.Handler
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-User-Id", "X-Request-Id")
	r.Use(cors.New(corsCfg))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	routes.RegisterV1(r, routes.V1Deps{
		Analysis: dep.AnalysisHandler,
		Archive:  dep.ArchiveHandler,
	})

	return r
}
