package handlers

import (
	"context"
	"net/http"
	"time"

	"traffic-telemetry-api/config"
	"traffic-telemetry-api/middleware"
	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Services bundles everything the HTTP layer talks to.
type Services struct {
	DB         *gorm.DB
	Auth       *services.AuthService
	APIKeys    *services.APIKeyService
	Thresholds *services.ThresholdService
	Roads      *services.RoadService
	Reads      *services.ReadService
	Sensors    *services.SensorService
	Cars       *services.CarService
	PlateReads *services.PlateReadService
	Cache      *services.CacheService
}

// NewServices wires the service graph on one database handle.
func NewServices(db *gorm.DB, jwt config.JWTConfig, cache *services.CacheService) *Services {
	thresholds := services.NewThresholdService(db)
	roads := services.NewRoadService(db, thresholds)
	sensors := services.NewSensorService(db)
	return &Services{
		DB:         db,
		Auth:       services.NewAuthService(db, jwt),
		APIKeys:    services.NewAPIKeyService(db),
		Thresholds: thresholds,
		Roads:      roads,
		Reads:      services.NewReadService(db, roads),
		Sensors:    sensors,
		Cars:       services.NewCarService(db),
		PlateReads: services.NewPlateReadService(db, sensors, roads),
		Cache:      cache,
	}
}

func SetupRouter(svc *Services, cors config.CORSConfig) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.SetupCORS(cors), middleware.Metrics())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := svc.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "Traffic Telemetry API is running",
			"redis":   svc.Cache.Available(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/live", LiveWebSocket(svc.Cache, svc.Auth))

	authH := NewAuthHandler(svc.Auth)
	roadsH := NewRoadsHandler(svc.Roads)
	readsH := NewReadsHandler(svc.Reads, svc.Cache)
	classH := NewClassificationHandler(svc.Thresholds)
	sensorsH := NewSensorsHandler(svc.Sensors)
	carsH := NewCarsHandler(svc.Cars)
	platesH := NewPlateReadsHandler(svc.PlateReads, svc.Cache)

	api := router.Group("/api")

	user := api.Group("/user")
	user.POST("/create", authH.Register)
	user.POST("/token", authH.Login)
	me := user.Group("/me", middleware.Authenticate(svc.Auth, nil), middleware.RequireUser())
	me.GET("", authH.Me)
	me.PUT("", authH.UpdateMe)
	me.PATCH("", authH.UpdateMe)

	rw := api.Group("", middleware.Authenticate(svc.Auth, nil), middleware.RequireAuthOrReadOnly(false))

	rw.GET("/roads", roadsH.List)
	rw.POST("/roads", roadsH.Create)
	rw.GET("/roads/:id", roadsH.Get)
	rw.PUT("/roads/:id", roadsH.Update)
	rw.PATCH("/roads/:id", roadsH.Update)
	rw.DELETE("/roads/:id", roadsH.Delete)
	rw.GET("/roads/:id/stats", roadsH.Stats)

	rw.GET("/reads", readsH.List)
	rw.POST("/reads", readsH.Create)
	rw.GET("/reads/:id", readsH.Get)
	rw.PUT("/reads/:id", readsH.Update)
	rw.PATCH("/reads/:id", readsH.Update)
	rw.DELETE("/reads/:id", readsH.Delete)

	rw.GET("/classification", classH.List)
	rw.PUT("/classification/:id", classH.Update)
	rw.PATCH("/classification/:id", classH.Update)

	rw.GET("/sensors", sensorsH.List)
	rw.POST("/sensors", sensorsH.Create)
	rw.GET("/sensors/:id", sensorsH.Get)
	rw.PUT("/sensors/:id", sensorsH.Update)
	rw.PATCH("/sensors/:id", sensorsH.Update)
	rw.DELETE("/sensors/:id", sensorsH.Delete)

	rw.GET("/car", carsH.List)
	rw.POST("/car", carsH.Create)
	rw.GET("/car/pass-by", carsH.PassBy)
	rw.GET("/car/:id", carsH.Get)
	rw.PUT("/car/:id", carsH.Update)
	rw.PATCH("/car/:id", carsH.Update)
	rw.DELETE("/car/:id", carsH.Delete)

	plates := api.Group("/plates-read", middleware.Authenticate(svc.Auth, svc.APIKeys), middleware.RequireAuthOrReadOnly(true))
	plates.GET("", platesH.List)
	plates.POST("", platesH.Create)
	plates.GET("/:id", platesH.Get)
	plates.DELETE("/:id", middleware.RequireUser(), platesH.Delete)

	return router
}
