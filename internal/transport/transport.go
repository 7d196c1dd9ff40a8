package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/civicportal/internal/transport/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	// RateLimiter guards the decision endpoints; nil disables limiting.
	RateLimiter *middleware.RateLimiter
	AppVersion  string
}

func InitRoutes(
	registrationHandler *RegistrationHandler,
	bookingHandler *BookingHandler,
	catalogHandler *CatalogHandler,
	log logrus.FieldLogger,
	cfg RouterConfig,
) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Limit()
	}

	resources := router.Group("/resources")
	{
		resources.GET("", catalogHandler.ListResources)
		resources.GET("/:id", catalogHandler.GetResource)
		resources.GET("/:id/capacity", registrationHandler.Capacity)
		resources.GET("/:id/registrations", registrationHandler.ListRegistrations)
		resources.POST("/:id/registrations", limit, registrationHandler.Register)
		resources.POST("/:id/promotions", limit, registrationHandler.Promote)
	}

	registrations := router.Group("/registrations")
	{
		registrations.DELETE("/:id", limit, registrationHandler.Cancel)
	}

	venues := router.Group("/venues")
	{
		venues.GET("", catalogHandler.ListVenues)
		venues.GET("/:name/bookings", bookingHandler.ListBookings)
		venues.POST("/:name/bookings", limit, bookingHandler.RequestBooking)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": cfg.AppVersion,
			"time":    time.Now().UTC(),
		})
	})

	return router
}
