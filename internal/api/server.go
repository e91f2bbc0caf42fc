package api

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/pkg/httpmw"
)

// NewServer builds the echo instance serving the control plane, grounded on
// apps/notification-service/cmd/api/main.go's echo setup (otelecho tracing,
// structured request logging, panic recovery).
func NewServer(handler *Handler, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("pipes-service"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("HTTP request", zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(accountRegionMiddleware)
	e.Use(httpmw.NullToEmptyArray())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	handler.Register(e)
	return e
}

// accountRegionMiddleware resolves the caller's account/region from request
// headers into the request context, the way the X-Internal-Org-Id header is
// resolved in apps/abc-service's handler layer.
func accountRegionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := httpmw.WithAccountID(req.Context(), req.Header.Get("X-Amz-Account-Id"))
		ctx = httpmw.WithRegion(ctx, req.Header.Get("X-Amz-Region"))
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}
