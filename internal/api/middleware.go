package api

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/observability/metrics"
)

// newRequestLogger logs one line per request through the module logger.
func newRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			log.WithContext(c.Request().Context()).Debug("request", fields...)
			return nil
		},
	})
}

// newRequestMetrics records every routed request against its route pattern.
func newRequestMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:       true,
		LogMethod:       true,
		LogLatency:      true,
		LogResponseSize: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordRequest(v.Method, path, v.Status, v.Latency.Seconds(), v.ResponseSize)
			return nil
		},
	})
}
