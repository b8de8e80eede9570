package middleware

import (
    "context"
    "log/slog"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/ministry-portal/internal/logging"
)

// RequestLogger writes one structured line per request.  Bodies are never
// logged; they carry passwords and codes.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURIPath:   true,
        LogRoutePath: true,
        LogStatus:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            args := []any{
                "method", v.Method,
                "path", v.URIPath,
                "route", v.RoutePath,
                "status", v.Status,
                "latency_ms", v.Latency.Milliseconds(),
                "remote_ip", v.RemoteIP,
            }
            if v.RequestID != "" {
                args = append(args, "request_id", v.RequestID)
            }
            ctx := c.Request().Context()
            if v.Error != nil {
                log.Error(ctx, "request", append(args, "err", v.Error)...)
                return nil
            }
            logAt(ctx, log, levelFor(v.Status), args)
            return nil
        },
    })
}

func levelFor(status int) slog.Level {
    switch {
    case status >= 500:
        return slog.LevelError
    case status >= 400:
        return slog.LevelWarn
    }
    return slog.LevelInfo
}

func logAt(ctx context.Context, log logging.Logger, lvl slog.Level, args []any) {
    switch lvl {
    case slog.LevelError:
        log.Error(ctx, "request", args...)
    case slog.LevelWarn:
        log.Warn(ctx, "request", args...)
    default:
        log.Info(ctx, "request", args...)
    }
}
