package httpapi

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel is read once from IMAGEQUERY_REQUEST_LOG; info when unset.
var defaultLogLevel = func() LogLevel {
	v, ok := os.LookupEnv("IMAGEQUERY_REQUEST_LOG")
	if !ok {
		return LevelInfo
	}
	return parseLevel(v)
}()

// SetDefaultLogLevel overrides the per-request log level used when a request
// carries no override.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

func logStart(r *http.Request, lvl LogLevel, imageName string, imageBytes int) {
	if lvl < LevelInfo {
		return
	}
	if zlog == nil {
		log.Printf("process start path=%s image=%q bytes=%d", r.URL.Path, imageName, imageBytes)
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Str("image", imageName).Int("bytes", imageBytes)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("process start")
}

// logEnd records the outcome. Failures are logged at LevelError and above,
// successes only at LevelInfo.
func logEnd(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl == LevelOff || (err == nil && lvl < LevelInfo) {
		return
	}
	dur := time.Since(start)
	if zlog == nil {
		if err != nil {
			log.Printf("process end status=%d dur=%s err=%v", status, dur, err)
		} else {
			log.Printf("process end status=%d dur=%s", status, dur)
		}
		return
	}
	z := zlog.Info()
	if err != nil {
		if status >= http.StatusInternalServerError {
			z = zlog.Error()
		} else {
			z = zlog.Warn()
		}
		z = z.Err(err)
	}
	z = z.Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("process end")
}
