package handlers

import (
	"net/http"
	"time"

	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// AccessLog logs one entry per request after the rest of the chain ran.
type AccessLog struct {
	pipeline.HandlerBase
	logger log.Logger
}

// NewAccessLog creates an access log handler.
func NewAccessLog(logger log.Logger) *AccessLog {
	h := &AccessLog{logger: log.Named(logger, "access")}
	h.SetAsyncSupported(true)
	return h
}

func (h *AccessLog) Invoke(w http.ResponseWriter, r *http.Request) error {
	start := time.Now()
	sw := WrapWriter(w)

	err := h.InvokeNext(sw, r)

	fields := []log.Field{
		log.String("container", ownerLabel(h)),
		log.String("method", r.Method),
		log.String("host", r.Host),
		log.String("path", r.URL.Path),
		log.Int("status", effectiveStatus(sw, err)),
		log.Int64("bytes", sw.Bytes()),
		log.Duration("duration", time.Since(start)),
	}
	if id := RequestIDFromContext(r.Context()); id != "" {
		fields = append(fields, log.String("request_id", id))
	}
	if err != nil {
		fields = append(fields, log.Err(err))
		h.logger.Warn("request failed", fields...)
		return err
	}
	h.logger.Info("request", fields...)
	return nil
}
