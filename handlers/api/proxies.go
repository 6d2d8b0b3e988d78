package api

import (
	"context"
	"net/http"

	"tubetext/proxy"

	"github.com/sirupsen/logrus"
)

type ProxyHandler struct {
	pool   *proxy.Pool
	logger *logrus.Logger
}

func NewProxyHandler(pool *proxy.Pool) *ProxyHandler {
	return &ProxyHandler{
		pool:   pool,
		logger: logrus.StandardLogger(),
	}
}

// HandleStatus handles GET /api/v1/proxies/status
func (h *ProxyHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.pool.Status())
}

// HandleRefresh handles POST /api/v1/proxies/refresh. The refresh runs in
// the background; poll the status endpoint for the outcome.
func (h *ProxyHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Manual proxy refresh requested")
	go h.pool.Refresh(context.Background())

	respondJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"status":  "refresh started",
		"current": h.pool.Size(),
	})
}
