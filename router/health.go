package router

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// livez handles GET /health/live: the process is up and serving,
// independent of any downstream dependency.
func (s *Server) livez(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": humanize.RelTime(s.startedAt, time.Now().UTC(), "", ""),
	})
}

var entityKinds = []string{"Shell", "Submodel", "ConceptDescription"}

// readyz handles GET /health/ready: reports whether the Store, Cache
// and Event Log are reachable and, per entity kind, the number of events
// delivered to a consumer but not yet acknowledged (events not yet
// delivered are not counted).
func (s *Server) readyz(c echo.Context) error {
	ctx := c.Request().Context()
	deps := map[string]string{}

	if err := s.Store.Pool().Ping(ctx); err != nil {
		deps["store"] = "unavailable"
	} else {
		deps["store"] = "ok"
	}

	if s.Cache != nil {
		if err := s.Cache.Ping(ctx); err != nil {
			deps["cache"] = "degraded"
		} else {
			deps["cache"] = "ok"
		}
	}

	backlog := map[string]int64{}
	if s.Events != nil {
		deps["eventlog"] = "ok"
		for _, kind := range entityKinds {
			var total int64
			for p := 0; p < s.Events.Partitions(); p++ {
				streamKey := s.Events.StreamKeyForPartition(kind, p)
				count, err := s.Events.Pending(ctx, streamKey)
				if err != nil {
					deps["eventlog"] = "unavailable"
					continue
				}
				total += count
			}
			backlog[kind] = total
		}
	}

	ready := deps["store"] == "ok" && deps["eventlog"] != "unavailable"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]interface{}{
		"status":      deps,
		"backlog":     backlog,
		"subscribers": s.subscriberCount(),
		"startedAt":   s.startedAt,
	})
}

func (s *Server) subscriberCount() int {
	if s.Hub == nil {
		return 0
	}
	return s.Hub.Count()
}

// metrics handles GET /metrics with a small JSON summary (subscriber
// count, uptime, build info); Prometheus scraping is out of scope for
// this surface. Backlog counts are reported by /health/ready, not here.
func (s *Server) metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscribers": s.subscriberCount(),
		"uptime":      humanize.RelTime(s.startedAt, time.Now().UTC(), "", ""),
		"buildInfo":   s.buildInfo(),
	})
}
