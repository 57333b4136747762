package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

// Component and overall health states, worst last.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

var statusRank = map[string]int{statusHealthy: 0, statusDegraded: 1, statusUnhealthy: 2}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"search":   s.checkSearchIndex(),
		"events":   s.checkEvents(),
	}

	overall := statusHealthy
	for _, c := range components {
		if statusRank[c.Status] > statusRank[overall] {
			overall = c.Status
		}
	}

	return &HealthOutput{Body: HealthResponse{Status: overall, Components: components}}, nil
}

// probe times check. A failing check marks the component unhealthy with
// failure as its message; a passing one reports the message check returns.
func probe(failure string, check func() (string, error)) ComponentHealth {
	start := time.Now()
	msg, err := check()
	latency := time.Since(start).String()
	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency, Message: failure}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency, Message: msg}
}

func notConfigured(component string) ComponentHealth {
	return ComponentHealth{Status: statusDegraded, Message: component + " not configured"}
}

func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.infra.Database == nil {
		return notConfigured("database")
	}
	return probe("database ping failed", func() (string, error) {
		return "", s.infra.Database.Ping(ctx)
	})
}

func (s *Server) checkSearchIndex() ComponentHealth {
	if s.infra.Search == nil {
		return notConfigured("search index")
	}
	return probe("search index unreachable", func() (string, error) {
		n, err := s.infra.Search.DocumentCount()
		return strconv.FormatUint(n, 10) + " documents", err
	})
}

// checkEvents reports the broker and how many stream consumers it feeds.
func (s *Server) checkEvents() ComponentHealth {
	if s.infra.Broker == nil {
		return notConfigured("event broker")
	}

	var msg string
	switch n := s.infra.Broker.SubscriberCount(); n {
	case 0:
		msg = "no subscribers"
	case 1:
		msg = "1 subscriber"
	default:
		msg = strconv.Itoa(n) + " subscribers"
	}
	return ComponentHealth{Status: statusHealthy, Message: msg}
}
