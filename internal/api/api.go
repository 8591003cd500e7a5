// Package api serves the registry over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/wangxicoding/edl/internal/prom"
	"github.com/wangxicoding/edl/internal/registry"
	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/tproto"
)

// MIMEProtobuf marks request and response bodies holding a binary tproto message.
const MIMEProtobuf = "application/x-protobuf"

const shutdownTimeout = 5 * time.Second

// Published returns the last reconciled cluster.
type Published func() *cluster.Cluster

// Server is the registry HTTP API.
type Server struct {
	echo      *echo.Echo
	registry  *registry.Registry
	published Published
	metrics   *prom.Metrics
}

// StageRequest is the body of PUT /cluster/stage.
type StageRequest struct {
	JobStage string `json:"job_stage"`
}

// New builds the API. Metrics are exposed from gatherer at /metrics.
func New(
	reg *registry.Registry, published Published, metrics *prom.Metrics, gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		echo:      echo.New(),
		registry:  reg,
		published: published,
		metrics:   metrics,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = JSONErrorHandler
	s.echo.Use(middleware.Recover())

	s.echo.PUT("/pods/:id", s.putPod)
	s.echo.DELETE("/pods/:id", s.deletePod)
	s.echo.GET("/cluster", s.getCluster)
	s.echo.PUT("/cluster/stage", s.putStage)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves on bind until ctx ends.
func (s *Server) Run(ctx context.Context, bind string) error {
	errs := make(chan error, 1)
	go func() {
		log.Infof("registry api listening on %s", bind)
		errs <- s.echo.Start(bind)
	}()

	select {
	case err := <-errs:
		return errors.Wrap(err, "registry api stopped")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutting down registry api")
		}
		<-errs
		return nil
	}
}

func (s *Server) decodeFailure(err error) error {
	if s.metrics != nil {
		s.metrics.DecodeFailures.WithLabelValues("api").Inc()
	}
	return err
}

func (s *Server) putPod(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body")
	}

	var p *cluster.Pod
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), MIMEProtobuf) {
		p, err = tproto.DecodePod(body)
	} else {
		p, err = cluster.DecodePod(body)
	}
	if err != nil {
		return s.decodeFailure(err)
	}

	if id := cluster.PodID(c.Param("id")); p.ID() != id {
		return echo.NewHTTPError(http.StatusBadRequest,
			"pod id "+string(p.ID())+" does not match path id "+string(id))
	}
	if err := s.registry.Register(p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deletePod(c echo.Context) error {
	ok, err := s.registry.Deregister(cluster.PodID(c.Param("id")))
	switch {
	case err != nil:
		return err
	case !ok:
		return echo.NewHTTPError(http.StatusNotFound, "pod "+c.Param("id")+" is not registered")
	}
	return c.NoContent(http.StatusNoContent)
}

// getCluster returns the reconciled cluster, or with ?members=true the raw registry membership.
func (s *Server) getCluster(c echo.Context) error {
	snapshot := s.published()
	if c.QueryParam("members") == "true" {
		snapshot = s.registry.Snapshot()
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEProtobuf) {
		m, err := tproto.FromCluster(snapshot)
		if err != nil {
			return err
		}
		b, err := tproto.Marshal(m)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, MIMEProtobuf, b)
	}
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, b)
}

func (s *Server) putStage(c echo.Context) error {
	var req StageRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.registry.SetJobStage(req.JobStage); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
