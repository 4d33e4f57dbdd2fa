package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/zap"
)

const (
	healthPath = "/healthz"
	bodyLimit  = "16K"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

func New(cfg *config.Config, logger *logging.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	configureTrustedProxies(e, cfg.Server.TrustedProxies, logger)

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(bodyLimit))
	if logger != nil {
		e.Use(logging.RequestLogger(logger, healthPath))
	}

	e.GET(healthPath, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
}

// Start blocks serving HTTP until Shutdown is called, which is reported as a
// nil error.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logRoutes()
	s.logger.Info("starting admin server", zap.String("addr", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping admin server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) Get(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.GET(path, handler, m...)
}

func (s *Server) Post(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.POST(path, handler, m...)
}

func (s *Server) Group(prefix string, m ...echo.MiddlewareFunc) *echo.Group {
	return s.echo.Group(prefix, m...)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// configureTrustedProxies makes c.RealIP() honour X-Forwarded-For only when
// the direct peer is a configured proxy. Loopback and private ranges are not
// trusted implicitly. With no usable proxies the peer address is used as is.
func configureTrustedProxies(e *echo.Echo, proxies []string, logger *logging.Service) {
	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}

	trusted := 0
	for _, proxy := range proxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		ipNet, err := parseProxy(proxy)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy), zap.Error(err))
			continue
		}
		options = append(options, echo.TrustIPRange(ipNet))
		trusted++
	}

	if trusted == 0 {
		e.IPExtractor = echo.ExtractIPDirect()
		return
	}
	e.IPExtractor = echo.ExtractIPFromXFFHeader(options...)
}

func parseProxy(proxy string) (*net.IPNet, error) {
	if strings.Contains(proxy, "/") {
		_, ipNet, err := net.ParseCIDR(proxy)
		return ipNet, err
	}
	ip := net.ParseIP(proxy)
	if ip == nil {
		return nil, fmt.Errorf("not an IP address or CIDR: %s", proxy)
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func (s *Server) logRoutes() {
	for _, route := range s.echo.Routes() {
		s.logger.Debug("route registered",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
			zap.String("handler", shortenHandlerName(route.Name)))
	}
}

// shortenHandlerName drops the module host from a handler's function name
// and caps its length for log output.
func shortenHandlerName(name string) string {
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if len(name) > 80 {
		name = name[:77] + "..."
	}
	return name
}
