// Package server - Haupt-Router und Server-Setup fuer den Generator
// Beinhaltet: Server-Struct, Router-Registrierung, Server-Start
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/louis-chevallier/stylegan/envconfig"
	"github.com/louis-chevallier/stylegan/logutil"
	"github.com/louis-chevallier/stylegan/runner"
	"github.com/louis-chevallier/stylegan/version"
)

var mode string = gin.DebugMode

// Server haelt den geladenen Runner und die Listen-Adresse
type Server struct {
	addr   net.Addr
	runner *runner.Runner
}

// New erstellt einen Server um einen bereits geladenen Runner
func New(r *runner.Runner, addr net.Addr) *Server {
	return &Server{addr: addr, runner: r}
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "StyleGAN is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "StyleGAN is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Modell
	r.GET("/api/manifest", s.ManifestHandler)

	// Inference
	inference := r.Group("/api", timeoutMiddleware(envconfig.RequestTimeout()))
	inference.POST("/generate", s.GenerateHandler)
	inference.POST("/map", s.MapHandler)
	inference.POST("/synthesize", s.SynthesizeHandler)
	inference.POST("/interpolate", s.InterpolateHandler)

	return r, nil
}

// Serve laedt den Generator und startet den HTTP-Server
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	rn, err := runner.Load(runner.ParamsFromEnv())
	if err != nil {
		return fmt.Errorf("load generator: %w", err)
	}
	defer rn.Close()

	s := New(rn, ln.Addr())

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	ctx, done := context.WithCancel(context.Background())

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{Handler: h}

	// listen for a ctrl+c and stop the server
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		done()
	}()

	err = srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be done
	// otherwise error out quickly
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-ctx.Done()
	return nil
}
