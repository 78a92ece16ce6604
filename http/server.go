// Package http exposes the prediction API and the demo form.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server wraps the stdlib HTTP server with the middleware chain.
type Server struct {
	server *http.Server
	config ServerConfig
}

// ServerConfig is the http section of config.yaml.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultServerConfig fills the usual development values.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		TimeoutSeconds: 30,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer registers all handlers and builds the middleware chain.
func NewServer(config ServerConfig) *Server {
	if config.Port == 0 {
		config = DefaultServerConfig()
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 30
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second

	mux := http.NewServeMux()
	RegisterHandlers(mux)
	RegisterFormHandlers(mux)

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
		CORSMiddleware(config.AllowedOrigins),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
	}
}

// Start blocks serving requests.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
