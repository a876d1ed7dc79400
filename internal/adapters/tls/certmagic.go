// Package tls provides HTTPS serving with certificates managed by CertMagic.
package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"

	"github.com/jobrunner/s2tile/internal/config"
)

// Server serves the API handler over HTTPS or, when TLS is disabled, plain HTTP.
type Server struct {
	config config.TLSConfig
	magic  *certmagic.Config
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a server for handler. Certificates are obtained through
// the ACME DNS-01 challenge against Azure DNS.
func NewServer(cfg config.TLSConfig, srv config.ServerConfig, handler http.Handler, logger *slog.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: logger,
		server: &http.Server{
			Addr:              srv.Address(),
			Handler:           handler,
			ReadTimeout:       srv.ReadTimeout,
			WriteTimeout:      srv.WriteTimeout,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	if !cfg.Enabled {
		return s, nil
	}

	if len(cfg.Domains) == 0 {
		return nil, errors.New("TLS enabled but no domains specified")
	}
	if cfg.Email == "" {
		return nil, errors.New("TLS enabled but no email specified")
	}

	magic := certmagic.NewDefault()
	if cfg.CacheDir != "" {
		magic.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	ca := certmagic.LetsEncryptProductionCA
	if cfg.Staging {
		ca = certmagic.LetsEncryptStagingCA
	}
	issuer := certmagic.NewACMEIssuer(magic, certmagic.ACMEIssuer{
		CA:     ca,
		Email:  cfg.Email,
		Agreed: true,
		DNS01Solver: &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: newDNSProvider(cfg.DNS),
			},
		},
	})
	magic.Issuers = []certmagic.Issuer{issuer}

	s.magic = magic
	s.server.TLSConfig = magic.TLSConfig()
	return s, nil
}

// newDNSProvider returns the Azure DNS provider. An empty client ID selects
// the system assigned managed identity.
func newDNSProvider(cfg config.DNSConfig) *azure.Provider {
	return &azure.Provider{
		SubscriptionId:    cfg.SubscriptionID,
		ResourceGroupName: cfg.ResourceGroupName,
		ClientId:          cfg.ClientID,
	}
}

// Enabled reports whether the server terminates TLS.
func (s *Server) Enabled() bool {
	return s.magic != nil
}

// TLSConfig returns the TLS configuration, nil when TLS is disabled.
func (s *Server) TLSConfig() *tls.Config {
	return s.server.TLSConfig
}

// ManageCertificates obtains or renews certificates for the configured domains.
func (s *Server) ManageCertificates(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	s.logger.Info("obtaining certificates", "domains", s.config.Domains)
	if err := s.magic.ManageSync(ctx, s.config.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}
	s.logger.Info("certificates obtained successfully")
	return nil
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	if !s.Enabled() {
		s.logger.Info("starting HTTP server (TLS disabled)", "address", s.server.Addr)
		return s.server.ListenAndServe()
	}

	s.logger.Info("starting HTTPS server with DNS-01 challenge",
		"address", s.server.Addr,
		"domains", s.config.Domains,
	)
	return s.server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
