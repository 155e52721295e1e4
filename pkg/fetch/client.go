package fetch

import (
	"crypto/tls"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/config"
)

// NewClient creates the shared HTTP client for a scan
// Redirects are never followed automatically; the profiler and page fetcher inspect Location themselves
func NewClient(cfg *config.AppConfig, log *logrus.Entry) *http.Client {
	settings := cfg.HTTPClientSettings

	dialer := &net.Dialer{
		Timeout:   settings.DialerTimeout,
		KeepAlive: settings.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           settings.MaxIdleConns,
		MaxIdleConnsPerHost:    settings.MaxIdleConnsPerHost,
		IdleConnTimeout:        settings.IdleConnTimeout,
		TLSHandshakeTimeout:    settings.TLSHandshakeTimeout,
		ExpectContinueTimeout:  settings.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}
	if settings.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *settings.ForceAttemptHTTP2
	}
	if !cfg.ShouldVerifySSL() {
		// Permissive scanning mode: self-signed and mismatched certificates are common on recon targets
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		log.Warn("TLS certificate verification disabled")
	}

	client := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	log.WithFields(logrus.Fields{
		"timeout":    cfg.RequestTimeout,
		"verify_ssl": cfg.ShouldVerifySSL(),
	}).Debug("HTTP client initialized")
	return client
}
