package aeat

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rauletepaz/account-verifactu/internal/signing"
	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
	"github.com/rauletepaz/account-verifactu/pkg/requestcontext"
)

const (
	connectTimeout = 15 * time.Second
	readTimeout    = 90 * time.Second

	contentTypeXML = `text/xml; charset="utf-8"`
)

// Client submits envelopes over HTTPS with mutual authentication. The client
// certificate comes from the per-operation credential, so the transport is
// rebuilt on every call; credential material never outlives the submission.
type Client struct {
	endpoints  Endpoints
	soapAction string
	tlsVerify  bool
	log        *slog.Logger
}

func NewClient(endpoints Endpoints, soapAction string, tlsVerify bool, log *slog.Logger) *Client {
	return &Client{endpoints: endpoints, soapAction: soapAction, tlsVerify: tlsVerify, log: log}
}

// Submit posts the envelope to the endpoint selected by (env, mode) and
// returns the raw response body. Network, TLS and timeout failures come back
// as transport errors; an HTTP error status is not an error here, the
// interpreter decides what the body means.
func (c *Client) Submit(ctx context.Context, env Environment, mode Mode, cred *signing.Credential, envelope string) (string, error) {
	endpoint, err := c.endpoints.Resolve(env, mode)
	if err != nil {
		return "", err
	}
	clientCert, err := cred.TLSCertificate()
	if err != nil {
		return "", err
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSClientConfig: &tls.Config{
			Certificates:       []tls.Certificate{clientCert},
			InsecureSkipVerify: !c.tlsVerify,
			MinVersion:         tls.VersionTLS12,
		},
		TLSHandshakeTimeout: connectTimeout,
	}
	defer transport.CloseIdleConnections()
	httpClient := &http.Client{Transport: transport, Timeout: readTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(envelope))
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeTransport, "build submission request", err)
	}
	req.Header.Set("Content-Type", contentTypeXML)
	if c.soapAction != "" {
		req.Header.Set("SOAPAction", c.soapAction)
	}

	started := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "submission transport failure",
			"request_id", requestcontext.RequestID(ctx),
			"endpoint", endpoint,
			"error", err)
		return "", fiscalerrors.Wrap(fiscalerrors.CodeTransport, "submit record envelope", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeTransport, "read submission response", err)
	}
	c.log.InfoContext(ctx, "submission response received",
		"request_id", requestcontext.RequestID(ctx),
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(started).Milliseconds())
	return string(body), nil
}
