package target

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// Doer is the minimal http.Client surface this package needs, narrow enough
// to fake in tests without standing up a real server.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Destination is the resolved API-destination resource: method + endpoint +
// owning connection, grounded on api_destination_target.py's
// describe_api_destination call.
type Destination struct {
	HttpMethod         string
	InvocationEndpoint string
	ConnectionArn      string
}

// DestinationResolver looks up an API destination by its target ARN.
type DestinationResolver interface {
	ResolveDestination(ctx context.Context, destinationArn string) (*Destination, error)
}

// defaultHeaders matches api_destination_target.py's send() verbatim: every
// API-destination request carries these regardless of auth or HttpParameters.
func defaultHeaders() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", "Amazon/EventBridge/ApiDestinations")
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Range", "bytes=0-1048575")
	h.Set("Accept-Encoding", "gzip,deflate")
	h.Set("Connection", "close")
	return h
}

// HttpTarget sends each event as a POST/method-configured request to an
// API-destination's resolved endpoint, grounded on api_destination_target.py.
type HttpTarget struct {
	doer         Doer
	connections  ConnectionResolver
	destinations DestinationResolver
	secrets      SecretsClient
	destArn      string
	params       *pipes.HttpParameters
	log          *zap.Logger
}

func NewHttpTarget(
	doer Doer,
	connections ConnectionResolver,
	destinations DestinationResolver,
	secrets SecretsClient,
	destArn string,
	params *pipes.HttpParameters,
	log *zap.Logger,
) *HttpTarget {
	return &HttpTarget{
		doer:         doer,
		connections:  connections,
		destinations: destinations,
		secrets:      secrets,
		destArn:      destArn,
		params:       params,
		log:          log,
	}
}

func (t *HttpTarget) Send(ctx context.Context, events []Event) error {
	destination, err := t.destinations.ResolveDestination(ctx, t.destArn)
	if err != nil {
		return pipes.NewCustomerInvocationError("could not resolve api destination %s: %v", t.destArn, err)
	}

	method := destination.HttpMethod
	if method == "" {
		method = http.MethodGet
	}
	endpoint := destination.InvocationEndpoint

	headers := defaultHeaders()
	if destination.ConnectionArn != "" {
		if err := t.applyConnectionAuth(ctx, destination.ConnectionArn, headers); err != nil {
			t.log.Warn("failed to apply connection auth", zap.String("connection", destination.ConnectionArn), zap.Error(err))
		}
	}
	if t.params != nil {
		for k, v := range t.params.HeaderParameters {
			headers.Set(k, v)
		}
		endpoint = ApplyHttpParameters(endpoint, t.params)
	}

	// Per-event sends happen sequentially here: an HTTP destination logs
	// non-2xx responses rather than treating them as batch failures (the
	// "log, don't raise" rule from api_destination_target.py), so there is
	// no error-short-circuit reason to fan out concurrently the way the
	// queue/stream targets do.
	for _, e := range events {
		if err := t.sendOne(ctx, method, endpoint, headers, e); err != nil {
			return err
		}
	}
	return nil
}

func (t *HttpTarget) sendOne(ctx context.Context, method, endpoint string, headers http.Header, e Event) error {
	body, err := encodeBody(e.Payload)
	if err != nil {
		return pipes.NewCustomerInvocationError("failed to encode event: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewBufferString(body))
	if err != nil {
		return pipes.NewCustomerInvocationError("failed to build request for %s: %v", endpoint, err)
	}
	req.Header = headers.Clone()

	resp, err := t.doer.Do(req)
	if err != nil {
		return pipes.NewPipeInternalError(fmt.Errorf("request to %s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return pipes.NewCustomerInvocationError(
			"api destination %s rejected authentication: %d %s", endpoint, resp.StatusCode, snippet)
	}

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		t.log.Warn("received error forwarding pipe event",
			zap.Int("status", resp.StatusCode),
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.ByteString("response", snippet),
		)
	}
	return nil
}

// applyConnectionAuth mirrors _apply_connection_auth's two-hop lookup:
// resolve the connection's public parameters, then fetch its secret and
// apply the matching header scheme.
func (t *HttpTarget) applyConnectionAuth(ctx context.Context, connectionArn string, headers http.Header) error {
	conn, err := t.connections.ResolveConnection(ctx, connectionArn)
	if err != nil {
		return fmt.Errorf("resolve connection: %w", err)
	}
	if conn == nil {
		return nil
	}
	secret, err := t.secrets.GetConnectionSecret(ctx, conn.SecretArn)
	if err != nil {
		return fmt.Errorf("fetch connection secret: %w", err)
	}
	if secret == nil {
		return nil
	}

	switch conn.AuthorizationType {
	case "API_KEY":
		if secret.ApiKeyName != "" && secret.ApiKeyValue != "" {
			headers.Set(secret.ApiKeyName, secret.ApiKeyValue)
		}
	case "BASIC":
		token := base64.StdEncoding.EncodeToString([]byte(secret.Username + ":" + secret.Password))
		headers.Set("Authorization", "Basic "+token)
	case "OAUTH_CLIENT_CREDENTIALS":
		// Accepted but unimplemented, per SPEC_FULL §13: headers pass through
		// unmodified and we only note it happened.
		t.log.Debug("OAuth auth type not implemented for api destinations", zap.String("connection", connectionArn))
	}
	return nil
}

// ApplyHttpParameters appends QueryStringParameters to the endpoint URL.
// PathParameterValues are not applied to the URL. Kept separate from header
// application since it mutates the URL rather than headers.
func ApplyHttpParameters(endpoint string, params *pipes.HttpParameters) string {
	if params == nil || len(params.QueryStringParameters) == 0 {
		return endpoint
	}
	sep := "?"
	if bytes.ContainsRune([]byte(endpoint), '?') {
		sep = "&"
	}
	for k, v := range params.QueryStringParameters {
		endpoint += sep + k + "=" + v
		sep = "&"
	}
	return endpoint
}
