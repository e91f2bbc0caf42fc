package target

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

type fakeDoer struct {
	requests  []*http.Request
	responses []*http.Response
	err       error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeSecretsClient struct {
	secret *AuthSecret
}

func (f *fakeSecretsClient) GetConnectionSecret(ctx context.Context, secretArn string) (*AuthSecret, error) {
	return f.secret, nil
}

func TestHttpTargetSendPostsToResolvedEndpoint(t *testing.T) {
	doer := &fakeDoer{}
	store := NewEventsStore()
	store.PutDestination("arn:aws:events:us-east-1:111122223333:api-destination/d", &Destination{
		HttpMethod:         http.MethodPost,
		InvocationEndpoint: "https://example.com/webhook",
	})

	tgt := NewHttpTarget(doer, store, store, &fakeSecretsClient{}, "arn:aws:events:us-east-1:111122223333:api-destination/d", nil, zap.NewNop())

	err := tgt.Send(context.Background(), []Event{{Payload: map[string]interface{}{"id": "1"}}})
	require.NoError(t, err)
	require.Len(t, doer.requests, 1)
	assert.Equal(t, http.MethodPost, doer.requests[0].Method)
	assert.Equal(t, "https://example.com/webhook", doer.requests[0].URL.String())
	assert.Equal(t, "application/json; charset=utf-8", doer.requests[0].Header.Get("Content-Type"))
}

func TestHttpTargetSendAppliesApiKeyAuth(t *testing.T) {
	doer := &fakeDoer{}
	store := NewEventsStore()
	store.PutDestination("arn:aws:events:us-east-1:111122223333:api-destination/d", &Destination{
		HttpMethod:         http.MethodPost,
		InvocationEndpoint: "https://example.com/webhook",
		ConnectionArn:      "arn:aws:events:us-east-1:111122223333:connection/c",
	})
	store.PutConnection("arn:aws:events:us-east-1:111122223333:connection/c", &Connection{
		AuthorizationType: "API_KEY",
		SecretArn:         "arn:aws:secretsmanager:us-east-1:111122223333:secret:conn",
	})
	secrets := &fakeSecretsClient{secret: &AuthSecret{ApiKeyName: "X-Api-Key", ApiKeyValue: "s3cr3t"}}

	tgt := NewHttpTarget(doer, store, store, secrets, "arn:aws:events:us-east-1:111122223333:api-destination/d", nil, zap.NewNop())

	err := tgt.Send(context.Background(), []Event{{Payload: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", doer.requests[0].Header.Get("X-Api-Key"))
}

func TestHttpTargetSendMergesQueryStringParameters(t *testing.T) {
	doer := &fakeDoer{}
	store := NewEventsStore()
	store.PutDestination("arn:aws:events:us-east-1:111122223333:api-destination/d", &Destination{
		HttpMethod:         http.MethodGet,
		InvocationEndpoint: "https://example.com/webhook",
	})
	params := &pipes.HttpParameters{QueryStringParameters: map[string]string{"source": "pipes"}}

	tgt := NewHttpTarget(doer, store, store, &fakeSecretsClient{}, "arn:aws:events:us-east-1:111122223333:api-destination/d", params, zap.NewNop())

	err := tgt.Send(context.Background(), []Event{{Payload: "x"}})
	require.NoError(t, err)
	assert.Contains(t, doer.requests[0].URL.String(), "source=pipes")
}

func TestHttpTargetSendUnknownDestinationIsCustomerError(t *testing.T) {
	doer := &fakeDoer{}
	store := NewEventsStore()

	tgt := NewHttpTarget(doer, store, store, &fakeSecretsClient{}, "arn:aws:events:us-east-1:111122223333:api-destination/missing", nil, zap.NewNop())

	err := tgt.Send(context.Background(), []Event{{Payload: "x"}})
	require.Error(t, err)
	var custErr *pipes.CustomerInvocationError
	require.ErrorAs(t, err, &custErr)
}

func TestHttpTargetSendLogsNonSuccessWithoutError(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		{StatusCode: 500, Body: io.NopCloser(strings.NewReader("server error"))},
	}}
	store := NewEventsStore()
	store.PutDestination("arn:aws:events:us-east-1:111122223333:api-destination/d", &Destination{
		HttpMethod:         http.MethodPost,
		InvocationEndpoint: "https://example.com/webhook",
	})

	tgt := NewHttpTarget(doer, store, store, &fakeSecretsClient{}, "arn:aws:events:us-east-1:111122223333:api-destination/d", nil, zap.NewNop())

	err := tgt.Send(context.Background(), []Event{{Payload: "x"}})
	assert.NoError(t, err, "a non-2xx response is logged, not raised, per api destination semantics")
}

func TestHttpTargetSendUnauthorizedResponseIsCustomerError(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader("invalid api key"))},
	}}
	store := NewEventsStore()
	store.PutDestination("arn:aws:events:us-east-1:111122223333:api-destination/d", &Destination{
		HttpMethod:         http.MethodPost,
		InvocationEndpoint: "https://example.com/webhook",
	})

	tgt := NewHttpTarget(doer, store, store, &fakeSecretsClient{}, "arn:aws:events:us-east-1:111122223333:api-destination/d", nil, zap.NewNop())

	err := tgt.Send(context.Background(), []Event{{Payload: "x"}})
	require.Error(t, err)
	var custErr *pipes.CustomerInvocationError
	require.ErrorAs(t, err, &custErr)
}

func TestHttpTargetSendForbiddenResponseIsCustomerError(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		{StatusCode: http.StatusForbidden, Body: io.NopCloser(strings.NewReader("access denied"))},
	}}
	store := NewEventsStore()
	store.PutDestination("arn:aws:events:us-east-1:111122223333:api-destination/d", &Destination{
		HttpMethod:         http.MethodPost,
		InvocationEndpoint: "https://example.com/webhook",
	})

	tgt := NewHttpTarget(doer, store, store, &fakeSecretsClient{}, "arn:aws:events:us-east-1:111122223333:api-destination/d", nil, zap.NewNop())

	err := tgt.Send(context.Background(), []Event{{Payload: "x"}})
	require.Error(t, err)
	var custErr *pipes.CustomerInvocationError
	require.ErrorAs(t, err, &custErr)
}
