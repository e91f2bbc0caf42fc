package processor

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
	"github.com/arc-self/apps/pipes-service/internal/target"
)

type fakeTarget struct {
	received []target.Event
	err      error
}

func (f *fakeTarget) Send(ctx context.Context, events []target.Event) error {
	f.received = events
	return f.err
}

type fakeTransformer struct {
	fn func(event interface{}) interface{}
}

func (f *fakeTransformer) Transform(event interface{}) interface{} {
	return f.fn(event)
}

func TestProcessDecodesPlainJsonEvent(t *testing.T) {
	ft := &fakeTarget{}
	p := New(ft, nil, "arn:aws:sqs:us-east-1:111122223333:target", zap.NewNop())

	err := p.Process(context.Background(), [][]byte{[]byte(`{"id":"1"}`)})
	require.NoError(t, err)
	require.Len(t, ft.received, 1)
	assert.Equal(t, map[string]interface{}{"id": "1"}, ft.received[0].Payload)
}

func TestProcessWrapsNonJsonBodyAsSqsShape(t *testing.T) {
	ft := &fakeTarget{}
	p := New(ft, nil, "arn:aws:sqs:us-east-1:111122223333:target", zap.NewNop())

	err := p.Process(context.Background(), [][]byte{[]byte("plain text message")})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"body": "plain text message"}, ft.received[0].Payload)
}

func TestProcessDecodesDoubleBase64DataField(t *testing.T) {
	ft := &fakeTarget{}
	p := New(ft, nil, "arn:aws:kinesis:us-east-1:111122223333:stream/x", zap.NewNop())

	inner := `{"value":42}`
	once := base64.StdEncoding.EncodeToString([]byte(inner))
	twice := base64.StdEncoding.EncodeToString([]byte(once))
	raw := []byte(`{"data":"` + twice + `"}`)

	err := p.Process(context.Background(), [][]byte{raw})
	require.NoError(t, err)
	payload, ok := ft.received[0].Payload.(map[string]interface{})
	require.True(t, ok)
	data, ok := payload["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), data["value"])
}

func TestProcessAppliesTransformer(t *testing.T) {
	ft := &fakeTarget{}
	tr := &fakeTransformer{fn: func(event interface{}) interface{} { return "transformed" }}
	p := New(ft, tr, "arn:aws:sqs:us-east-1:111122223333:target", zap.NewNop())

	err := p.Process(context.Background(), [][]byte{[]byte(`{"id":"1"}`)})
	require.NoError(t, err)
	assert.Equal(t, "transformed", ft.received[0].Payload)
}

func TestProcessCustomerInvocationErrorIsReturnedUnchanged(t *testing.T) {
	wantErr := pipes.NewCustomerInvocationError("bad auth")
	ft := &fakeTarget{err: wantErr}
	p := New(ft, nil, "arn:aws:events:us-east-1:111122223333:api-destination/d", zap.NewNop())

	err := p.Process(context.Background(), [][]byte{[]byte(`{}`)})
	assert.Same(t, wantErr, err)
}

func TestProcessWrapsOtherErrorsAsPipeInternalError(t *testing.T) {
	ft := &fakeTarget{err: errors.New("connection reset")}
	p := New(ft, nil, "arn:aws:sqs:us-east-1:111122223333:target", zap.NewNop())

	err := p.Process(context.Background(), [][]byte{[]byte(`{}`)})
	require.Error(t, err)
	var internalErr *pipes.PipeInternalError
	require.ErrorAs(t, err, &internalErr)
}

func TestFailureContextIncludesTargetArnAndCause(t *testing.T) {
	ft := &fakeTarget{}
	p := New(ft, nil, "arn:aws:sqs:us-east-1:111122223333:target", zap.NewNop())

	ctx := p.FailureContext("RetryAttemptsExhausted", errors.New("boom"))
	assert.Equal(t, "arn:aws:sqs:us-east-1:111122223333:target", ctx["targetArn"])
	assert.Equal(t, "boom", ctx["error"])
	assert.NotEmpty(t, ctx["id"])
}
