package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

type noopWorkerLifecycle struct{}

func (noopWorkerLifecycle) StartWorker(pipe *pipes.PipeEntity)                 {}
func (noopWorkerLifecycle) StopWorker(accountID, region, name string) {}

func newTestServer() *echo.Echo {
	registry := pipes.NewRegistry(pipes.NewStore(), noopWorkerLifecycle{}, zap.NewNop())
	handler := NewHandler(registry)
	e := echo.New()
	handler.Register(e)
	return e
}

func doRequest(e *echo.Echo, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if body != nil {
		json.NewEncoder(&reqBody).Encode(body)
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateThenDescribePipe(t *testing.T) {
	e := newTestServer()

	rec := doRequest(e, http.MethodPost, "/pipes", createPipeRequest{
		Name:    "my-pipe",
		Source:  "arn:aws:sqs:us-east-1:000000000000:source",
		Target:  "arn:aws:sqs:us-east-1:000000000000:target",
		RoleArn: "arn:aws:iam::000000000000:role/pipes-role",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created pipeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "my-pipe", created.Name)
	assert.Equal(t, pipes.StateStarting, created.CurrentState)

	rec = doRequest(e, http.MethodGet, "/pipes/my-pipe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var described pipeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &described))
	assert.Equal(t, "my-pipe", described.Name)
}

func TestDescribeMissingPipeReturns404(t *testing.T) {
	e := newTestServer()
	rec := doRequest(e, http.MethodGet, "/pipes/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePipeMissingFieldsReturns400(t *testing.T) {
	e := newTestServer()
	rec := doRequest(e, http.MethodPost, "/pipes", createPipeRequest{Name: "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDuplicatePipeReturns409(t *testing.T) {
	e := newTestServer()
	body := createPipeRequest{
		Name: "dup", Source: "arn:aws:sqs:us-east-1:000000000000:s", Target: "arn:aws:sqs:us-east-1:000000000000:t",
		RoleArn: "arn:aws:iam::000000000000:role/r",
	}
	rec := doRequest(e, http.MethodPost, "/pipes", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(e, http.MethodPost, "/pipes", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListPipesReturnsSummaries(t *testing.T) {
	e := newTestServer()
	for _, name := range []string{"a", "b"} {
		doRequest(e, http.MethodPost, "/pipes", createPipeRequest{
			Name: name, Source: "arn:aws:sqs:us-east-1:000000000000:s", Target: "arn:aws:sqs:us-east-1:000000000000:t",
			RoleArn: "arn:aws:iam::000000000000:role/r", DesiredState: pipes.DesiredStopped,
		})
	}

	rec := doRequest(e, http.MethodGet, "/pipes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	pipesList, ok := body["Pipes"].([]interface{})
	require.True(t, ok)
	assert.Len(t, pipesList, 2)
}

func TestStartStopAndDeletePipe(t *testing.T) {
	e := newTestServer()
	doRequest(e, http.MethodPost, "/pipes", createPipeRequest{
		Name: "p", Source: "arn:aws:sqs:us-east-1:000000000000:s", Target: "arn:aws:sqs:us-east-1:000000000000:t",
		RoleArn: "arn:aws:iam::000000000000:role/r", DesiredState: pipes.DesiredStopped,
	})

	rec := doRequest(e, http.MethodPost, "/pipes/p/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodPost, "/pipes/p/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodDelete, "/pipes/p", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/pipes/p", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTagUntagListTagsEndpoints(t *testing.T) {
	e := newTestServer()
	rec := doRequest(e, http.MethodPost, "/pipes", createPipeRequest{
		Name: "p", Source: "arn:aws:sqs:us-east-1:000000000000:s", Target: "arn:aws:sqs:us-east-1:000000000000:t",
		RoleArn: "arn:aws:iam::000000000000:role/r", DesiredState: pipes.DesiredStopped,
	})
	var created pipeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(e, http.MethodPost, "/tags", tagResourceRequest{ResourceArn: created.Arn, Tags: map[string]string{"env": "prod"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/tags?ResourceArn="+created.Arn, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	tags, ok := body["Tags"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "prod", tags["env"])

	rec = doRequest(e, http.MethodDelete, "/tags", untagResourceRequest{ResourceArn: created.Arn, TagKeys: []string{"env"}})
	require.Equal(t, http.StatusOK, rec.Code)
}
