package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
	"github.com/arc-self/apps/pipes-service/pkg/httpmw"
)

// Handler exposes the control-plane operations (spec §6) over HTTP,
// grounded on item_handler.go's shape: a thin echo binding over a registry,
// with error classification mapped to status codes.
type Handler struct {
	registry *pipes.Registry
}

func NewHandler(registry *pipes.Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("")
	g.POST("/pipes", h.CreatePipe)
	g.GET("/pipes", h.ListPipes)
	g.GET("/pipes/:name", h.DescribePipe)
	g.PUT("/pipes/:name", h.UpdatePipe)
	g.DELETE("/pipes/:name", h.DeletePipe)
	g.POST("/pipes/:name/start", h.StartPipe)
	g.POST("/pipes/:name/stop", h.StopPipe)

	g.POST("/tags", h.TagResource)
	g.DELETE("/tags", h.UntagResource)
	g.GET("/tags", h.ListTagsForResource)
}

func (h *Handler) CreatePipe(c echo.Context) error {
	var req createPipeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	ctx := c.Request().Context()
	entity, err := h.registry.CreatePipe(ctx, pipes.CreatePipeInput{
		AccountID:            httpmw.GetAccountID(ctx),
		Region:               httpmw.GetRegion(ctx),
		Name:                 req.Name,
		Source:               req.Source,
		Target:               req.Target,
		RoleArn:              req.RoleArn,
		Description:          req.Description,
		KmsKeyIdentifier:     req.KmsKeyIdentifier,
		LogConfiguration:     req.LogConfiguration,
		Enrichment:           req.Enrichment,
		EnrichmentParameters: req.EnrichmentParameters,
		SourceParameters:     req.SourceParameters,
		TargetParameters:     req.TargetParameters,
		DesiredState:         req.DesiredState,
		Tags:                 req.Tags,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toPipeResponse(entity))
}

func (h *Handler) DescribePipe(c echo.Context) error {
	ctx := c.Request().Context()
	entity, err := h.registry.DescribePipe(ctx, httpmw.GetAccountID(ctx), httpmw.GetRegion(ctx), c.Param("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPipeResponse(entity))
}

func (h *Handler) ListPipes(c echo.Context) error {
	ctx := c.Request().Context()
	filter := pipes.ListFilter{
		NamePrefix:   c.QueryParam("NamePrefix"),
		SourcePrefix: c.QueryParam("SourcePrefix"),
		TargetPrefix: c.QueryParam("TargetPrefix"),
		CurrentState: pipes.CurrentState(c.QueryParam("CurrentState")),
		DesiredState: pipes.DesiredState(c.QueryParam("DesiredState")),
	}

	limit, _ := strconv.Atoi(c.QueryParam("Limit"))
	list, nextToken, err := h.registry.ListPipes(ctx, httpmw.GetAccountID(ctx), httpmw.GetRegion(ctx), filter, limit, c.QueryParam("NextToken"))
	if err != nil {
		return writeError(c, err)
	}

	summaries := make([]pipeSummary, len(list))
	for i, e := range list {
		summaries[i] = toPipeSummary(e)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"Pipes":     summaries,
		"NextToken": nextToken,
	})
}

func (h *Handler) UpdatePipe(c echo.Context) error {
	var req updatePipeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	ctx := c.Request().Context()
	entity, err := h.registry.UpdatePipe(ctx, pipes.UpdatePipeInput{
		AccountID:        httpmw.GetAccountID(ctx),
		Region:           httpmw.GetRegion(ctx),
		Name:             c.Param("name"),
		Source:           req.Source,
		Target:           req.Target,
		RoleArn:          req.RoleArn,
		Description:      req.Description,
		SourceParameters: req.SourceParameters,
		TargetParameters: req.TargetParameters,
		DesiredState:     req.DesiredState,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPipeResponse(entity))
}

func (h *Handler) DeletePipe(c echo.Context) error {
	ctx := c.Request().Context()
	entity, err := h.registry.DeletePipe(ctx, httpmw.GetAccountID(ctx), httpmw.GetRegion(ctx), c.Param("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPipeResponse(entity))
}

func (h *Handler) StartPipe(c echo.Context) error {
	ctx := c.Request().Context()
	entity, err := h.registry.StartPipe(ctx, httpmw.GetAccountID(ctx), httpmw.GetRegion(ctx), c.Param("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPipeResponse(entity))
}

func (h *Handler) StopPipe(c echo.Context) error {
	ctx := c.Request().Context()
	entity, err := h.registry.StopPipe(ctx, httpmw.GetAccountID(ctx), httpmw.GetRegion(ctx), c.Param("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPipeResponse(entity))
}

func (h *Handler) TagResource(c echo.Context) error {
	var req tagResourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := h.registry.TagResource(c.Request().Context(), req.ResourceArn, req.Tags); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) UntagResource(c echo.Context) error {
	var req untagResourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := h.registry.UntagResource(c.Request().Context(), req.ResourceArn, req.TagKeys); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) ListTagsForResource(c echo.Context) error {
	arn := c.QueryParam("ResourceArn")
	tags, err := h.registry.ListTagsForResource(c.Request().Context(), arn)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"Tags": tags})
}

// writeError maps the registry's typed error taxonomy to HTTP status codes,
// mirroring item_handler.go's pattern of catching service-layer sentinel
// errors and translating them into a JSON error body.
func writeError(c echo.Context, err error) error {
	switch err.(type) {
	case *pipes.ValidationError:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case *pipes.NotFoundError:
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case *pipes.ConflictError:
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
