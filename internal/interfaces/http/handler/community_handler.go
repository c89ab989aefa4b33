package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/community"
	"github.com/certhub/backend/internal/domain/shared"
	"github.com/certhub/backend/internal/interfaces/http/dto"
)

// CommunityImporter parses and stores partner registry files
type CommunityImporter interface {
	ParseBytes(data []byte, opts importapp.CommunityParseOptions) (*importapp.CommunityParseResult, error)
	Import(ctx context.Context, data []byte, opts importapp.CommunityParseOptions) (*importapp.CommunityImportResult, error)
	List(ctx context.Context, search string, page, pageSize int) (shared.Paginated[*community.Community], error)
	Get(ctx context.Context, slug string) (*community.Community, error)
}

var _ CommunityImporter = (*importapp.CommunityImportService)(nil)

// CommunityHandler serves the community registry
type CommunityHandler struct {
	BaseHandler
	importer CommunityImporter
	uploadMW []gin.HandlerFunc
}

// NewCommunityHandler creates a new CommunityHandler. uploadMW runs in front
// of the two upload routes.
func NewCommunityHandler(importer CommunityImporter, uploadMW ...gin.HandlerFunc) *CommunityHandler {
	return &CommunityHandler{importer: importer, uploadMW: uploadMW}
}

// RegisterRoutes registers the community routes under rg
func (h *CommunityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/communities")
	uploads := g.Group("/import", h.uploadMW...)
	uploads.POST("/preview", h.Preview)
	uploads.POST("", h.Import)
	g.GET("", h.List)
	g.GET("/:slug", h.Get)
}

// Preview parses a registry file without storing it
//
// POST /communities/import/preview (multipart: file; query: first_row_is_header, identifier_column)
func (h *CommunityHandler) Preview(c *gin.Context) {
	opts, data, ok := h.bindUpload(c)
	if !ok {
		return
	}
	res, err := h.importer.ParseBytes(data, opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCommunityPreviewResponse(res))
}

// Import parses a registry file and upserts its communities by slug
//
// POST /communities/import (multipart: file; query: first_row_is_header, identifier_column)
func (h *CommunityHandler) Import(c *gin.Context) {
	opts, data, ok := h.bindUpload(c)
	if !ok {
		return
	}
	res, err := h.importer.Import(c.Request.Context(), data, opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

func (h *CommunityHandler) bindUpload(c *gin.Context) (importapp.CommunityParseOptions, []byte, bool) {
	var req dto.CommunityImportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return importapp.CommunityParseOptions{}, nil, false
	}
	_, data, ok := h.readUpload(c)
	return req.Options(), data, ok
}

// List pages through stored communities
//
// GET /communities?search=&page=&page_size=
func (h *CommunityHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.importer.List(c.Request.Context(), strings.TrimSpace(req.Search), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.NewCommunityListResponse(page.Items), page.Total, page.Page, page.PageSize)
}

// Get returns one community by slug
//
// GET /communities/:slug
func (h *CommunityHandler) Get(c *gin.Context) {
	slug := c.Param("slug")
	if community.CreateSlug(slug) != slug || slug == "" {
		h.BadRequest(c, "Invalid community slug")
		return
	}
	co, err := h.importer.Get(c.Request.Context(), slug)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCommunityResponse(co))
}
