package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	importapp "github.com/certhub/backend/internal/application/import"
	"github.com/certhub/backend/internal/domain/community"
	"github.com/certhub/backend/internal/domain/shared"
	csvimport "github.com/certhub/backend/internal/infrastructure/import"
	"github.com/certhub/backend/internal/interfaces/http/dto"
)

const registryCSV = "Community,Region\nRust Lagos,Africa\n"

func newCommunityRouter(h *CommunityHandler) *gin.Engine {
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func newTestCommunity(t *testing.T, name string) *community.Community {
	t.Helper()
	c, err := community.New(name, map[string]string{"region": "Africa"}, testNow)
	require.NoError(t, err)
	return c
}

func TestCommunityHandlerPreview(t *testing.T) {
	t.Run("parse options come from the query", func(t *testing.T) {
		importer := new(MockCommunityImporter)
		router := newCommunityRouter(NewCommunityHandler(importer))

		header := false
		column := 1
		importer.On("ParseBytes", []byte(registryCSV), importapp.CommunityParseOptions{
			FirstRowIsHeader: &header,
			IdentifierColumn: &column,
		}).Return(&importapp.CommunityParseResult{
			TotalRows:    2,
			ValidEntries: 1,
			Imported:     []*community.Community{newTestCommunity(t, "Rust Lagos")},
		}, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newMultipartRequest(t, "/api/v1/communities/import/preview?first_row_is_header=false&identifier_column=1", "registry.csv", registryCSV, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data struct {
				ValidEntries int                     `json:"valid_entries"`
				Preview      []dto.CommunityResponse `json:"preview"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Data.ValidEntries)
		require.Len(t, resp.Data.Preview, 1)
		assert.Equal(t, "rust-lagos", resp.Data.Preview[0].Slug)
		importer.AssertExpectations(t)
	})

	t.Run("negative identifier column is rejected", func(t *testing.T) {
		importer := new(MockCommunityImporter)
		router := newCommunityRouter(NewCommunityHandler(importer))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newMultipartRequest(t, "/api/v1/communities/import/preview?identifier_column=-1", "registry.csv", registryCSV, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		importer.AssertNotCalled(t, "ParseBytes", mock.Anything, mock.Anything)
	})

	t.Run("identifier column beyond the file", func(t *testing.T) {
		importer := new(MockCommunityImporter)
		router := newCommunityRouter(NewCommunityHandler(importer))
		importer.On("ParseBytes", mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError("INVALID_INPUT", "Identifier column 5 is out of range, the file has 2 columns"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newMultipartRequest(t, "/api/v1/communities/import/preview?identifier_column=5", "registry.csv", registryCSV, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
	})

	t.Run("malformed csv", func(t *testing.T) {
		importer := new(MockCommunityImporter)
		router := newCommunityRouter(NewCommunityHandler(importer))
		importer.On("ParseBytes", mock.Anything, mock.Anything).
			Return(nil, &csvimport.ParseError{Line: 3})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newMultipartRequest(t, "/api/v1/communities/import/preview", "registry.csv", "a,\"b\n", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, csvimport.ErrCodeImportCSVParsing, decodeResponse(t, w).Error.Code)
	})
}

func TestCommunityHandlerImport(t *testing.T) {
	importer := new(MockCommunityImporter)
	called := false
	mw := func(c *gin.Context) {
		called = true
		c.Next()
	}
	router := newCommunityRouter(NewCommunityHandler(importer, mw))

	importer.On("Import", mock.Anything, []byte(registryCSV), importapp.CommunityParseOptions{}).
		Return(&importapp.CommunityImportResult{
			Parse: &importapp.CommunityParseResult{TotalRows: 2, ValidEntries: 1, HasHeader: true},
			Bulk:  &importapp.BulkImportResult{Imported: 1},
		}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, newMultipartRequest(t, "/api/v1/communities/import", "registry.csv", registryCSV, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	var resp struct {
		Data importapp.CommunityImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Bulk.Imported)
	assert.True(t, resp.Data.Parse.HasHeader)
	importer.AssertExpectations(t)
}

func TestCommunityHandlerList(t *testing.T) {
	importer := new(MockCommunityImporter)
	router := newCommunityRouter(NewCommunityHandler(importer))

	items := []*community.Community{newTestCommunity(t, "Rust Lagos")}
	importer.On("List", mock.Anything, "rust", 1, 20).Return(shared.NewPaginated(items, 1, 1, 20), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/communities?search=%20rust%20&page=1&page_size=20", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	assert.Contains(t, w.Body.String(), `"slug":"rust-lagos"`)
}

func TestCommunityHandlerGet(t *testing.T) {
	importer := new(MockCommunityImporter)
	router := newCommunityRouter(NewCommunityHandler(importer))

	importer.On("Get", mock.Anything, "rust-lagos").Return(newTestCommunity(t, "Rust Lagos"), nil)
	importer.On("Get", mock.Anything, "unknown").Return(nil, shared.ErrNotFound)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/communities/rust-lagos", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"display_name":"Rust Lagos"`)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/communities/unknown", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("not a slug", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/communities/Rust%20Lagos", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		importer.AssertNotCalled(t, "Get", mock.Anything, "Rust Lagos")
	})
}
