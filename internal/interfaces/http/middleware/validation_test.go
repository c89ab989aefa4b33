package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certhub/backend/internal/interfaces/http/dto"
)

func TestHandleValidationError(t *testing.T) {
	type query struct {
		Page   int    `form:"page" binding:"omitempty,min=1"`
		Status string `form:"status" binding:"omitempty,oneof=processing completed failed"`
		Slug   string `form:"slug" binding:"omitempty,slug"`
	}

	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		var q query
		if err := c.ShouldBindQuery(&q); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("reports each invalid field by form name", func(t *testing.T) {
		w := serve(router, "GET", "/test?page=0&status=done&slug=Not%20A%20Slug", map[string]string{RequestIDHeader: "req-1"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-1", resp.Error.RequestID)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Must be at least 1", fields["page"])
		assert.Equal(t, "Must be one of: processing completed failed", fields["status"])
		assert.Contains(t, fields["slug"], "slug")
	})

	t.Run("accepts valid input", func(t *testing.T) {
		w := serve(router, "GET", "/test?page=2&status=completed&slug=acme-labs", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type input struct {
		Required string `binding:"required"`
		Min      string `binding:"min=5"`
		Max      int    `binding:"max=10"`
		UUID     string `binding:"required,uuid"`
		OneOf    string `binding:"required,oneof=a b c"`
	}

	v := validator.New()
	v.SetTagName("binding")
	err := v.Struct(input{Min: "ab", Max: 20, UUID: "invalid", OneOf: "d"})

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	got := map[string]string{}
	for _, e := range verrs {
		got[e.Field()] = getValidationMessage(e)
	}

	assert.Equal(t, "This field is required", got["Required"])
	assert.Equal(t, "Must be at least 5 characters", got["Min"])
	assert.Equal(t, "Must be at most 10", got["Max"])
	assert.Equal(t, "Invalid UUID format", got["UUID"])
	assert.Equal(t, "Must be one of: a b c", got["OneOf"])
}

func TestFormatValidationErrorsWithoutFieldErrors(t *testing.T) {
	resp := FormatValidationErrors(errors.New("invalid character"), "req-2")

	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}
