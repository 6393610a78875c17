package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type loginBody struct {
	Username string `json:"username" binding:"required,max=8"`
	Password string `json:"password" binding:"required"`
}

func TestHandleBindingError(t *testing.T) {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID(), BodyLimit(64))
	router.POST("/login", func(c *gin.Context) {
		var body loginBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleBindingError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(router, req)
	}

	t.Run("field errors use json names", func(t *testing.T) {
		w := post(`{"username":"far-too-long"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "ERR_VALIDATION")
		assert.Contains(t, body, `"field":"username"`)
		assert.Contains(t, body, "Must be at most 8 characters")
		assert.Contains(t, body, `"field":"password"`)
		assert.Contains(t, body, "This field is required")
	})

	t.Run("malformed json", func(t *testing.T) {
		w := post(`{"username":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong type", func(t *testing.T) {
		w := post(`{"username":1,"password":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_INVALID_JSON")
	})

	t.Run("valid", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, post(`{"username":"admin","password":"x"}`).Code)
	})
}
