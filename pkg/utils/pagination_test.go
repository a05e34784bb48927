package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGetLimit(t *testing.T) {
	e := echo.New()
	cases := map[string]int{
		"":           0,
		"?limit=abc": 0,
		"?limit=-3":  0,
		"?limit=25":  25,
		"?limit=900": 500,
	}

	for query, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/message/c1"+query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		assert.Equal(t, want, GetLimit(c, 0, 500), "query %q", query)
	}
}
