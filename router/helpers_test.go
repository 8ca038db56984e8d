package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadijannat/titan-aas/idcodec"
	"github.com/hadijannat/titan-aas/titanerr"
)

func TestErrorConstructorsMapToExpectedKinds(t *testing.T) {
	var tErr *titanerr.Error

	require.ErrorAs(t, preconditionFailed("stale"), &tErr)
	assert.Equal(t, titanerr.PreconditionFailed, tErr.Kind)

	require.ErrorAs(t, notFound("Shell", "urn:ex:1"), &tErr)
	assert.Equal(t, titanerr.NotFound, tErr.Kind)

	require.ErrorAs(t, badRequest("bad body"), &tErr)
	assert.Equal(t, titanerr.ValidationError, tErr.Kind)
}

func TestPageLimitDefaultsAndBounds(t *testing.T) {
	s := &Server{cfg: Config{MaxPageLimit: 50}}

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/shells", nil), httptest.NewRecorder())
	limit, err := s.pageLimit(c)
	require.NoError(t, err)
	assert.Equal(t, 100, limit)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/shells?limit=200", nil), httptest.NewRecorder())
	limit, err = s.pageLimit(c)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/shells?limit=10", nil), httptest.NewRecorder())
	limit, err = s.pageLimit(c)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/shells?limit=0", nil), httptest.NewRecorder())
	_, err = s.pageLimit(c)
	assert.Error(t, err)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/shells?limit=notanumber", nil), httptest.NewRecorder())
	_, err = s.pageLimit(c)
	assert.Error(t, err)
}

func TestIDTokenParam(t *testing.T) {
	e := echo.New()
	id := "urn:ex:aas:1"
	token := idcodec.Encode(id)

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/shells/"+token, nil), httptest.NewRecorder())
	c.SetParamNames("id_token")
	c.SetParamValues(token)

	decoded, err := idTokenParam(c, "id_token")
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/shells/", nil), httptest.NewRecorder())
	c.SetParamNames("id_token")
	c.SetParamValues("")
	_, err = idTokenParam(c, "id_token")
	assert.Error(t, err)
}
