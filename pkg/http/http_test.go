package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Indicator string  `param:"indicator" validate:"required,oneof=selic ipca"`
	Periods   int     `json:"periods" default:"12" validate:"gte=1,lte=60"`
	Strict    bool    `json:"strict"`
	Ratio     float64 `query:"ratio"`
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/api/predict/selic", `{"strict":true}`)
	c.SetParamNames("indicator")
	c.SetParamValues("selic")

	req := &sampleRequest{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, "selic", req.Indicator)
	assert.Equal(t, 12, req.Periods)
	assert.True(t, req.Strict)
}

func TestReadAndValidateRequestReportsWireNames(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/api/predict/gdp", `{"periods":90}`)
	c.SetParamNames("indicator")
	c.SetParamValues("gdp")

	verr := ReadAndValidateRequest(c, &sampleRequest{})
	require.Len(t, verr, 2)

	byField := map[string]ValidationError{}
	for _, v := range verr {
		byField[v.Field] = v
	}
	assert.Equal(t, "ERR_ONEOF", byField["indicator"].Code)
	assert.Equal(t, []string{"selic", "ipca"}, byField["indicator"].Params["options"])
	assert.Equal(t, "ERR_LTE", byField["periods"].Code)
	assert.Equal(t, "periods must be less than or equal to 60", byField["periods"].Message)
}

type lowerRequest struct {
	Indicator string `param:"indicator" validate:"required,oneof=selic ipca"`
}

func (r *lowerRequest) Normalize() { r.Indicator = strings.ToLower(strings.TrimSpace(r.Indicator)) }

func TestReadAndValidateRequestNormalizesFirst(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/api/series/SELIC", "")
	c.SetParamNames("indicator")
	c.SetParamValues("SELIC")

	req := &lowerRequest{}
	require.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, "selic", req.Indicator)
}

func TestReadAndValidateRequestBindError(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/api/predict/selic", `{"periods":"many"}`)
	c.SetParamNames("indicator")
	c.SetParamValues("selic")

	verr := ReadAndValidateRequest(c, &sampleRequest{})
	require.Len(t, verr, 1)
	assert.Equal(t, "ERR_BIND", verr[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	err := NotFoundErrorf("no data for %s", "pib").WithParam("ano", 2020)
	require.NoError(t, AppErrorResponse(c, err))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body struct {
		Status int         `json:"status"`
		Data   []*AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_NOT_FOUND", body.Data[0].Code)
	assert.Equal(t, "no data for pib", body.Data[0].Message)
	assert.EqualValues(t, 2020, body.Data[0].Params["ano"])
}

func TestAppErrorResponseHidesPlainErrors(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	require.NoError(t, AppErrorResponse(c, errors.New("dial tcp: refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := InternalError("failed").WithError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed: boom", err.Error())
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "json", r.URL.Query().Get("formato"))
			_, _ = w.Write([]byte(`[{"data":"01/01/2020","valor":"4.5"}]`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("down"))
		}
	}))
	defer srv.Close()

	c := NewClient()
	var rows []map[string]string
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL + "/ok",
		QueryParams: map[string][]string{"formato": {"json"}},
	}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "4.5", rows[0]["valor"])

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/down"}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.True(t, se.Temporary())
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2024-03-01", "01/03/2024"} {
		d, ok := ParseDate(raw)
		require.True(t, ok, raw)
		assert.Equal(t, 2024, d.Year())
		assert.Equal(t, 3, int(d.Month()))
	}
	_, ok := ParseDate("March")
	assert.False(t, ok)
}
