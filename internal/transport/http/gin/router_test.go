package httpgin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func postJSON(t *testing.T, handler gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/holds", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)

	return w
}

func TestCreateHoldRejectsMalformedDate(t *testing.T) {
	w := postJSON(t, handleCreateHold(Services{}, nil, nil),
		`{"date":"05/01/2024","time":"19:00","table_ids":["T1"]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestCreateHoldRejectsMalformedTime(t *testing.T) {
	w := postJSON(t, handleCreateHold(Services{}, nil, nil),
		`{"date":"2024-05-01","time":"7pm","table_ids":["T1"]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateHoldRejectsEmptyTableSet(t *testing.T) {
	w := postJSON(t, handleCreateHold(Services{}, nil, nil),
		`{"date":"2024-05-01","time":"19:00","table_ids":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
