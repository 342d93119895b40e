package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/technosupport/ts-nms/internal/data"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &Handler{
		DB:     db,
		Alarms: data.AlarmModel{DB: db},
		Log:    zap.NewNop(),
	}
	return h, mock
}

func doRequest(h *Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestHealthzOK(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectPing()

	rr := doRequest(h, "/healthz")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestHealthzDegraded(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	rr := doRequest(h, "/healthz")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rr.Body.String())
}

func TestOpenAlarmFound(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery("SELECT alarmid FROM alarms").
		WithArgs("key-A").
		WillReturnRows(sqlmock.NewRows([]string{"alarmid"}).AddRow(55))

	rr := doRequest(h, "/api/v1/alarms/open?key=key-A")

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		ReductionKey string `json:"reduction_key"`
		AlarmID      int64  `json:"alarm_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "key-A", body.ReductionKey)
	assert.EqualValues(t, 55, body.AlarmID)
}

func TestOpenAlarmNotFound(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery("SELECT alarmid FROM alarms").
		WithArgs("key-gone").
		WillReturnRows(sqlmock.NewRows([]string{"alarmid"}))

	rr := doRequest(h, "/api/v1/alarms/open?key=key-gone")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOpenAlarmMissingKey(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doRequest(h, "/api/v1/alarms/open")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOpenAlarmLookupFailure(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery("SELECT alarmid FROM alarms").
		WithArgs("key-A").
		WillReturnError(sql.ErrConnDone)

	rr := doRequest(h, "/api/v1/alarms/open?key=key-A")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
