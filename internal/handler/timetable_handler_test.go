package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type fakeTimetableSrv struct {
	createErr  error
	lastFilter models.TimetableFilter
	lastFormat string
	slots      []models.TimetableSlotDetail
}

func (f *fakeTimetableSrv) Create(ctx context.Context, req dto.CreateTimetableRequest) (*models.TimetableSlot, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.TimetableSlot{ID: "slot-1", ClassID: req.ClassID, Date: req.Date, Time: req.Time, Term: "Term 1"}, nil
}

func (f *fakeTimetableSrv) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlotDetail, error) {
	f.lastFilter = filter
	return f.slots, nil
}

func (f *fakeTimetableSrv) Update(ctx context.Context, id string, req dto.UpdateTimetableRequest) (*models.TimetableSlot, error) {
	return nil, appErrors.WithField(appErrors.ErrNotFound, "timetable", "timetable not found")
}

func (f *fakeTimetableSrv) Delete(ctx context.Context, id string) (*models.TimetableSlot, error) {
	return &models.TimetableSlot{ID: id}, nil
}

func (f *fakeTimetableSrv) Export(ctx context.Context, filter models.TimetableFilter, format string) (*service.ExportedFile, error) {
	f.lastFilter = filter
	f.lastFormat = format
	return &service.ExportedFile{Filename: "timetable.csv", ContentType: "text/csv", Payload: []byte("Date,Time\n")}, nil
}

func timetableRouter(srv *fakeTimetableSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTimetableHandler(srv)
	r.GET("/timetables", h.List)
	r.GET("/timetables/export", h.Export)
	r.POST("/timetables", h.Create)
	r.PUT("/timetables/:id", h.Update)
	r.DELETE("/timetables/:id", h.Delete)
	return r
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestTimetableHandlerListNormalizesTermAndReturnsEmptyArray(t *testing.T) {
	srv := &fakeTimetableSrv{slots: []models.TimetableSlotDetail{}}
	rec := httptest.NewRecorder()
	timetableRouter(srv).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timetables?classId=c1&term=%20Term%20%201%20", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", srv.lastFilter.ClassID)
	assert.Equal(t, "Term 1", srv.lastFilter.Term)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `[]`, string(env.Data))
	assert.Equal(t, float64(0), env.Meta["total"])
}

func TestTimetableHandlerCreateConflictEnvelope(t *testing.T) {
	conflict := &models.ScheduleConflictError{Type: models.ConflictClass, Message: "class already booked", Conflict: &models.TimetableSlot{ID: "existing"}}
	appErr := appErrors.Wrap(conflict, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, conflict.Message)
	appErr.Field = models.ConflictClass
	appErr.Details = conflict
	srv := &fakeTimetableSrv{createErr: appErr}

	body := `{"courseId":"c","classId":"CL1","unitId":"u","teacherId":"T2","date":"2024-09-01","time":"09:00-10:00"}`
	rec := httptest.NewRecorder()
	timetableRouter(srv).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/timetables", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "SCHEDULE_CONFLICT", raw["error"]["code"])
	assert.Equal(t, "class", raw["error"]["field"])
	details := raw["error"]["details"].(map[string]interface{})
	assert.Equal(t, "class", details["type"])
	assert.Equal(t, "existing", details["conflict"].(map[string]interface{})["id"])
}

func TestTimetableHandlerCreateRejectsMalformedJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	timetableRouter(&fakeTimetableSrv{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/timetables", bytes.NewBufferString("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, rec).Error.Code)
}

func TestTimetableHandlerExportStreamsAttachment(t *testing.T) {
	srv := &fakeTimetableSrv{}
	rec := httptest.NewRecorder()
	timetableRouter(srv).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timetables/export?teacherId=t1&format=csv", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.lastFormat)
	assert.Equal(t, "t1", srv.lastFilter.TeacherID)
	assert.Equal(t, `attachment; filename="timetable.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Date,Time\n", rec.Body.String())
}

func TestTimetableHandlerUpdateAndDelete(t *testing.T) {
	r := timetableRouter(&fakeTimetableSrv{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/timetables/missing", bytes.NewBufferString(`{"time":"10:00-11:00"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "timetable", decodeEnvelope(t, rec).Error.Field)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/timetables/slot-9", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"slot-9"`)
}
