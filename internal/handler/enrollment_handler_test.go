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
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type fakeEnrollmentSrv struct {
	last    dto.EnrollRequest
	calls   int
	noSlots bool
}

func (f *fakeEnrollmentSrv) Enroll(ctx context.Context, req dto.EnrollRequest) (*dto.EnrollmentResult, error) {
	f.calls++
	f.last = req
	if f.noSlots {
		return &dto.EnrollmentResult{Timetables: []models.TimetableSlotDetail{}, Warning: "no slots"}, nil
	}
	return &dto.EnrollmentResult{Enrollment: &models.Enrollment{ID: "e1", StudentID: req.StudentID}, Timetables: []models.TimetableSlotDetail{}}, nil
}

func enrollmentRouter(srv *fakeEnrollmentSrv, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/enrollments", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, claims)
		c.Next()
	}, NewEnrollmentHandler(srv).Enroll)
	return r
}

func postEnrollment(r http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString(body)))
	return rec
}

func TestEnrollmentHandlerDefaultsStudentToCaller(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	r := enrollmentRouter(srv, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	rec := postEnrollment(r, `{"courseId":"c1","classId":"cl1","unitIds":["u1"],"term":"Term 1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "s1", srv.last.StudentID)
	assert.Equal(t, []string{"u1"}, srv.last.UnitIDs)
}

func TestEnrollmentHandlerStudentCannotEnrollOthers(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	r := enrollmentRouter(srv, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	rec := postEnrollment(r, `{"studentId":"s2","courseId":"c1","classId":"cl1","unitIds":["u1"]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, srv.calls)
}

func TestEnrollmentHandlerAdminEnrollsAnyone(t *testing.T) {
	srv := &fakeEnrollmentSrv{noSlots: true}
	r := enrollmentRouter(srv, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})

	rec := postEnrollment(r, `{"studentId":"s2","courseId":"c1","classId":"cl1","unitIds":["u1"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s2", srv.last.StudentID)
	assert.Contains(t, rec.Body.String(), `"warning":"no slots"`)
	assert.Contains(t, rec.Body.String(), `"timetables":[]`)
}

func TestEnrollmentHandlerStudentOwnIDInUppercase(t *testing.T) {
	const studentID = "5f0c2a4e-9b1d-4c3a-8e7f-1a2b3c4d5e6f"
	srv := &fakeEnrollmentSrv{}
	r := enrollmentRouter(srv, &models.JWTClaims{UserID: studentID, Role: models.RoleStudent})

	rec := postEnrollment(r, `{"studentId":"5F0C2A4E-9B1D-4C3A-8E7F-1A2B3C4D5E6F","courseId":"c1","classId":"cl1","unitIds":["u1"]}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, studentID, srv.last.StudentID)
}

func TestEnrollmentHandlerNoSlotsReportsWarningNotError(t *testing.T) {
	srv := &fakeEnrollmentSrv{noSlots: true}
	r := enrollmentRouter(srv, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	rec := postEnrollment(r, `{"courseId":"c1","classId":"cl1","unitIds":["u1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Nil(t, env.Error)
	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.JSONEq(t, `"no slots"`, string(data["warning"]))
	assert.JSONEq(t, `null`, string(data["enrollment"]))
	assert.JSONEq(t, `[]`, string(data["timetables"]))
}
