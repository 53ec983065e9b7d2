package leave_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leavedesk/internal/identity"
	"leavedesk/internal/leave"
	leaveerrors "leavedesk/internal/leave/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	err := json.Unmarshal(body, &env)
	assert.NoError(t, err)
	return env
}

type fakeLeaveService struct {
	applyFn       func(ctx context.Context, actor identity.Actor, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error)
	decideFn      func(ctx context.Context, actor identity.Actor, id string, req leave.DecideLeaveRequest) (leave.LeaveResponse, error)
	cancelFn      func(ctx context.Context, actor identity.Actor, id string, req leave.CancelLeaveRequest) (leave.LeaveResponse, error)
	listFn        func(ctx context.Context, actor identity.Actor, q leave.ListLeavesQuery) ([]leave.LeaveResponse, error)
	listPendingFn func(ctx context.Context) ([]leave.LeaveResponse, error)
	statsFn       func(ctx context.Context, employeeID string, year int) (leave.LeaveStatsResponse, error)
}

func (f *fakeLeaveService) Apply(ctx context.Context, actor identity.Actor, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
	return f.applyFn(ctx, actor, req)
}
func (f *fakeLeaveService) Decide(ctx context.Context, actor identity.Actor, id string, req leave.DecideLeaveRequest) (leave.LeaveResponse, error) {
	return f.decideFn(ctx, actor, id, req)
}
func (f *fakeLeaveService) Cancel(ctx context.Context, actor identity.Actor, id string, req leave.CancelLeaveRequest) (leave.LeaveResponse, error) {
	return f.cancelFn(ctx, actor, id, req)
}
func (f *fakeLeaveService) List(ctx context.Context, actor identity.Actor, q leave.ListLeavesQuery) ([]leave.LeaveResponse, error) {
	return f.listFn(ctx, actor, q)
}
func (f *fakeLeaveService) ListPending(ctx context.Context) ([]leave.LeaveResponse, error) {
	return f.listPendingFn(ctx)
}
func (f *fakeLeaveService) Stats(ctx context.Context, employeeID string, year int) (leave.LeaveStatsResponse, error) {
	return f.statsFn(ctx, employeeID, year)
}

func applyBody(t *testing.T) string {
	t.Helper()
	return `{
		"category": "CASUAL",
		"start_date": "2027-03-10",
		"end_date": "2027-03-12",
		"reason": "Family event",
		"phone_during_leave": "+62-811-0000",
		"backup_person": {"name": "Backup Person", "contact": "backup@example.com"},
		"policy_acknowledged": true
	}`
}

func TestLeaveHandler_Apply(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		employeeID := uuid.New().String()
		svc := &fakeLeaveService{
			applyFn: func(ctx context.Context, actor identity.Actor, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, employeeID, actor.EmployeeID)
				assert.Equal(t, "Test Employee", actor.Name)
				assert.Equal(t, leave.CategoryCasual, req.Category)
				return leave.LeaveResponse{
					ID:           uuid.New().String(),
					EmployeeID:   actor.EmployeeID,
					Category:     req.Category,
					StartDate:    req.StartDate,
					EndDate:      req.EndDate,
					NumberOfDays: 3,
					Status:       leave.StatusPending,
				}, nil
			},
		}

		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/leave", strings.NewReader(applyBody(t)))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Set("employee_id", employeeID)
		c.Set("employee_name", "Test Employee")
		c.Set("role", identity.RoleEmployee)

		h.Apply(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
		var got leave.LeaveResponse
		err := json.Unmarshal(env.Data, &got)
		assert.NoError(t, err)
		assert.Equal(t, employeeID, got.EmployeeID)
		assert.Equal(t, leave.StatusPending, got.Status)
		assert.Equal(t, 3, got.NumberOfDays)
	})

	t.Run("negative validation error", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/leave", strings.NewReader(`{}`))
		c.Request.Header.Set("Content-Type", "application/json")

		h.Apply(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_INPUT", env.Error.Code)
		assert.Equal(t, "Category is required", env.Error.Message)
	})

	t.Run("negative overlap returns conflict", func(t *testing.T) {
		svc := &fakeLeaveService{
			applyFn: func(ctx context.Context, actor identity.Actor, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrLeaveOverlap
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/leave", strings.NewReader(applyBody(t)))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Set("employee_id", uuid.New().String())

		h.Apply(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.NotNil(t, env.Error)
		assert.Equal(t, "CONFLICT", env.Error.Code)
	})

	t.Run("negative service error masked as internal", func(t *testing.T) {
		svc := &fakeLeaveService{
			applyFn: func(ctx context.Context, actor identity.Actor, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, errors.New("driver: bad connection")
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/leave", strings.NewReader(applyBody(t)))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Set("employee_id", uuid.New().String())

		h.Apply(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.NotNil(t, env.Error)
		assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
		assert.Equal(t, "An unexpected error occurred", env.Error.Message)
	})
}

func TestLeaveHandler_Decide(t *testing.T) {
	t.Run("success approve", func(t *testing.T) {
		managerID := uuid.New().String()
		leaveID := uuid.New().String()
		svc := &fakeLeaveService{
			decideFn: func(ctx context.Context, actor identity.Actor, id string, req leave.DecideLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, managerID, actor.EmployeeID)
				assert.Equal(t, identity.RoleManager, actor.Role)
				assert.Equal(t, leaveID, id)
				assert.Equal(t, leave.StatusApproved, req.Action)
				return leave.LeaveResponse{ID: id, Status: leave.StatusApproved}, nil
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPut, "/leave/"+leaveID+"/status", strings.NewReader(`{"action":"APPROVED"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Params = []gin.Param{{Key: "id", Value: leaveID}}
		c.Set("employee_id", managerID)
		c.Set("role", identity.RoleManager)

		h.Decide(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
		var got leave.LeaveResponse
		err := json.Unmarshal(env.Data, &got)
		assert.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, got.Status)
	})

	t.Run("negative unknown action", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPut, "/leave/123/status", strings.NewReader(`{"action":"MAYBE"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Params = []gin.Param{{Key: "id", Value: "123"}}

		h.Decide(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("negative already decided", func(t *testing.T) {
		svc := &fakeLeaveService{
			decideFn: func(ctx context.Context, actor identity.Actor, id string, req leave.DecideLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrNotPending
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPut, "/leave/123/status", strings.NewReader(`{"action":"REJECTED","remarks":"late"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Params = []gin.Param{{Key: "id", Value: "123"}}
		c.Set("employee_id", uuid.New().String())
		c.Set("role", identity.RoleAdmin)

		h.Decide(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "INVALID_STATE", env.Error.Code)
	})
}

func TestLeaveHandler_Cancel(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		employeeID := uuid.New().String()
		leaveID := uuid.New().String()
		svc := &fakeLeaveService{
			cancelFn: func(ctx context.Context, actor identity.Actor, id string, req leave.CancelLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, employeeID, actor.EmployeeID)
				assert.Equal(t, leaveID, id)
				assert.Equal(t, "plans changed", req.Reason)
				return leave.LeaveResponse{ID: id, Status: leave.StatusCancelled}, nil
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPut, "/leave/"+leaveID+"/cancel", strings.NewReader(`{"reason":"plans changed"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Params = []gin.Param{{Key: "id", Value: leaveID}}
		c.Set("employee_id", employeeID)

		h.Cancel(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
		var got leave.LeaveResponse
		err := json.Unmarshal(env.Data, &got)
		assert.NoError(t, err)
		assert.Equal(t, leave.StatusCancelled, got.Status)
	})

	t.Run("negative not cancellable", func(t *testing.T) {
		svc := &fakeLeaveService{
			cancelFn: func(ctx context.Context, actor identity.Actor, id string, req leave.CancelLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrNotCancellable
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPut, "/leave/123/cancel", strings.NewReader(`{"reason":"too late"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Params = []gin.Param{{Key: "id", Value: "123"}}
		c.Set("employee_id", uuid.New().String())

		h.Cancel(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "INVALID_STATE", env.Error.Code)
	})
}

func TestLeaveHandler_List(t *testing.T) {
	t.Run("success paginates", func(t *testing.T) {
		employeeID := uuid.New().String()
		svc := &fakeLeaveService{
			listFn: func(ctx context.Context, actor identity.Actor, q leave.ListLeavesQuery) ([]leave.LeaveResponse, error) {
				assert.Equal(t, employeeID, actor.EmployeeID)
				out := make([]leave.LeaveResponse, 15)
				for i := range out {
					out[i] = leave.LeaveResponse{ID: uuid.New().String(), Status: leave.StatusPending}
				}
				return out, nil
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/leaves?page=2&page_size=10", nil)
		c.Set("employee_id", employeeID)
		c.Set("role", identity.RoleEmployee)

		h.List(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
		var got []leave.LeaveResponse
		err := json.Unmarshal(env.Data, &got)
		assert.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("negative bad status filter", func(t *testing.T) {
		h := leave.NewHandler(&fakeLeaveService{})
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/leaves?status=SLEEPING", nil)
		c.Set("employee_id", uuid.New().String())

		h.List(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})
}

func TestLeaveHandler_Stats(t *testing.T) {
	t.Run("my stats uses actor id", func(t *testing.T) {
		employeeID := uuid.New().String()
		svc := &fakeLeaveService{
			statsFn: func(ctx context.Context, eid string, year int) (leave.LeaveStatsResponse, error) {
				assert.Equal(t, employeeID, eid)
				assert.Equal(t, 2026, year)
				return leave.LeaveStatsResponse{EmployeeID: eid, Year: year}, nil
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/leaves/stats?year=2026", nil)
		c.Set("employee_id", employeeID)

		h.MyStats(c)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
	})

	t.Run("employee stats uses path param", func(t *testing.T) {
		targetID := uuid.New().String()
		svc := &fakeLeaveService{
			statsFn: func(ctx context.Context, eid string, year int) (leave.LeaveStatsResponse, error) {
				assert.Equal(t, targetID, eid)
				return leave.LeaveStatsResponse{EmployeeID: eid}, nil
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/leaves/stats/"+targetID, nil)
		c.Params = []gin.Param{{Key: "employeeId", Value: targetID}}
		c.Set("employee_id", uuid.New().String())
		c.Set("role", identity.RoleManager)

		h.EmployeeStats(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("negative unknown employee", func(t *testing.T) {
		svc := &fakeLeaveService{
			statsFn: func(ctx context.Context, eid string, year int) (leave.LeaveStatsResponse, error) {
				return leave.LeaveStatsResponse{}, leaveerrors.ErrInvalidEmployeeID
			},
		}
		h := leave.NewHandler(svc)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/leaves/stats/not-a-uuid", nil)
		c.Params = []gin.Param{{Key: "employeeId", Value: "not-a-uuid"}}
		c.Set("employee_id", uuid.New().String())
		c.Set("role", identity.RoleAdmin)

		h.EmployeeStats(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	})
}
