package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studyplan/internal/planner"
	"studyplan/internal/services/plan"
	logx "studyplan/pkg/logx"
)

func newTestServer(t *testing.T) (*Server, *plan.Service) {
	t.Helper()
	plans := plan.New(plan.Config{SchedulingType: "A"}, nil, logx.Nop())
	plans.SetClock(func() time.Time {
		return time.Date(2025, 1, 4, 7, 0, 0, 0, time.UTC) // Saturday
	})
	srv := New(Config{Addr: ":0"}, plans, nil, logx.Nop())
	plans.SetOnChange(srv.FlushCache)
	return srv, plans
}

func (s *Server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestCourseAndScheduleFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/courses", `{"name":"Algorithms"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create course: %d %s", w.Code, w.Body)
	}
	var course planner.Course
	if err := json.Unmarshal(w.Body.Bytes(), &course); err != nil {
		t.Fatal(err)
	}
	if course.ID == "" || course.Name != "Algorithms" {
		t.Fatalf("unexpected course: %+v", course)
	}

	taskBody := `{"due_date":"2025-01-07","description":"problem set 1","approved_by_user":true,` +
		`"subtasks":[{"description":"read chapter","expected_time":1}]}`
	w = srv.do(t, http.MethodPost, "/api/v1/courses/"+course.ID+"/tasks", taskBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("add task: %d %s", w.Code, w.Body)
	}
	var task planner.Task
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatal(err)
	}
	if len(task.Subtasks) != 1 || task.Subtasks[0].ID == "" {
		t.Fatalf("subtask not assigned an id: %+v", task)
	}

	// Monday availability 09:00-12:00.
	w = srv.do(t, http.MethodPut, "/api/v1/availability", `{"1":[{"start":540,"end":720}]}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("put availability: %d %s", w.Code, w.Body)
	}

	w = srv.do(t, http.MethodPost, "/api/v1/schedule/auto", `{"force":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("auto schedule: %d %s", w.Code, w.Body)
	}

	// Due Tuesday 2025-01-07 with the one-day margin lands on Monday.
	w = srv.do(t, http.MethodGet, "/api/v1/schedule?day=2025-01-06", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get schedule: %d %s", w.Code, w.Body)
	}
	var slots []planner.ScheduledTime
	if err := json.Unmarshal(w.Body.Bytes(), &slots); err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || slots[0].StartTime != 540 || slots[0].EndTime != 600 {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestScheduleCacheFlushedOnMutation(t *testing.T) {
	srv, plans := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/courses", `{"name":"Linear Algebra"}`)
	var course planner.Course
	if err := json.Unmarshal(w.Body.Bytes(), &course); err != nil {
		t.Fatal(err)
	}
	taskBody := `{"due_date":"2025-01-07","description":"hw","approved_by_user":true,` +
		`"subtasks":[{"description":"part a","expected_time":1}]}`
	srv.do(t, http.MethodPost, "/api/v1/courses/"+course.ID+"/tasks", taskBody)
	srv.do(t, http.MethodPut, "/api/v1/availability", `{"1":[{"start":540,"end":720}]}`)

	// Prime the cache with an empty day view.
	w = srv.do(t, http.MethodGet, "/api/v1/schedule?day=2025-01-06", "")
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("expected empty day, got %s", got)
	}

	if w := srv.do(t, http.MethodPost, "/api/v1/schedule/auto", ""); w.Code != http.StatusOK {
		t.Fatalf("auto schedule: %d %s", w.Code, w.Body)
	}

	// The mutation must have flushed the cached empty view.
	w = srv.do(t, http.MethodGet, "/api/v1/schedule?day=2025-01-06", "")
	var slots []planner.ScheduledTime
	if err := json.Unmarshal(w.Body.Bytes(), &slots); err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot after reschedule, got %+v", slots)
	}
	if got := plans.ScheduledTimes(""); len(got) != 1 {
		t.Fatalf("service state disagrees: %+v", got)
	}
}

func TestApprovalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/courses", `{"name":"Physics"}`)
	var course planner.Course
	if err := json.Unmarshal(w.Body.Bytes(), &course); err != nil {
		t.Fatal(err)
	}
	w = srv.do(t, http.MethodPost, "/api/v1/courses/"+course.ID+"/tasks",
		`{"due_date":"2025-01-10","description":"lab report"}`)
	var task planner.Task
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatal(err)
	}

	assertApproved := func(want bool) {
		t.Helper()
		w := srv.do(t, http.MethodGet, "/api/v1/tasks/approval", "")
		var resp struct {
			AllApproved bool `json:"all_approved"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.AllApproved != want {
			t.Fatalf("all_approved = %v, want %v", resp.AllApproved, want)
		}
	}

	assertApproved(false)
	toggle := fmt.Sprintf("/api/v1/courses/%s/tasks/%s/approval", course.ID, task.ID)
	if w := srv.do(t, http.MethodPost, toggle, ""); w.Code != http.StatusNoContent {
		t.Fatalf("toggle: %d %s", w.Code, w.Body)
	}
	assertApproved(true)
	srv.do(t, http.MethodPost, toggle, "")
	assertApproved(false)
	if w := srv.do(t, http.MethodPost, "/api/v1/tasks/approve-all", ""); w.Code != http.StatusNoContent {
		t.Fatalf("approve all: %d %s", w.Code, w.Body)
	}
	assertApproved(true)
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/courses/nope/tasks",
		`{"due_date":"2025-01-10","description":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing course: got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/api/v1/schedule/manual",
		`{"subtask_id":"s","course_id":"c","task_id":"t","day":"2025-01-06","start_time":600,"end_time":540}`)
	if w.Code != http.StatusNotFound && w.Code != http.StatusBadRequest {
		t.Fatalf("invalid manual slot: got %d", w.Code)
	}

	w = srv.do(t, http.MethodGet, "/api/v1/schedule?day=tomorrow", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad day param: got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/api/v1/courses", `{"name":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty course name: got %d", w.Code)
	}

	// Document endpoints respond 501 when no object store is configured.
	w = srv.do(t, http.MethodGet, "/api/v1/courses/c/documents/d/url", "")
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("docstore disabled: got %d", w.Code)
	}
}
