package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studyplan/internal/planner"
	"studyplan/internal/services/plan"
	logx "studyplan/pkg/logx"
)

const maxUploadBytes = 32 << 20

func (s *Server) listCourses(c *gin.Context) {
	const key = "courses"
	if v, ok := s.cache.Get(key); ok {
		c.JSON(http.StatusOK, v)
		return
	}
	courses := s.plans.Courses()
	s.cache.SetDefault(key, courses)
	c.JSON(http.StatusOK, courses)
}

func (s *Server) createCourse(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	course, err := s.plans.AddCourse(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (s *Server) addTask(c *gin.Context) {
	var req struct {
		Type        string            `json:"type"`
		DueDate     string            `json:"due_date" binding:"required"`
		Description string            `json:"description" binding:"required"`
		Approved    bool              `json:"approved_by_user"`
		Subtasks    []planner.Subtask `json:"subtasks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	task, err := s.plans.AddTask(c.Request.Context(), c.Param("courseID"), planner.Task{
		Type:           req.Type,
		DueDate:        req.DueDate,
		Description:    req.Description,
		ApprovedByUser: req.Approved,
		Subtasks:       req.Subtasks,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) updateTask(c *gin.Context) {
	var req struct {
		Type        *string `json:"type"`
		DueDate     *string `json:"due_date"`
		Description *string `json:"description"`
		Approved    *bool   `json:"approved_by_user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := s.plans.UpdateTask(c.Request.Context(), c.Param("courseID"), c.Param("taskID"), plan.TaskPatch{
		Type:        req.Type,
		DueDate:     req.DueDate,
		Description: req.Description,
		Approved:    req.Approved,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeTask(c *gin.Context) {
	if err := s.plans.RemoveTask(c.Request.Context(), c.Param("courseID"), c.Param("taskID")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) toggleApproval(c *gin.Context) {
	if err := s.plans.ToggleTaskApproval(c.Request.Context(), c.Param("courseID"), c.Param("taskID")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addSubtask(c *gin.Context) {
	var req struct {
		Description  string  `json:"description" binding:"required"`
		ExpectedTime float64 `json:"expected_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := s.plans.AddSubtask(c.Request.Context(), c.Param("courseID"), c.Param("taskID"), planner.Subtask{
		Description:  req.Description,
		ExpectedTime: req.ExpectedTime,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Server) updateSubtask(c *gin.Context) {
	var req struct {
		Description  *string  `json:"description"`
		ExpectedTime *float64 `json:"expected_time"`
		Progress     *float64 `json:"current_percentage_completed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := s.plans.UpdateSubtask(c.Request.Context(),
		c.Param("courseID"), c.Param("taskID"), c.Param("subtaskID"),
		plan.SubtaskPatch{
			Description:                req.Description,
			ExpectedTime:               req.ExpectedTime,
			CurrentPercentageCompleted: req.Progress,
		})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeSubtask(c *gin.Context) {
	err := s.plans.RemoveSubtask(c.Request.Context(),
		c.Param("courseID"), c.Param("taskID"), c.Param("subtaskID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) approveAll(c *gin.Context) {
	if err := s.plans.ApproveAllTasks(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) approvalStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"all_approved": s.plans.AreAllTasksApproved()})
}

func (s *Server) getSchedule(c *gin.Context) {
	day := c.Query("day")
	if day != "" {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			badRequest(c, errors.New("day must be YYYY-MM-DD"))
			return
		}
	}
	key := "schedule:" + day
	if v, ok := s.cache.Get(key); ok {
		c.JSON(http.StatusOK, v)
		return
	}
	slots := s.plans.ScheduledTimes(day)
	s.cache.SetDefault(key, slots)
	c.JSON(http.StatusOK, slots)
}

func (s *Server) autoSchedule(c *gin.Context) {
	var req struct {
		Force bool `json:"force"`
	}
	// empty body means force=false
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if err := s.plans.AutoSchedule(c.Request.Context(), req.Force); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": len(s.plans.ScheduledTimes(""))})
}

func (s *Server) manualSchedule(c *gin.Context) {
	var req struct {
		SubtaskID string `json:"subtask_id" binding:"required"`
		CourseID  string `json:"course_id" binding:"required"`
		TaskID    string `json:"task_id" binding:"required"`
		Day       string `json:"day" binding:"required"`
		StartTime int    `json:"start_time"`
		EndTime   int    `json:"end_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := s.plans.ManualSchedule(c.Request.Context(),
		req.SubtaskID, req.CourseID, req.TaskID, req.Day, req.StartTime, req.EndTime)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getAvailability(c *gin.Context) {
	c.JSON(http.StatusOK, s.plans.WeeklySchedule())
}

func (s *Server) putAvailability(c *gin.Context) {
	var ws planner.WeeklySchedule
	if err := c.ShouldBindJSON(&ws); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.plans.SetWeeklySchedule(c.Request.Context(), ws); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) uploadDocument(c *gin.Context) {
	if s.docs == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "document storage is disabled"})
		return
	}
	courseID := c.Param("courseID")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer file.Close()

	docID := uuid.NewString()
	contentType := header.Header.Get("Content-Type")
	key, err := s.docs.Upload(c.Request.Context(), courseID, docID, header.Filename, contentType, file, header.Size)
	if err != nil {
		s.fail(c, err)
		return
	}
	doc := planner.Document{
		ID:          docID,
		Name:        header.Filename,
		ObjectKey:   key,
		ContentType: contentType,
		Size:        header.Size,
		UploadedAt:  time.Now(),
	}
	if err := s.plans.AttachDocument(c.Request.Context(), courseID, doc); err != nil {
		// The object is already stored; drop it so the bucket does not
		// accumulate orphans for courses that were deleted mid-upload.
		if rmErr := s.docs.Remove(c.Request.Context(), key); rmErr != nil {
			s.log.Warn("orphan object not removed", logx.String("key", key), logx.Err(rmErr))
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) documentURL(c *gin.Context) {
	if s.docs == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "document storage is disabled"})
		return
	}
	courseID, docID := c.Param("courseID"), c.Param("docID")

	key := "docurl:" + courseID + ":" + docID
	if v, ok := s.cache.Get(key); ok {
		c.JSON(http.StatusOK, gin.H{"url": v})
		return
	}
	doc, ok := s.plans.Document(courseID, docID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	u, err := s.docs.PresignedURL(c.Request.Context(), doc.ObjectKey, doc.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	// Cache well short of the link's lifetime so clients never receive a
	// nearly expired URL.
	s.cache.Set(key, u, s.docs.URLTTL()/2)
	c.JSON(http.StatusOK, gin.H{"url": u})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, plan.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, plan.ErrInvalidSlot):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", logx.String("path", c.FullPath()), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
