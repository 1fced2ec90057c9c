package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"studyplan/internal/planner"
)

// TaskPatch carries the fields a task update may change. Nil fields stay
// untouched.
type TaskPatch struct {
	Type        *string
	DueDate     *string
	Description *string
	Approved    *bool
}

// SubtaskPatch carries the fields a subtask update may change.
type SubtaskPatch struct {
	Description                *string
	ExpectedTime               *float64
	CurrentPercentageCompleted *float64
}

func (s *Service) AddCourse(ctx context.Context, name string) (planner.Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return planner.Course{}, fmt.Errorf("%w: course name is empty", ErrInvalidSlot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := planner.Course{ID: uuid.NewString(), Name: name}
	s.courses = append(s.courses, c)
	return c, s.commitLocked(ctx)
}

func (s *Service) AddTask(ctx context.Context, courseID string, t planner.Task) (planner.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findCourseLocked(courseID)
	if c == nil {
		return planner.Task{}, fmt.Errorf("%w: course %s", ErrNotFound, courseID)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == "" {
			t.Subtasks[i].ID = uuid.NewString()
		}
	}
	t.UpdatedAt = s.now()
	c.Tasks = append(c.Tasks, t)
	return t, s.commitLocked(ctx)
}

func (s *Service) UpdateTask(ctx context.Context, courseID, taskID string, p TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t := s.findTaskLocked(courseID, taskID)
	if t == nil {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Approved != nil {
		t.ApprovedByUser = *p.Approved
	}
	t.UpdatedAt = s.now()
	return s.commitLocked(ctx)
}

// RemoveTask deletes a task and every scheduled block that referenced it.
func (s *Service) RemoveTask(ctx context.Context, courseID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, t := s.findTaskLocked(courseID, taskID)
	if t == nil {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	kept := c.Tasks[:0]
	for _, task := range c.Tasks {
		if task.ID != taskID {
			kept = append(kept, task)
		}
	}
	c.Tasks = kept
	s.dropSlotsLocked(func(st planner.ScheduledTime) bool { return st.TaskID == taskID })
	return s.commitLocked(ctx)
}

func (s *Service) AddSubtask(ctx context.Context, courseID, taskID string, sub planner.Subtask) (planner.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t := s.findTaskLocked(courseID, taskID)
	if t == nil {
		return planner.Subtask{}, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	t.Subtasks = append(t.Subtasks, sub)
	t.UpdatedAt = s.now()
	return sub, s.commitLocked(ctx)
}

func (s *Service) UpdateSubtask(ctx context.Context, courseID, taskID, subtaskID string, p SubtaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t, sub := s.findSubtaskLocked(courseID, taskID, subtaskID)
	if sub == nil {
		return fmt.Errorf("%w: subtask %s", ErrNotFound, subtaskID)
	}
	if p.Description != nil {
		sub.Description = *p.Description
	}
	if p.ExpectedTime != nil {
		sub.ExpectedTime = *p.ExpectedTime
	}
	if p.CurrentPercentageCompleted != nil {
		sub.CurrentPercentageCompleted = *p.CurrentPercentageCompleted
	}
	t.UpdatedAt = s.now()
	return s.commitLocked(ctx)
}

// RemoveSubtask deletes a subtask and its scheduled blocks.
func (s *Service) RemoveSubtask(ctx context.Context, courseID, taskID, subtaskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, t, sub := s.findSubtaskLocked(courseID, taskID, subtaskID)
	if sub == nil {
		return fmt.Errorf("%w: subtask %s", ErrNotFound, subtaskID)
	}
	kept := t.Subtasks[:0]
	for _, x := range t.Subtasks {
		if x.ID != subtaskID {
			kept = append(kept, x)
		}
	}
	t.Subtasks = kept
	t.UpdatedAt = s.now()
	s.dropSlotsLocked(func(st planner.ScheduledTime) bool { return st.SubtaskID == subtaskID })
	return s.commitLocked(ctx)
}

// AttachDocument records a stored document on a course.
func (s *Service) AttachDocument(ctx context.Context, courseID string, doc planner.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findCourseLocked(courseID)
	if c == nil {
		return fmt.Errorf("%w: course %s", ErrNotFound, courseID)
	}
	if c.Documents == nil {
		c.Documents = map[string]planner.Document{}
	}
	c.Documents[doc.ID] = doc
	return s.commitLocked(ctx)
}

// Document resolves a stored document by course and id.
func (s *Service) Document(courseID, docID string) (planner.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findCourseLocked(courseID)
	if c == nil {
		return planner.Document{}, false
	}
	doc, ok := c.Documents[docID]
	return doc, ok
}

func (s *Service) dropSlotsLocked(match func(planner.ScheduledTime) bool) {
	kept := s.scheduled[:0]
	for _, st := range s.scheduled {
		if !match(st) {
			kept = append(kept, st)
		}
	}
	s.scheduled = kept
}
