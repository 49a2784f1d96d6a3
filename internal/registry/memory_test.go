package registry

import (
	"context"
	"testing"

	"github.com/takumi-oki/chorus/internal/model"
)

func TestSubmitAndGetTask(t *testing.T) {
	m := NewMemory()

	id, err := m.SubmitTask(context.Background(), TaskSpec{Type: "backend", Description: "build the api"})
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	task, err := m.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task == nil {
		t.Fatal("GetTask returned nil for a submitted task")
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("Status = %s, want pending", task.Status)
	}
	if task.Priority != model.PriorityMedium {
		t.Errorf("Priority = %s, want medium default", task.Priority)
	}
}

func TestGetTaskUnknownReturnsNilNil(t *testing.T) {
	m := NewMemory()
	task, err := m.GetTask(context.Background(), "task_missing")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task != nil {
		t.Errorf("expected nil task, got %+v", task)
	}
}

func TestGetTasksFilters(t *testing.T) {
	m := NewMemory()
	m.PutTask(model.Task{ID: "t1", Type: "backend", Status: model.TaskStatusPending})
	m.PutTask(model.Task{ID: "t2", Type: "backend", Status: model.TaskStatusCompleted})
	m.PutTask(model.Task{ID: "t3", Type: "frontend", Status: model.TaskStatusPending})

	tasks, err := m.GetTasks(context.Background(), model.TaskFilter{Type: "backend", Status: model.TaskStatusPending})
	if err != nil {
		t.Fatalf("GetTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Errorf("filtered tasks = %+v, want just t1", tasks)
	}

	byID, err := m.GetTasks(context.Background(), model.TaskFilter{IDs: []string{"t2", "t3"}})
	if err != nil {
		t.Fatalf("GetTasks: %v", err)
	}
	if len(byID) != 2 {
		t.Errorf("got %d tasks by ID, want 2", len(byID))
	}
}

func TestStopProcessingRejectsSubmissions(t *testing.T) {
	m := NewMemory()
	m.StopProcessing()
	if _, err := m.SubmitTask(context.Background(), TaskSpec{Type: "backend"}); err == nil {
		t.Error("expected error after StopProcessing")
	}
}
