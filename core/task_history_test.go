package core

import "testing"

func TestTaskHistory_RecentNewestFirst(t *testing.T) {
	h := NewTaskHistory(3)

	for _, name := range []string{"a", "b", "c", "d"} {
		h.Add(TaskExecutionRecord{Name: name})
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}

	got := h.Recent(0)
	want := []string{"d", "c", "b"}
	for i, rec := range got {
		if rec.Name != want[i] {
			t.Fatalf("Recent()[%d] = %q, want %q", i, rec.Name, want[i])
		}
	}

	if limited := h.Recent(1); len(limited) != 1 || limited[0].Name != "d" {
		t.Errorf("Recent(1) = %+v, want [d]", limited)
	}

	last, ok := h.Last()
	if !ok || last.Name != "d" {
		t.Errorf("Last() = %+v, %v; want d, true", last, ok)
	}
}

func TestTaskHistory_EmptyAndNil(t *testing.T) {
	h := NewTaskHistory(0)
	if _, ok := h.Last(); ok {
		t.Error("Last() on empty history = true")
	}
	if h.Recent(5) != nil {
		t.Error("Recent() on empty history should be nil")
	}

	var nilHistory *TaskHistory
	nilHistory.Add(TaskExecutionRecord{Name: "ignored"})
	if nilHistory.Len() != 0 || nilHistory.Recent(1) != nil {
		t.Error("nil history should ignore records")
	}
}
