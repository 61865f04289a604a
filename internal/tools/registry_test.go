package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func echoTool(name string, category ToolCategory) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Category:    category,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("%v", args["text"]), nil
		},
		Schema: ToolSchema{
			Required: []string{"text"},
			Properties: map[string]Property{
				"text": {Type: "string", Description: "text to echo"},
			},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo", CategoryGeneral)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if got := r.Get("echo"); got == nil || got.Name != "echo" {
		t.Errorf("Get returned %+v", got)
	}
	if !r.Has("echo") || r.Has("missing") {
		t.Error("Has gave wrong answers")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo", CategoryGeneral)); err != nil {
		t.Fatal(err)
	}
	err := r.Register(echoTool("echo", CategoryGeneral))
	if !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Errorf("expected ErrToolAlreadyRegistered, got %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Tool{Name: ""}); !errors.Is(err, ErrToolNameEmpty) {
		t.Errorf("expected ErrToolNameEmpty, got %v", err)
	}
	if err := r.Register(&Tool{Name: "noexec"}); !errors.Is(err, ErrToolExecuteNil) {
		t.Errorf("expected ErrToolExecuteNil, got %v", err)
	}
}

func TestAllSortedByName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(echoTool(name, CategoryGeneral)); err != nil {
			t.Fatal(err)
		}
	}
	all := r.All()
	if len(all) != 3 || all[0].Name != "alpha" || all[2].Name != "zeta" {
		t.Errorf("All not sorted by name: %v", r.Names())
	}
}

func TestGetByCategoryPriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("low", CategoryContract).WithPriority(10))
	r.MustRegister(echoTool("high", CategoryContract).WithPriority(90))
	r.MustRegister(echoTool("other", CategoryDocs))

	got := r.GetByCategory(CategoryContract)
	if len(got) != 2 || got[0].Name != "high" || got[1].Name != "low" {
		names := make([]string, len(got))
		for i, tl := range got {
			names[i] = tl.Name
		}
		t.Errorf("category order = %v, want [high low]", names)
	}
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", CategoryGeneral))

	res, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Result != "hello" || !res.IsSuccess() {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.RequestID == "" {
		t.Error("result should carry a request id")
	}
}

func TestExecuteMissingTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "ghost", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}

func TestExecuteMissingRequiredArg(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", CategoryGeneral))

	res, err := r.Execute(context.Background(), "echo", map[string]any{})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Errorf("expected ErrMissingRequiredArg, got %v", err)
	}
	if res == nil || res.IsSuccess() {
		t.Errorf("result should report the failure: %+v", res)
	}
}

func TestRequestIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", CategoryGeneral))

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		res, err := r.Execute(context.Background(), "echo", map[string]any{"text": "x"})
		if err != nil {
			t.Fatal(err)
		}
		if seen[res.RequestID] {
			t.Fatalf("request id %s repeated", res.RequestID)
		}
		seen[res.RequestID] = true
	}
}

func TestConcurrentRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("tool-%d", i)
			if err := r.Register(echoTool(name, CategoryGeneral)); err != nil {
				t.Errorf("register %s: %v", name, err)
				return
			}
			if _, err := r.Execute(context.Background(), name, map[string]any{"text": "x"}); err != nil {
				t.Errorf("execute %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 16 {
		t.Errorf("Count = %d, want 16", r.Count())
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{"s": "str", "n": float64(7), "bad": []int{}}

	if s, err := StringArg(args, "s"); err != nil || s != "str" {
		t.Errorf("StringArg = %q, %v", s, err)
	}
	if s, err := StringArg(args, "absent"); err != nil || s != "" {
		t.Errorf("absent StringArg = %q, %v", s, err)
	}
	if _, err := StringArg(args, "n"); !errors.Is(err, ErrInvalidArgType) {
		t.Errorf("expected ErrInvalidArgType, got %v", err)
	}

	if n, err := IntArg(args, "n", 3); err != nil || n != 7 {
		t.Errorf("IntArg = %d, %v", n, err)
	}
	if n, err := IntArg(args, "absent", 3); err != nil || n != 3 {
		t.Errorf("default IntArg = %d, %v", n, err)
	}
	if _, err := IntArg(args, "bad", 3); !errors.Is(err, ErrInvalidArgType) {
		t.Errorf("expected ErrInvalidArgType, got %v", err)
	}
}
