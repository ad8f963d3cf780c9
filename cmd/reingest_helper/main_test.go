package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func TestListExtracts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2020-03.csv", "2020-04.CSV", "notes.txt", "archive.csv.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := listExtracts(dir)
	want := []string{"2020-03.csv", "2020-04.CSV"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("listExtracts = %v, want %v", got, want)
	}
}

func TestFilterPending(t *testing.T) {
	files := []string{"a.csv", "b.csv", "c.csv"}
	statuses := map[string]string{
		"a.csv": "done",
		"b.csv": "error",
	}
	got := filterPending(files, statuses)
	want := []string{"b.csv", "c.csv"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("filterPending = %v, want %v", got, want)
	}
}

func TestEnqueuePostsEachFile(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/ingest" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		mu.Lock()
		seen[r.URL.Query().Get("file")] = true
		mu.Unlock()
	}))
	defer srv.Close()

	enqueue(srv.URL, []string{"a.csv", "b.csv"})
	if !seen["a.csv"] || !seen["b.csv"] {
		t.Fatalf("seen = %v", seen)
	}
}
