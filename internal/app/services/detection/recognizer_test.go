package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const recognizedGrid = "530070000600195000098000060800060003400803001700020006060000280000419005000080079"

func TestHTTPRecognizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"grid": %q}`, recognizedGrid)
	}))
	defer server.Close()

	rec, err := NewHTTPRecognizer(server.Client(), server.URL, "key", nil)
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}

	grid, err := rec.Recognize(context.Background(), "aGVsbG8=")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if grid != recognizedGrid {
		t.Fatalf("unexpected grid: %s", grid)
	}
}

func TestHTTPRecognizer_ErrorPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Image string `json:"image"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Image {
		case "unreadable":
			fmt.Fprint(w, `{"error": "no grid found"}`)
		case "truncated":
			fmt.Fprint(w, `{"grid": "123"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	rec, err := NewHTTPRecognizer(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new recognizer: %v", err)
	}

	if _, err := rec.Recognize(context.Background(), "unreadable"); err == nil || !strings.Contains(err.Error(), "no grid found") {
		t.Fatalf("expected recognizer error, got %v", err)
	}
	if _, err := rec.Recognize(context.Background(), "truncated"); err == nil || !strings.Contains(err.Error(), "bad grid") {
		t.Fatalf("expected grid validation error, got %v", err)
	}
	if _, err := rec.Recognize(context.Background(), "boom"); err == nil {
		t.Fatal("expected status error")
	}

	if _, err := NewHTTPRecognizer(nil, "  ", "", nil); err == nil {
		t.Fatal("expected empty endpoint rejection")
	}
}
