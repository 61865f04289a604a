package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"compactmcp/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},        // orthogonal
		{1, 0},        // identical
		{0.9, 0.1},    // close
		{1, 0, 0},     // wrong dimension, skipped
		{-1, 0},       // opposite
	}

	results := FindTopK(query, corpus, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 {
		t.Errorf("best match index = %d, want 1", results[0].Index)
	}
	if results[1].Index != 2 {
		t.Errorf("second match index = %d, want 2", results[1].Index)
	}
}

func TestOllamaEngineEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "embeddinggemma" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	engine, err := NewOllamaEngine(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}

	vec, err := engine.Embed(context.Background(), "export circuit f(): [] {}")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("unexpected embedding: %v", vec)
	}
}

func TestOllamaEngineServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine, _ := NewOllamaEngine(srv.URL, "")
	if _, err := engine.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error from 500 response")
	}
}

func TestOllamaHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models": []}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	engine, _ := NewOllamaEngine(srv.URL, "")
	if err := engine.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check failed: %v", err)
	}
}

func TestNewEngineUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig().Embedding
	cfg.Provider = "mystery"
	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewEngineGenAIRequiresKey(t *testing.T) {
	cfg := config.DefaultConfig().Embedding
	cfg.Provider = "genai"
	cfg.GenAIAPIKey = ""
	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected error for missing API key")
	}
}
