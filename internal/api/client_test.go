package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quill/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", nil)
}

func TestGenerateSendsStreamRequest(t *testing.T) {
	var got models.GenerationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"content\": \"hi\"}\n\ndata: [DONE]\n\n")
	})

	body, err := c.Generate(context.Background(), models.GenerationRequest{Prompt: "a knight", Genre: "Fantasy"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if !strings.HasSuffix(string(data), "data: [DONE]\n\n") {
		t.Errorf("body = %q", data)
	}
	if !got.Stream || got.Prompt != "a knight" || got.Genre != "Fantasy" {
		t.Errorf("server saw %+v, want stream=true", got)
	}
}

func TestStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stories/missing":
			http.Error(w, `{"detail":"Story not found"}`, http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})

	err := c.DeleteStory(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrRequestFailed) {
		t.Errorf("DeleteStory err = %v, want not-found request failure", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Method != http.MethodDelete {
		t.Errorf("StatusError = %+v", se)
	}

	_, err = c.ListStories(context.Background())
	if !errors.Is(err, ErrRequestFailed) || errors.Is(err, ErrNotFound) {
		t.Errorf("ListStories err = %v, want plain request failure", err)
	}

	if _, err := c.Generate(context.Background(), models.GenerationRequest{Prompt: "x"}); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Generate err = %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, nil)
	if _, err := c.ListStories(context.Background()); err == nil {
		t.Error("expected error against closed server")
	}
}

func TestListAndSearchPaths(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		io.WriteString(w, `[{"id":"1","genre":"Fantasy","favorite":true,"created_at":"2024-01-01T00:00:00Z"}]`)
	})
	ctx := context.Background()

	if items, err := c.List(ctx, models.ScopeAll); err != nil || len(items) != 1 {
		t.Fatalf("List(all) = %v, %v", items, err)
	}
	if _, err := c.List(ctx, models.ScopeFavorites); err != nil {
		t.Fatalf("List(favorites) failed: %v", err)
	}
	if _, err := c.Search(ctx, "red dragon&co"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if _, err := c.GetStory(ctx, "1"); err == nil {
		t.Error("GetStory should fail to decode an array into an item")
	}

	want := []string{"/stories", "/favorites", "/search?q=red+dragon%26co", "/stories/1"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestStatsAndOptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stats":
			io.WriteString(w, `{"total_stories":2,"total_words":50,"average_words":25,"favorites":1,"genres":{"Fantasy":2},"tones":{"Epic":1,"Funny":1}}`)
		case "/config":
			io.WriteString(w, `{"genres":["Fantasy"],"tones":["Serious"],"languages":["English"],"examples":["x"],
				"lengths":{"long":{"min":600,"max":1000,"label":"Long"},"short":{"min":100,"max":300,"label":"Short"},"medium":{"min":300,"max":600,"label":"Medium"}}}`)
		}
	})
	ctx := context.Background()

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalStories != 2 || st.AverageWords != 25 || st.Tones["Epic"] != 1 {
		t.Errorf("Stats = %+v", st)
	}

	opts, err := c.Options(ctx)
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	keys := opts.LengthKeys()
	if strings.Join(keys, ",") != "short,medium,long" {
		t.Errorf("length order = %v", keys)
	}
}

func TestOptionsOrdersUnknownLengthsByKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"genres":["Fantasy"],"tones":["Serious"],"languages":["English"],
			"lengths":{"zeta":{"label":"Z"},"medium":{"label":"Medium"},"epic":{"label":"E"},"alpha":{"label":"A"},"short":{"label":"Short"}}}`)
	})
	for i := 0; i < 20; i++ {
		opts, err := c.Options(context.Background())
		if err != nil {
			t.Fatalf("Options failed: %v", err)
		}
		if got := strings.Join(opts.LengthKeys(), ","); got != "short,medium,alpha,epic,zeta" {
			t.Fatalf("length order = %s", got)
		}
	}
}
