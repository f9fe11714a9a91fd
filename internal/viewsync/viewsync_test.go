package viewsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"quill/internal/api"
	"quill/internal/backend"
	"quill/internal/collection"
	"quill/internal/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setup(t *testing.T) (*Sync, *collection.Store, *backend.Memory) {
	t.Helper()
	sync, store, mem, _ := setupWithListFault(t)
	return sync, store, mem
}

// setupWithListFault is setup plus a switch that makes list requests fail
// while mutations keep working.
func setupWithListFault(t *testing.T) (*Sync, *collection.Store, *backend.Memory, *atomic.Bool) {
	t.Helper()
	var failLists atomic.Bool
	mem := backend.NewMemory()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	mem.Seed(
		models.Item{ID: "a", Genre: "Fantasy", Content: "alpha", CreatedAt: models.Timestamp{Time: base}},
		models.Item{ID: "b", Genre: "Horror", Content: "beta", Favorite: true, CreatedAt: models.Timestamp{Time: base.Add(time.Minute)}},
	)
	router := backend.NewServer(mem, backend.ScriptedGenerator{}).Router()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failLists.Load() && r.Method == http.MethodGet && (r.URL.Path == "/stories" || r.URL.Path == "/favorites") {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	store := collection.New(api.NewClient(srv.URL, srv.Client()))
	if _, err := store.Load(context.Background(), models.ScopeAll); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return New(store), store, mem, &failLists
}

func ptr(it models.Item) *models.Item { return &it }

func TestToggleFromDetailUpdatesBothSlots(t *testing.T) {
	for _, surface := range []Surface{SurfaceDetail, SurfaceModal, SurfaceCard} {
		t.Run(surface.String(), func(t *testing.T) {
			sync, _, mem := setup(t)
			a, _ := mem.Get("a")
			sel := Selection{Current: ptr(a), Modal: ptr(a)}

			out, err := sync.ToggleFavorite(context.Background(), sel, surface, a)
			if err != nil {
				t.Fatalf("ToggleFavorite failed: %v", err)
			}
			if !out.Changed {
				t.Error("Changed should be true")
			}
			if !out.Selection.Current.Favorite || !out.Selection.Modal.Favorite {
				t.Errorf("slots not updated: current=%v modal=%v", out.Selection.Current.Favorite, out.Selection.Modal.Favorite)
			}
			if sel.Current.Favorite {
				t.Error("original selection must not be edited in place")
			}
			if it, _ := out.View.Find("a"); !it.Favorite {
				t.Error("refreshed view should show a as favorite")
			}
			if server, _ := mem.Get("a"); !server.Favorite {
				t.Error("server flag not toggled")
			}
		})
	}
}

func TestToggleLeavesOtherSlotsAlone(t *testing.T) {
	sync, _, mem := setup(t)
	a, _ := mem.Get("a")
	b, _ := mem.Get("b")
	sel := Selection{Current: ptr(a), Modal: ptr(b)}

	out, err := sync.ToggleFavorite(context.Background(), sel, SurfaceModal, b)
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if out.Selection.Modal.Favorite {
		t.Error("modal story b should now be unfavorited")
	}
	if out.Selection.Current != sel.Current {
		t.Error("detail slot for a different story should be untouched")
	}
}

func TestCardToggleReconcilesFromView(t *testing.T) {
	sync, _, mem := setup(t)
	a, _ := mem.Get("a")
	stale := a
	stale.Content = "stale copy"
	sel := Selection{Current: ptr(stale)}

	out, err := sync.ToggleFavorite(context.Background(), sel, SurfaceCard, a)
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if out.Selection.Current.Content != "alpha" || !out.Selection.Current.Favorite {
		t.Errorf("detail slot = %+v, want refreshed server copy", *out.Selection.Current)
	}
}

func TestToggleWithoutIDIsNoop(t *testing.T) {
	sync, store, mem := setup(t)
	draft := models.Item{Content: "unsaved"}
	sel := Selection{Current: &draft}

	out, err := sync.ToggleFavorite(context.Background(), sel, SurfaceDetail, draft)
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if out.Changed || out.Selection.Current.Favorite {
		t.Errorf("outcome = %+v, want no change", out)
	}
	if out.View.Len() != store.View().Len() {
		t.Error("view should be the live view")
	}
	if mem.Favorites()[0].ID != "b" || len(mem.Favorites()) != 1 {
		t.Error("server state changed")
	}
}

func TestToggleFailureKeepsSelection(t *testing.T) {
	sync, _, mem := setup(t)
	a, _ := mem.Get("a")
	sel := Selection{Current: ptr(a)}
	if err := mem.Delete("a"); err != nil {
		t.Fatal(err)
	}

	out, err := sync.ToggleFavorite(context.Background(), sel, SurfaceDetail, a)
	if err == nil {
		t.Fatal("toggle of a deleted story should fail")
	}
	if out.Selection.Current != sel.Current || out.Changed {
		t.Error("selection should be unchanged on failure")
	}
}

func TestDeleteLeavesSurfacesOpen(t *testing.T) {
	sync, _, mem := setup(t)
	a, _ := mem.Get("a")
	sel := Selection{Current: ptr(a), Modal: ptr(a)}

	out, err := sync.Delete(context.Background(), sel, "a")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Selection.Current == nil || out.Selection.Modal == nil {
		t.Error("open surfaces should stay open after delete")
	}
	if _, ok := out.View.Find("a"); ok || out.View.Len() != 1 {
		t.Errorf("view still has a: %+v", out.View.Items)
	}
}

func TestOpenFetchesIntoModal(t *testing.T) {
	sync, _, _ := setup(t)
	sel, err := sync.Open(context.Background(), Selection{}, "b")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if sel.Modal == nil || sel.Modal.ID != "b" || sel.Current != nil {
		t.Errorf("selection = %+v", sel)
	}
	if _, err := sync.Open(context.Background(), sel, "zzz"); err == nil {
		t.Error("opening a missing story should fail")
	}
	if CloseModal(sel).Modal != nil {
		t.Error("CloseModal should empty the modal slot")
	}
	if Show(sel, models.Item{ID: "x"}).Current.ID != "x" {
		t.Error("Show should fill the detail slot")
	}
}

func TestToggleTwiceFromOneSnapshotFollowsServer(t *testing.T) {
	for _, surface := range []Surface{SurfaceDetail, SurfaceModal} {
		t.Run(surface.String(), func(t *testing.T) {
			sync, _, mem := setup(t)
			a, _ := mem.Get("a")
			sel := Selection{Current: ptr(a), Modal: ptr(a)}
			ctx := context.Background()

			first, err := sync.ToggleFavorite(ctx, sel, surface, a)
			if err != nil {
				t.Fatalf("first toggle failed: %v", err)
			}
			second, err := sync.ToggleFavorite(ctx, sel, surface, a)
			if err != nil {
				t.Fatalf("second toggle failed: %v", err)
			}
			server, _ := mem.Get("a")
			if server.Favorite {
				t.Fatal("two toggles should leave the server flag off")
			}
			if !first.Selection.Current.Favorite {
				t.Error("first outcome should show the favorite set")
			}
			if second.Selection.Current.Favorite != server.Favorite || second.Selection.Modal.Favorite != server.Favorite {
				t.Errorf("second outcome shows %v/%v, server holds %v",
					second.Selection.Current.Favorite, second.Selection.Modal.Favorite, server.Favorite)
			}
		})
	}
}

func TestUnfavoriteInFavoritesScopeAsksServer(t *testing.T) {
	sync, store, mem := setup(t)
	ctx := context.Background()
	if _, err := store.Load(ctx, models.ScopeFavorites); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b, _ := mem.Get("b")
	sel := Selection{Modal: ptr(b)}

	out, err := sync.ToggleFavorite(ctx, sel, SurfaceModal, b)
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if _, ok := out.View.Find("b"); ok {
		t.Error("b should have left the favorites view")
	}
	if out.Selection.Modal.Favorite {
		t.Error("modal should show b as no longer favorite")
	}
}

func TestToggleAppliedWhenRefreshFails(t *testing.T) {
	sync, store, mem, failLists := setupWithListFault(t)
	a, _ := mem.Get("a")
	sel := Selection{Current: ptr(a), Modal: ptr(a)}
	before := store.View()
	failLists.Store(true)

	out, err := sync.ToggleFavorite(context.Background(), sel, SurfaceDetail, a)
	if !errors.Is(err, collection.ErrRefreshFailed) {
		t.Fatalf("err = %v, want ErrRefreshFailed", err)
	}
	if server, _ := mem.Get("a"); !server.Favorite {
		t.Fatal("server flag should be toggled")
	}
	if !out.Changed || !out.Selection.Current.Favorite || !out.Selection.Modal.Favorite {
		t.Errorf("slots should show the applied toggle: %+v", out)
	}
	if it, _ := store.View().Find("a"); it.Favorite || store.View().Len() != before.Len() {
		t.Error("live view should stay as it was before the failed reload")
	}
}

func TestDeleteAppliedWhenRefreshFails(t *testing.T) {
	sync, _, mem, failLists := setupWithListFault(t)
	failLists.Store(true)

	out, err := sync.Delete(context.Background(), Selection{}, "a")
	if !errors.Is(err, collection.ErrRefreshFailed) {
		t.Fatalf("err = %v, want ErrRefreshFailed", err)
	}
	if !out.Changed {
		t.Error("Changed should be true once the server deleted the story")
	}
	if _, err := mem.Get("a"); err == nil {
		t.Error("server should no longer hold a")
	}
}
