package service

import (
	"reflect"
	"testing"
	"time"

	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
)

var base = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func post(id string, offset time.Duration) domain.Post {
	return domain.Post{ID: id, Title: "post " + id, Timestamp: base.Add(offset)}
}

func ids(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestRank_SortsDescending(t *testing.T) {
	in := []domain.Post{post("1", 0), post("3", 2*time.Hour), post("2", time.Hour)}

	got := ids(Rank(in, 10))
	want := []string{"3", "2", "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if in[0].ID != "1" {
		t.Error("input slice was reordered")
	}
}

func TestRank_StableTies(t *testing.T) {
	in := []domain.Post{post("a", 0), post("b", 0), post("c", time.Hour), post("d", 0)}

	got := ids(Rank(in, 10))
	want := []string{"c", "a", "b", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestRank_DuplicateKeepsLatest(t *testing.T) {
	older := post("7", 0)
	older.Title = "old"
	newer := post("7", time.Hour)
	newer.Title = "new"

	got := Rank([]domain.Post{older, post("8", 30*time.Minute), newer}, 10)

	if len(got) != 2 {
		t.Fatalf("got %d posts, want 2", len(got))
	}
	if got[0].ID != "7" || got[0].Title != "new" {
		t.Errorf("first = %+v, want newer duplicate", got[0])
	}
	if got[1].ID != "8" {
		t.Errorf("second = %q, want 8", got[1].ID)
	}
}

func TestRank_Caps(t *testing.T) {
	var in []domain.Post
	for i := 0; i < 25; i++ {
		in = append(in, post(string(rune('a'+i)), time.Duration(i)*time.Minute))
	}

	got := Rank(in, domain.DefaultMaxPosts)
	if len(got) != 10 {
		t.Fatalf("got %d posts, want 10", len(got))
	}
	if got[0].ID != "y" {
		t.Errorf("first = %q, want most recent y", got[0].ID)
	}
}

func TestRank_Idempotent(t *testing.T) {
	in := []domain.Post{
		post("1", 0), post("2", time.Hour), post("2", 2*time.Hour),
		post("3", time.Hour), post("4", -time.Hour), post("5", 3*time.Hour),
	}

	once := Rank(in, 4)
	twice := Rank(once, 4)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("rank not idempotent: %v then %v", ids(once), ids(twice))
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank(nil, 10); len(got) != 0 {
		t.Errorf("got %d posts, want 0", len(got))
	}
	if got := Rank([]domain.Post{post("1", 0)}, 0); len(got) != 0 {
		t.Errorf("max 0 returned %d posts", len(got))
	}
}
