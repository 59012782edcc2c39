package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"docflow/internal/models"
)

func TestSessionGetSet(t *testing.T) {
	s := New("abc")
	var turns []models.Turn
	ok, err := s.Get(models.SessionChatHistory, &turns)
	if ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.Set(models.SessionChatHistory, []models.Turn{{Role: models.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err = s.Get(models.SessionChatHistory, &turns)
	if !ok || err != nil || len(turns) != 1 || turns[0].Content != "hi" {
		t.Fatalf("Get: ok=%v err=%v turns=%v", ok, err, turns)
	}

	var n int
	if _, err := s.Get(models.SessionChatHistory, &n); !errors.Is(err, models.ErrSession) {
		t.Fatalf("expected session error for malformed value, got %v", err)
	}

	s.Delete(models.SessionChatHistory)
	if s.Has(models.SessionChatHistory) {
		t.Fatal("key should be deleted")
	}
	_ = s.Set("a", 1)
	_ = s.Set("b", 2)
	s.Clear()
	if s.Has("a") || s.Has("b") {
		t.Fatal("Clear should drop every key")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(0)
	s, err := st.Load(ctx, "id1")
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Set(models.SessionIsUploaded, true)
	if err := st.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	// mutations after save are not visible until saved again
	_ = s.Set(models.SessionIsUploaded, false)

	got, err := st.Load(ctx, "id1")
	if err != nil {
		t.Fatal(err)
	}
	var up bool
	if ok, _ := got.Get(models.SessionIsUploaded, &up); !ok || !up {
		t.Fatalf("expected stored value true, got %v", up)
	}

	if err := st.Delete(ctx, "id1"); err != nil {
		t.Fatal(err)
	}
	got, _ = st.Load(ctx, "id1")
	if got.Has(models.SessionIsUploaded) {
		t.Fatal("deleted session should load empty")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(time.Minute)
	now := time.Now()
	st.now = func() time.Time { return now }

	s := New("x")
	_ = s.Set("k", "v")
	_ = st.Save(ctx, s)

	now = now.Add(2 * time.Minute)
	got, _ := st.Load(ctx, "x")
	if got.Has("k") {
		t.Fatal("expired session should load empty")
	}
}

func TestMemoryStoreSweepsExpired(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(time.Minute)
	now := time.Now()
	st.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		s := New(id)
		_ = s.Set("k", id)
		_ = st.Save(ctx, s)
	}
	if st.Len() != 3 {
		t.Fatalf("expected 3 sessions, got %d", st.Len())
	}

	// nobody loads a, b or c again; the next save after the ttl drops them
	now = now.Add(2 * time.Minute)
	_ = st.Save(ctx, New("d"))
	if st.Len() != 1 {
		t.Fatalf("expired sessions should be swept, %d left", st.Len())
	}
	if got, _ := st.Load(ctx, "d"); got.IsNew() {
		t.Fatal("live session was swept")
	}
}

func TestSessionModified(t *testing.T) {
	ctx := context.Background()
	s := New("m")
	if s.Modified() || !s.IsNew() {
		t.Fatalf("fresh session: modified=%v new=%v", s.Modified(), s.IsNew())
	}
	var v string
	_, _ = s.Get("k", &v)
	_ = s.Has("k")
	if s.Modified() {
		t.Fatal("reads should not mark the session modified")
	}
	_ = s.Set("k", "v")
	if !s.Modified() {
		t.Fatal("Set should mark the session modified")
	}

	st := NewMemoryStore(0)
	_ = st.Save(ctx, s)
	got, err := st.Load(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}
	if got.Modified() || got.IsNew() {
		t.Fatalf("loaded session: modified=%v new=%v", got.Modified(), got.IsNew())
	}
	got.Clear()
	if !got.Modified() {
		t.Fatal("Clear should mark the session modified")
	}
	unknown, _ := st.Load(ctx, "nobody")
	if !unknown.IsNew() {
		t.Fatal("unknown id should load a new session")
	}
}

func TestLockerSerialises(t *testing.T) {
	l := NewLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("same")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
	if l.size() != 0 {
		t.Fatalf("locks should be released, %d left", l.size())
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	st := NewRedisStore(client, time.Minute)
	if _, err := st.Load(context.Background(), "id"); !errors.Is(err, models.ErrSession) {
		t.Fatalf("expected session error, got %v", err)
	}
	if err := st.Save(context.Background(), New("id")); !errors.Is(err, models.ErrSession) {
		t.Fatalf("expected session error, got %v", err)
	}
	if Key("id") != "docflow:session:id" {
		t.Fatalf("unexpected key %q", Key("id"))
	}
}
