package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"docflow/internal/chromemdb"
	"docflow/internal/embedding"
	"docflow/internal/generate"
	"docflow/internal/models"
	"docflow/internal/parser"
	"docflow/internal/session"
	"docflow/internal/testutil"
	"docflow/internal/vectorindex"
)

type recordingIndex struct {
	chunks []models.Chunk
	calls  int
	err    error
}

func (r *recordingIndex) AddDocuments(ctx context.Context, chunks []models.Chunk) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.chunks = append(r.chunks, chunks...)
	return nil
}

type stubFetcher struct {
	page *parser.WebPage
	err  error
}

func (s stubFetcher) Fetch(ctx context.Context, rawURL string) (*parser.WebPage, error) {
	return s.page, s.err
}

func newPipeline(t *testing.T, ix Indexer, namer *generate.Namer) *Pipeline {
	t.Helper()
	p := New(ix, nil, namer, nil, Options{UploadDir: t.TempDir(), ChunkSize: 100, ChunkOverlap: 20})
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestIngestPastedText(t *testing.T) {
	ctx := context.Background()
	namer, err := generate.NewNamer(testutil.NewLLM("Lighthouses\nand their keepers"))
	if err != nil {
		t.Fatal(err)
	}
	ix := &recordingIndex{}
	p := newPipeline(t, ix, namer)
	sess := session.New("s1")

	text := strings.Repeat("The keeper trimmed the wick every night. ", 10)
	rec, err := p.Ingest(ctx, sess, Source{Kind: parser.KindPasted, Text: text})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.Name != "Lighthouses" || rec.Type != parser.MIMEText || rec.Chunks != len(ix.chunks) || rec.Chunks < 2 {
		t.Fatalf("unexpected record %+v (indexed %d)", rec, len(ix.chunks))
	}
	for _, c := range ix.chunks {
		if c.SourceName != "Lighthouses" || c.UploadedAt.IsZero() {
			t.Fatalf("chunk metadata missing: %+v", c)
		}
	}

	raw, err := RawText(sess)
	if err != nil || len(raw) != 1 || !strings.HasPrefix(raw[0], "Source: Lighthouses\n") {
		t.Fatalf("raw_text = %q, %v", raw, err)
	}
	m, err := Manifest(sess)
	if err != nil || m.Count != 1 || m.Files[0].Name != "Lighthouses" {
		t.Fatalf("manifest = %+v, %v", m, err)
	}
	var uploaded bool
	if ok, err := sess.Get(models.SessionIsUploaded, &uploaded); !ok || err != nil || !uploaded {
		t.Fatal("is_uploaded not set")
	}
}

func TestIngestPastedFallbackName(t *testing.T) {
	ix := &recordingIndex{}
	rec, err := newPipeline(t, ix, nil).Ingest(context.Background(), session.New("s1"), Source{Kind: parser.KindPasted, Text: "short note"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "Pasted text" || rec.Chunks != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestIngestUploadLimit(t *testing.T) {
	ctx := context.Background()
	ix := &recordingIndex{}
	p := newPipeline(t, ix, nil)
	sess := session.New("s1")
	for i := 0; i < models.DefaultMaxUploads; i++ {
		if _, err := p.Ingest(ctx, sess, Source{Kind: parser.KindPasted, Text: fmt.Sprintf("note %d", i)}); err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
	}
	before, _ := RawText(sess)
	calls := ix.calls

	_, err := p.Ingest(ctx, sess, Source{Kind: parser.KindPasted, Text: "one too many"})
	if !errors.Is(err, models.ErrUploadLimit) || !models.IsValidation(err) {
		t.Fatalf("expected upload limit error, got %v", err)
	}
	after, _ := RawText(sess)
	if len(after) != len(before) || ix.calls != calls {
		t.Fatal("rejected upload must not touch raw_text or the index")
	}
	if m, _ := Manifest(sess); m.Count != models.DefaultMaxUploads {
		t.Fatalf("manifest count = %d", m.Count)
	}
}

func TestIngestFile(t *testing.T) {
	ix := &recordingIndex{}
	p := newPipeline(t, ix, nil)
	sess := session.New("s1")

	rec, err := p.Ingest(context.Background(), sess, Source{
		Kind:     parser.KindCode,
		Filename: "../scripts/my tool.py",
		Reader:   strings.NewReader("def main():\n    print('hi')\n"),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.Name != "my_tool.py" || rec.Type != "text/x-python" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if entries, _ := os.ReadDir(p.opts.UploadDir); len(entries) != 0 {
		t.Fatalf("upload should be removed once loaded, found %d entries", len(entries))
	}
	if len(ix.chunks) != 1 || !strings.Contains(ix.chunks[0].Content, "print('hi')") {
		t.Fatalf("unexpected chunks %+v", ix.chunks)
	}
}

func TestIngestNonASCIIFilename(t *testing.T) {
	p := newPipeline(t, &recordingIndex{}, nil)
	rec, err := p.Ingest(context.Background(), session.New("s1"), Source{
		Kind:     parser.KindText,
		Filename: "日本語.txt",
		Reader:   strings.NewReader("Cherry blossoms open in spring."),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.Name != "upload.txt" || rec.Type != parser.MIMEText {
		t.Fatalf("unexpected record %+v", rec)
	}
}

type lockedIndex struct {
	mu sync.Mutex
	n  int
}

func (l *lockedIndex) AddDocuments(ctx context.Context, chunks []models.Chunk) error {
	l.mu.Lock()
	l.n += len(chunks)
	l.mu.Unlock()
	return nil
}

func TestIngestSameFilenameAcrossSessions(t *testing.T) {
	p := New(&lockedIndex{}, nil, nil, nil, Options{UploadDir: t.TempDir(), ChunkSize: 4000, ChunkOverlap: 0})
	bodies := map[string]string{
		"alice": strings.Repeat("alice secret diary entry. ", 20000),
		"bob":   strings.Repeat("bob grocery list entry. ", 20000),
	}
	for round := 0; round < 10; round++ {
		var wg sync.WaitGroup
		sessions := map[string]*session.Session{}
		errs := make(chan error, len(bodies))
		for owner, body := range bodies {
			sess := session.New(owner)
			sessions[owner] = sess
			wg.Add(1)
			go func(sess *session.Session, body string) {
				defer wg.Done()
				_, err := p.Ingest(context.Background(), sess, Source{
					Kind:     parser.KindText,
					Filename: "notes.txt",
					Reader:   strings.NewReader(body),
				})
				errs <- err
			}(sess, body)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("round %d: %v", round, err)
			}
		}
		for owner, sess := range sessions {
			raw, err := RawText(sess)
			if err != nil || len(raw) != 1 {
				t.Fatalf("round %d %s: raw_text %d, %v", round, owner, len(raw), err)
			}
			for other := range bodies {
				if other != owner && strings.Contains(raw[0], other) {
					t.Fatalf("round %d: %s's session holds %s's upload", round, owner, other)
				}
			}
			if !strings.Contains(raw[0], owner+" ") {
				t.Fatalf("round %d: %s's own upload missing", round, owner)
			}
		}
	}
	if entries, _ := os.ReadDir(p.opts.UploadDir); len(entries) != 0 {
		t.Fatalf("uploads left behind: %d", len(entries))
	}
}

func TestIngestRejectsWrongType(t *testing.T) {
	ix := &recordingIndex{}
	p := newPipeline(t, ix, nil)
	_, err := p.Ingest(context.Background(), session.New("s1"), Source{
		Kind:     parser.KindPDF,
		Filename: "notes.txt",
		Reader:   strings.NewReader("hello"),
	})
	if !errors.Is(err, models.ErrUnsupportedSource) {
		t.Fatalf("expected unsupported source, got %v", err)
	}
	entries, _ := os.ReadDir(p.opts.UploadDir)
	if len(entries) != 0 || ix.calls != 0 {
		t.Fatal("rejected file must not be saved or indexed")
	}
}

func TestIngestEmptyContent(t *testing.T) {
	ix := &recordingIndex{}
	p := newPipeline(t, ix, nil)
	for _, src := range []Source{
		{Kind: parser.KindPasted, Text: "   "},
		{Kind: parser.KindText, Filename: "empty.txt", Reader: strings.NewReader("\n\n")},
	} {
		if _, err := p.Ingest(context.Background(), session.New("s1"), src); !errors.Is(err, models.ErrEmptyCorpus) {
			t.Fatalf("%s: expected empty corpus error, got %v", src.Kind, err)
		}
	}
	if ix.calls != 0 {
		t.Fatal("index should not be called")
	}
}

func TestIngestIndexFailureLeavesSession(t *testing.T) {
	ix := &recordingIndex{err: models.VectorStoreError("add documents", errors.New("disk full"))}
	sess := session.New("s1")
	_, err := newPipeline(t, ix, nil).Ingest(context.Background(), sess, Source{Kind: parser.KindPasted, Text: "hello"})
	if !errors.Is(err, models.ErrVectorStore) {
		t.Fatalf("expected vector store error, got %v", err)
	}
	if sess.Has(models.SessionRawText) || sess.Has(models.SessionUploadMeta) || sess.Has(models.SessionIsUploaded) {
		t.Fatal("session mutated after index failure")
	}
}

func TestIngestLink(t *testing.T) {
	ix := &recordingIndex{}
	p := newPipeline(t, ix, nil)
	p.fetcher = stubFetcher{page: &parser.WebPage{URL: "https://example.com/a", Title: "Tides", Text: "Tides follow the moon."}}
	rec, err := p.Ingest(context.Background(), session.New("s1"), Source{Kind: parser.KindLink, URL: "example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "Tides" || rec.Type != parser.MIMEHTML {
		t.Fatalf("unexpected record %+v", rec)
	}

	p.fetcher = stubFetcher{err: models.ValidationError("fetch", models.ErrUnsupportedSource)}
	if _, err := p.Ingest(context.Background(), session.New("s2"), Source{Kind: parser.KindLink, URL: "x"}); !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	p.fetcher = stubFetcher{err: errors.New("connection refused")}
	if _, err := p.Ingest(context.Background(), session.New("s3"), Source{Kind: parser.KindLink, URL: "x"}); err == nil || models.IsValidation(err) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestIngestIntoVectorIndex(t *testing.T) {
	ctx := context.Background()
	backend, err := chromemdb.NewVectorDBManager(chromemdb.Options{CollectionName: "ingest"}, embedding.ChromemFunc(testutil.NewEmbedder()))
	if err != nil {
		t.Fatal(err)
	}
	ix := vectorindex.New(backend)
	if err := ix.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	p := newPipeline(t, ix, nil)
	if _, err := p.Ingest(ctx, session.New("s1"), Source{Kind: parser.KindPasted, Text: "The Eiffel Tower is in Paris."}); err != nil {
		t.Fatal(err)
	}
	res, err := ix.Query(ctx, "Eiffel Tower Paris", 1)
	if err != nil || len(res.Matches) != 1 {
		t.Fatalf("query: %+v, %v", res, err)
	}
	if got := res.Matches[0].Chunk; got.SourceName != "Pasted text" || got.SourceType != parser.MIMEText {
		t.Fatalf("metadata lost: %+v", got)
	}
}

func TestSplit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "Sentence number %d is here. ", i)
	}
	chunks, err := Split(sb.String(), "", 100, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	joined := strings.Join(chunks, " ")
	for i := 0; i < 20; i++ {
		if !strings.Contains(joined, fmt.Sprintf("number %d ", i)) {
			t.Fatalf("sentence %d lost", i)
		}
	}

	md, err := Split("# Title\n\nIntro text.\n\n## Part\n\nBody text.", "markdown", 1024, 0)
	if err != nil || len(md) == 0 {
		t.Fatalf("markdown split: %v, %v", md, err)
	}
	if Separators("go")[0] != "\nfunc " || Separators("unknown")[0] != "\n\n" {
		t.Fatal("unexpected separators")
	}
}
