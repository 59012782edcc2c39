package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docflow/internal/generate"
	"docflow/internal/helper"
	"docflow/internal/metrics"
	"docflow/internal/models"
	"docflow/internal/parser"
	"docflow/internal/session"
)

const (
	pastedFallback = "Pasted text"
	sourcePrefix   = "Source: "
)

// Indexer stores chunks for retrieval.
type Indexer interface {
	AddDocuments(ctx context.Context, chunks []models.Chunk) error
}

// Fetcher downloads the readable text of a link.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*parser.WebPage, error)
}

// Source is one item of an upload request
type Source struct {
	Kind     string
	Filename string
	Reader   io.Reader
	URL      string
	Text     string
}

type Options struct {
	UploadDir    string
	ChunkSize    int
	ChunkOverlap int
	MaxUploads   int
}

// Pipeline turns sources into indexed chunks and records them in the session
type Pipeline struct {
	index   Indexer
	fetcher Fetcher
	namer   *generate.Namer
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
}

func New(index Indexer, fetcher Fetcher, namer *generate.Namer, m *metrics.Metrics, opts Options) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1024
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 4
	}
	if opts.MaxUploads <= 0 {
		opts.MaxUploads = models.DefaultMaxUploads
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	return &Pipeline{index: index, fetcher: fetcher, namer: namer, metrics: m, opts: opts, now: time.Now}
}

// Manifest returns the upload bookkeeping stored in sess.
func Manifest(sess *session.Session) (models.UploadManifest, error) {
	var m models.UploadManifest
	if _, err := sess.Get(models.SessionUploadMeta, &m); err != nil {
		return m, err
	}
	m.Count = len(m.Files)
	return m, nil
}

// RawText returns the accumulated source texts of sess.
func RawText(sess *session.Session) ([]string, error) {
	var raw []string
	if _, err := sess.Get(models.SessionRawText, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Ingest loads, splits and indexes src on behalf of sess. Nothing is
// written to the index or the session unless every step succeeds.
func (p *Pipeline) Ingest(ctx context.Context, sess *session.Session, src Source) (rec *models.UploadRecord, err error) {
	defer func() { p.metrics.ObserveIngestion(src.Kind, err) }()
	if sess == nil {
		return nil, models.SessionError("ingest", errors.New("session is nil"))
	}

	manifest, err := Manifest(sess)
	if err != nil {
		return nil, err
	}
	if manifest.Full(p.opts.MaxUploads) {
		return nil, models.ValidationError("ingest", models.ErrUploadLimit)
	}
	raw, err := RawText(sess)
	if err != nil {
		return nil, err
	}

	content, err := p.load(ctx, src)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content.text) == "" {
		return nil, models.ValidationError("ingest", fmt.Errorf("%w: %s has no extractable text", models.ErrEmptyCorpus, content.name))
	}

	pieces, err := Split(content.text, content.language, p.opts.ChunkSize, p.opts.ChunkOverlap)
	if err != nil {
		return nil, models.ValidationError("ingest", err)
	}

	uploadedAt := p.now().UTC()
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, models.Chunk{
			Content:    piece,
			SourceName: content.name,
			SourceType: content.mime,
			UploadedAt: uploadedAt,
		})
	}
	if err := p.index.AddDocuments(ctx, chunks); err != nil {
		return nil, err
	}

	rec = &models.UploadRecord{
		Name:       content.name,
		Type:       content.mime,
		UploadedAt: uploadedAt,
		Chunks:     len(chunks),
	}
	manifest.Add(*rec)
	raw = append(raw, sourcePrefix+content.name+"\n"+content.text)
	if err := sess.Set(models.SessionRawText, raw); err != nil {
		return nil, err
	}
	if err := sess.Set(models.SessionUploadMeta, manifest); err != nil {
		return nil, err
	}
	if err := sess.Set(models.SessionIsUploaded, true); err != nil {
		return nil, err
	}
	log.Info().Str("session", sess.ID()).Str("name", rec.Name).Str("type", rec.Type).Int("chunks", rec.Chunks).Msg("Ingested source")
	return rec, nil
}

type loaded struct {
	name     string
	mime     string
	language string
	text     string
}

func (p *Pipeline) load(ctx context.Context, src Source) (*loaded, error) {
	switch src.Kind {
	case parser.KindPasted:
		text := strings.TrimSpace(src.Text)
		if text == "" {
			return nil, models.ValidationError("ingest", fmt.Errorf("%w: pasted text is empty", models.ErrEmptyCorpus))
		}
		return &loaded{
			name: p.namer.Name(ctx, text, pastedFallback),
			mime: parser.MIMEText,
			text: text,
		}, nil
	case parser.KindLink:
		if p.fetcher == nil {
			return nil, models.ValidationError("ingest", fmt.Errorf("%w: links are disabled", models.ErrUnsupportedSource))
		}
		page, err := p.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			if models.IsValidation(err) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to fetch link: %w", err)
		}
		fallback := page.Title
		if fallback == "" {
			fallback = page.URL
		}
		return &loaded{
			name: p.namer.Name(ctx, page.Text, fallback),
			mime: parser.MIMEHTML,
			text: page.Text,
		}, nil
	default:
		return p.loadFile(src)
	}
}

func (p *Pipeline) loadFile(src Source) (*loaded, error) {
	if src.Reader == nil {
		return nil, models.ValidationError("ingest", fmt.Errorf("%w: no file provided", models.ErrUnsupportedSource))
	}
	ext, err := parser.ValidateFileType(src.Filename, src.Kind)
	if err != nil {
		return nil, err
	}
	name := helper.SanitizeFilename(src.Filename)
	path, err := p.save(name, src.Reader)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove upload")
		}
	}()
	doc, err := parser.Load(path)
	if err != nil {
		return nil, models.ValidationError("ingest", fmt.Errorf("%w: %v", models.ErrUnsupportedSource, err))
	}
	return &loaded{
		name:     name,
		mime:     parser.MIMEFor(ext),
		language: doc.Language,
		text:     doc.Text,
	}, nil
}

// save writes r to a file of its own under UploadDir, keeping name as the
// suffix so the loader still sees the extension.
func (p *Pipeline) save(name string, r io.Reader) (string, error) {
	if err := helper.CreateFolder(p.opts.UploadDir); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(p.opts.UploadDir, "*-"+name)
	if err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	log.Debug().Str("path", f.Name()).Msg("Saved upload")
	return f.Name(), nil
}
