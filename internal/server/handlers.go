package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"docflow/internal/conversation"
	"docflow/internal/generate"
	"docflow/internal/ingest"
	"docflow/internal/models"
	"docflow/internal/parser"
	"docflow/internal/rag"
)

var groupField = regexp.MustCompile(`^file_type_(\d+)$`)

type chatRequest struct {
	Message string `json:"message"`
}

type generateRequest struct {
	Mode string `json:"mode"`
}

type uploadResponse struct {
	Uploaded []models.UploadRecord `json:"uploaded"`
	Count    int                   `json:"count"`
}

// upload ingests every file_type_<n> group of the multipart form in order
// of n. Groups accepted before a failing one stay ingested.
func (s *Server) upload(c echo.Context) error {
	if s.deps.Pipeline == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "ingestion is not configured")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	groups := groupIDs(form)
	if len(groups) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no sources provided")
	}

	ctx := c.Request().Context()
	sess := sessionFrom(c)
	resp := uploadResponse{Uploaded: []models.UploadRecord{}}
	for _, id := range groups {
		src, closeFn, err := sourceFromForm(form, id)
		if err != nil {
			return err
		}
		rec, err := s.deps.Pipeline.Ingest(ctx, sess, src)
		closeFn()
		if err != nil {
			return err
		}
		resp.Uploaded = append(resp.Uploaded, *rec)
	}
	m, err := ingest.Manifest(sess)
	if err != nil {
		return err
	}
	resp.Count = m.Count
	return c.JSON(http.StatusOK, resp)
}

func groupIDs(form *multipart.Form) []int {
	var ids []int
	for key := range form.Value {
		if m := groupField.FindStringSubmatch(key); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				ids = append(ids, n)
			}
		}
	}
	sort.Ints(ids)
	return ids
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func sourceFromForm(form *multipart.Form, id int) (ingest.Source, func(), error) {
	noop := func() {}
	kind := formValue(form, fmt.Sprintf("file_type_%d", id))
	src := ingest.Source{Kind: kind}
	switch kind {
	case parser.KindLink:
		src.URL = formValue(form, fmt.Sprintf("url_%d", id))
		return src, noop, nil
	case parser.KindPasted:
		src.Text = formValue(form, fmt.Sprintf("pasted_%d", id))
		return src, noop, nil
	}

	files := form.File[fmt.Sprintf("file_%d", id)]
	if len(files) == 0 {
		return src, noop, models.ValidationError("upload", fmt.Errorf("%w: no file selected", models.ErrUnsupportedSource))
	}
	f, err := files[0].Open()
	if err != nil {
		return src, noop, fmt.Errorf("failed to open upload: %w", err)
	}
	src.Filename = files[0].Filename
	src.Reader = f
	return src, func() { _ = f.Close() }, nil
}

func (s *Server) uploadMeta(c echo.Context) error {
	m, err := ingest.Manifest(sessionFrom(c))
	if err != nil {
		return err
	}
	if m.Files == nil {
		m.Files = []models.UploadRecord{}
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	qa, err := rag.New(sessionFrom(c), s.deps.QA)
	if err != nil {
		return err
	}
	ans, err := qa.Invoke(c.Request().Context(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) history(c echo.Context) error {
	h, err := conversation.NewChatHistory(sessionFrom(c))
	if err != nil {
		return err
	}
	turns, err := h.History()
	if err != nil {
		return err
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return c.JSON(http.StatusOK, map[string]any{"history": turns})
}

func (s *Server) clearHistory(c echo.Context) error {
	h, err := conversation.NewChatHistory(sessionFrom(c))
	if err != nil {
		return err
	}
	if err := h.Clear(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) generate(c echo.Context) error {
	if s.deps.Generator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "generation is not configured")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	raw, err := ingest.RawText(sessionFrom(c))
	if err != nil {
		return err
	}
	out, err := s.deps.Generator.Invoke(c.Request().Context(), generate.Input{Mode: req.Mode, Text: raw})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"result": out})
}

// reset clears the session. With ?index=true the shared vector index is
// emptied as well, which affects every session.
func (s *Server) reset(c echo.Context) error {
	sess := sessionFrom(c)
	sess.Clear()
	if c.QueryParam("index") == "true" && s.deps.Index != nil {
		if err := s.deps.Index.Reset(c.Request().Context()); err != nil {
			return err
		}
		log.Warn().Str("session", sess.ID()).Msg("Vector index reset")
	}
	return c.NoContent(http.StatusNoContent)
}
