package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"briefboard/internal/activities"
	"briefboard/internal/catalog"
	"briefboard/internal/config"
	"briefboard/internal/dashboard"
	"briefboard/internal/models"
	"briefboard/internal/session"
	"briefboard/internal/submission"
	"briefboard/internal/util"
	"briefboard/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

type Server struct {
	cfg        config.Config
	dashboards *dashboard.Manager
	verifier   *session.Verifier
	catalog    catalog.Catalog
	temporal   tclient.Client
	log        *zap.Logger
}

// Deps are the collaborators of the server. Temporal may be nil, in which
// case every submission runs synchronously.
type Deps struct {
	Dashboards *dashboard.Manager
	Verifier   *session.Verifier
	Catalog    catalog.Catalog
	Temporal   tclient.Client
	Logger     *zap.Logger
}

func NewServer(cfg config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cat := deps.Catalog
	if len(cat.Models) == 0 {
		cat = catalog.Default()
	}
	return &Server{
		cfg:        cfg,
		dashboards: deps.Dashboards,
		verifier:   deps.Verifier,
		catalog:    cat,
		temporal:   deps.Temporal,
		log:        log,
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, sess models.Session)

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/models", s.handleModels)
	mux.HandleFunc("/history", s.authed(s.handleHistory))
	mux.HandleFunc("/history/", s.authed(s.handleHistoryScoped))
	mux.HandleFunc("/submissions", s.authed(s.handleSubmissions))
	mux.HandleFunc("/submissions/", s.authed(s.handleSubmissionScoped))
	mux.HandleFunc("/leaderboards/", s.authed(s.handleLeaderboard))
	mux.HandleFunc("/selection", s.authed(s.handleSelection))
	mux.HandleFunc("/display", s.authed(s.handleDisplay))
	return withCORS(withAccessLog(s.log, mux))
}

func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.verifier.Verify(session.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeErr(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r, s.dashboards.For(sess.Username), sess)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "async": s.temporal != nil})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": s.catalog.Models, "default": s.cfg.DefaultModel})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, sess models.Session) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := s.ensureLoaded(r.Context(), d, sess); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if q := r.URL.Query().Get("q"); strings.TrimSpace(q) != "" {
		writeJSON(w, http.StatusOK, map[string]any{"query": q, "options": d.Search(q)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": d.History(),
		"version": d.Repository().Version(),
	})
}

func (s *Server) handleHistoryScoped(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, sess models.Session) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/history/"), "/")
	switch {
	case rest == "refresh":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if _, err := d.Refresh(r.Context(), sess); err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"history": d.History(),
			"version": d.Repository().Version(),
		})
	case rest == "panel":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req struct {
			Open bool `json:"open"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		d.SetHistoryOpen(req.Open)
		writeJSON(w, http.StatusOK, d.Display())
	case rest != "" && !strings.Contains(rest, "/"):
		if r.Method != http.MethodDelete {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if err := d.Remove(r.Context(), sess, rest); err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"deleted": rest,
			"history": d.History(),
			"display": d.Display(),
		})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, sess models.Session) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	req := submission.Request{
		Model: strings.TrimSpace(r.FormValue("model")),
		Text:  r.FormValue("text"),
	}
	if req.Model != "" && !s.catalog.Has(req.Model) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: unknown model %q", util.ErrValidation, req.Model))
		return
	}
	for _, fh := range r.MultipartForm.File["files"] {
		in, err := readUpload(fh, s.cfg.MaxFileBytes)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		req.Files = append(req.Files, in)
	}

	if r.FormValue("async") == "1" && s.temporal != nil {
		s.startAsync(w, r, d, sess, req)
		return
	}
	res, err := d.Submit(r.Context(), sess, req)
	if err != nil && res.BatchID == "" {
		writeErr(w, statusFor(err), err)
		return
	}
	if errors.Is(err, util.ErrAuth) {
		writeErr(w, http.StatusUnauthorized, err)
		return
	}
	body := map[string]any{
		"batch_id":   res.BatchID,
		"model":      res.Model,
		"records":    res.Records,
		"rejections": res.Rejections,
		"display":    d.Display(),
	}
	if err != nil {
		body["refresh_error"] = toAPIError(statusFor(err), err).Message
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) startAsync(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, sess models.Session, req submission.Request) {
	model, accepted, rejected, err := s.dashboards.Pipeline().Prepare(req)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	batchID := uuid.NewString()
	if err := d.BeginAsync(batchID); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	staged, err := activities.Stage(s.cfg.DataInRoot, batchID, accepted)
	if err != nil {
		s.abandonAsync(d, batchID)
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	wfID := workflows.WorkflowID(batchID)
	_, err = s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowExecutionTimeout:                 time.Duration(s.cfg.SubmissionTimeoutSecs) * time.Second,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.SubmissionWorkflow, workflows.SubmissionInput{
		BatchID:    batchID,
		Username:   sess.Username,
		Token:      sess.Token,
		Model:      model,
		Inputs:     staged,
		Rejections: rejected,
	})
	if err != nil {
		s.abandonAsync(d, batchID)
		writeErr(w, http.StatusBadGateway, fmt.Errorf("start submission workflow: %w", err))
		return
	}
	s.log.Info("async submission started",
		zap.String("user", sess.Username),
		zap.String("batch_id", batchID),
		zap.Int("inputs", len(staged)),
		zap.Int("rejected", len(rejected)),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id":    batchID,
		"workflow_id": wfID,
		"model":       model,
		"total":       len(staged),
		"rejections":  rejected,
	})
}

func (s *Server) abandonAsync(d *dashboard.Dashboard, batchID string) {
	d.AbandonAsync(batchID)
	if err := activities.Unstage(s.cfg.DataInRoot, batchID); err != nil {
		s.log.Warn("remove staged batch", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func (s *Server) handleSubmissionScoped(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, sess models.Session) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	batchID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/submissions/"), "/")
	if batchID == "" || strings.Contains(batchID, "/") || s.temporal == nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	val, err := s.temporal.QueryWorkflow(r.Context(), workflows.WorkflowID(batchID), "", workflows.QueryGetBatchProgress)
	if err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("batch %s: %w", batchID, util.ErrNotFound))
		return
	}
	var progress workflows.BatchProgress
	if err := val.Get(&progress); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if progress.Username != sess.Username {
		writeErr(w, http.StatusNotFound, fmt.Errorf("batch %s: %w", batchID, util.ErrNotFound))
		return
	}
	applied := false
	if progress.Completed() {
		applied, err = d.CompleteAsync(r.Context(), sess, batchID, progress.Results)
		if err != nil && !applied {
			writeErr(w, statusFor(err), err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"progress": progress,
		"applied":  applied,
		"display":  d.Display(),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, sess models.Session) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := s.ensureLoaded(r.Context(), d, sess); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	key := r.URL.Query().Get("sort")
	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/leaderboards/"), "/") {
	case "quality":
		board, err := d.QualityLeaderboard(key)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sort": sortKey(key), "criteria": models.QualityCriteria, "leaderboard": board})
	case "ethics":
		board, err := d.EthicsLeaderboard(key)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sort": sortKey(key), "keys": models.EthicsKeys, "leaderboard": board})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, _ models.Session) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if err := d.Select(strings.TrimSpace(req.ID)); err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, d.Display())
	case http.MethodDelete:
		d.ClearSelection()
		writeJSON(w, http.StatusOK, d.Display())
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard, _ models.Session) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, d.Display())
}

// ensureLoaded fetches the history the first time a user's dashboard is
// read. A refresh already in flight is not an error.
func (s *Server) ensureLoaded(ctx context.Context, d *dashboard.Dashboard, sess models.Session) error {
	if d.Repository().Version() > 0 {
		return nil
	}
	if _, err := d.Refresh(ctx, sess); err != nil && !errors.Is(err, util.ErrBusy) {
		return err
	}
	return nil
}

func readUpload(fh *multipart.FileHeader, maxBytes int64) (submission.Input, error) {
	src, err := fh.Open()
	if err != nil {
		return submission.Input{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	if maxBytes <= 0 {
		maxBytes = submission.DefaultMaxBytes
	}
	// One byte past the limit is enough for validation to reject it.
	content, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return submission.Input{}, fmt.Errorf("read upload: %w", err)
	}
	return submission.Input{Filename: fh.Filename, Content: content}, nil
}

func sortKey(key string) string {
	if strings.TrimSpace(key) == "" {
		return "overall"
	}
	return strings.ToLower(strings.TrimSpace(key))
}
