package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"briefboard/internal/activities"
	"briefboard/internal/app"
	"briefboard/internal/cache"
	"briefboard/internal/catalog"
	"briefboard/internal/config"
	"briefboard/internal/models"
	"briefboard/internal/ranking"
	"briefboard/internal/repository"
	"briefboard/internal/selection"
	"briefboard/internal/session"
	"briefboard/internal/submission"
	"briefboard/internal/workflows"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type env struct {
	cfg   config.Config
	log   *zap.Logger
	sess  models.Session
	cache string
}

func withEnv(cfg config.Config, fn func(*cli.Context, env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		log := zap.NewNop()
		if cfg.Dev {
			log = app.NewLogger(true)
		}
		defer log.Sync()
		return fn(c, env{
			cfg:   cfg,
			log:   log,
			sess:  models.Session{Username: c.String("user"), Token: c.String("token")},
			cache: c.String("cache"),
		})
	}
}

func (e env) requireSession() error {
	if strings.TrimSpace(e.sess.Username) == "" {
		return errors.New("--user or BRIEFBOARD_USER is required")
	}
	return nil
}

// repository builds a repository that mirrors every refresh into the
// offline cache.
func (e env) repository(snapshots *cache.SnapshotCache) *repository.Repository {
	return repository.New(app.NewService(e.cfg), repository.WithMirror(snapshots), repository.WithLogger(e.log))
}

func (e env) records(ctx context.Context, offline bool) ([]models.SummaryRecord, error) {
	snapshots, err := cache.Open(e.cache)
	if err != nil {
		return nil, err
	}
	defer snapshots.Close()
	if offline {
		records, at, err := snapshots.Load(ctx, e.sess.Username)
		if err != nil {
			return nil, err
		}
		e.log.Debug("offline snapshot", zap.Time("refreshed_at", at))
		return records, nil
	}
	return e.repository(snapshots).Refresh(ctx, e.sess)
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func readInputs(paths []string) ([]submission.Input, error) {
	out := make([]submission.Input, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, submission.Input{Filename: filepath.Base(p), Content: content})
	}
	return out, nil
}

func submitAction(c *cli.Context, e env) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	files, err := readInputs(c.Args().Slice())
	if err != nil {
		return err
	}
	req := submission.Request{Model: c.String("model"), Text: c.String("text"), Files: files}
	svc := app.NewService(e.cfg)
	pipeline := app.NewPipeline(e.cfg, svc, nil, e.log)

	if c.Bool("async") {
		return submitAsync(c.Context, e, pipeline, req)
	}

	snapshots, err := cache.Open(e.cache)
	if err != nil {
		return err
	}
	defer snapshots.Close()
	repo := repository.New(svc, repository.WithMirror(snapshots), repository.WithLogger(e.log))
	resolver := selection.NewResolver()
	res, err := pipeline.Run(c.Context, e.sess, req, resolver, repo)
	if res.BatchID == "" && err != nil {
		return err
	}
	if perr := printYAML(res); perr != nil {
		return perr
	}
	return err
}

func submitAsync(ctx context.Context, e env, pipeline *submission.Pipeline, req submission.Request) error {
	model, accepted, rejected, err := pipeline.Prepare(req)
	if err != nil {
		return err
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: e.cfg.TemporalAddress})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer tc.Close()

	batchID := uuid.NewString()
	staged, err := activities.Stage(e.cfg.DataInRoot, batchID, accepted)
	if err != nil {
		return err
	}
	run, err := tc.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                       workflows.WorkflowID(batchID),
		TaskQueue:                e.cfg.TemporalTaskQueue,
		WorkflowExecutionTimeout: time.Duration(e.cfg.SubmissionTimeoutSecs) * time.Second,
	}, workflows.SubmissionWorkflow, workflows.SubmissionInput{
		BatchID:    batchID,
		Username:   e.sess.Username,
		Token:      e.sess.Token,
		Model:      model,
		Inputs:     staged,
		Rejections: rejected,
	})
	if err != nil {
		return fmt.Errorf("start submission workflow: %w", err)
	}

	poll := time.Duration(e.cfg.ProgressPollMillis) * time.Millisecond
	if poll <= 0 {
		poll = 1500 * time.Millisecond
	}
	done := make(chan error, 1)
	var final workflows.BatchProgress
	go func() { done <- run.Get(ctx, &final) }()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("submission workflow: %w", err)
			}
			return printYAML(final)
		case <-ticker.C:
			val, err := tc.QueryWorkflow(ctx, run.GetID(), run.GetRunID(), workflows.QueryGetBatchProgress)
			if err != nil {
				continue
			}
			var p workflows.BatchProgress
			if err := val.Get(&p); err == nil {
				fmt.Fprintf(os.Stderr, "%d/%d done, %d failed %s\n", p.Done, p.Total, p.Failed, p.Current)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func historyAction(c *cli.Context, e env) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	records, err := e.records(c.Context, c.Bool("offline"))
	if err != nil {
		return err
	}
	history := repository.NewestFirst(records)
	if term := c.String("search"); strings.TrimSpace(term) != "" {
		return printYAML(selection.Search(history, term))
	}
	return printYAML(history)
}

func deleteAction(c *cli.Context, e env) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	id := c.Args().First()
	if id == "" {
		return errors.New("record id is required")
	}
	snapshots, err := cache.Open(e.cache)
	if err != nil {
		return err
	}
	defer snapshots.Close()
	repo := e.repository(snapshots)
	if err := repo.Remove(c.Context, e.sess, id); err != nil {
		return err
	}
	return printYAML(map[string]any{"deleted": id, "remaining": len(repo.Records())})
}

func leaderboardAction(c *cli.Context, e env) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	kind := c.Args().First()
	records, err := e.records(c.Context, c.Bool("offline"))
	if err != nil {
		return err
	}
	switch kind {
	case "quality", "":
		key, err := ranking.ParseQualityKey(c.String("sort"))
		if err != nil {
			return err
		}
		return printYAML(ranking.QualityLeaderboard(records, key))
	case "ethics":
		key, err := ranking.ParseEthicsKey(c.String("sort"))
		if err != nil {
			return err
		}
		return printYAML(ranking.EthicsLeaderboard(records, key))
	default:
		return fmt.Errorf("unknown leaderboard %q: want quality or ethics", kind)
	}
}

func inspectAction(c *cli.Context, e env) error {
	files, err := readInputs(c.Args().Slice())
	if err != nil {
		return err
	}
	out := make([]submission.Inspection, 0, len(files))
	for _, f := range files {
		out = append(out, submission.Inspect(f, e.cfg.MaxFileBytes))
	}
	return printYAML(out)
}

func modelsAction(_ *cli.Context, e env) error {
	cat, err := catalog.Load(e.cfg.ModelsFile)
	if err != nil {
		return err
	}
	return printYAML(cat)
}

func tokenAction(c *cli.Context, e env) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	v, err := session.NewVerifier(e.cfg.AuthSecret)
	if err != nil {
		return err
	}
	ttl := c.Duration("ttl")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tok, err := v.Sign(e.sess.Username, ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
