// Package ghsync mirrors the JSON data files to a GitHub repository through
// the contents API.
package ghsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/google/go-github/v66/github"
)

// Options configures a Syncer.
type Options struct {
	Token   string
	Repo    string // owner/name
	Branch  string
	Timeout time.Duration
	// BaseURL points at a GitHub Enterprise API; empty means api.github.com.
	BaseURL string
	// Committer appears in commit messages.
	Committer string
}

// Target is one data file kept in sync.
type Target struct {
	Kind       model.Kind
	LocalPath  string
	RemotePath string
}

// Replacer installs pulled file content and reloads from it.
type Replacer interface {
	Replace(data []byte) error
}

// Result records the outcome of a sync operation.
type Result struct {
	At      time.Time `json:"at"`
	OK      bool      `json:"ok"`
	Skipped bool      `json:"skipped,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// FileStatus describes one synced file.
type FileStatus struct {
	Kind             model.Kind `json:"kind"`
	Enabled          bool       `json:"enabled"`
	Repo             string     `json:"repo"`
	FilePath         string     `json:"file_path"`
	Branch           string     `json:"branch"`
	GitHubFileExists bool       `json:"github_file_exists"`
	LastGitHubUpdate *time.Time `json:"last_github_update"`
	LastPush         *Result    `json:"last_push,omitempty"`
	LastPull         *Result    `json:"last_pull,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// Syncer pushes data files after saves on a background worker and pulls
// them on request.
type Syncer struct {
	client    *github.Client
	owner     string
	repo      string
	branch    string
	timeout   time.Duration
	committer string
	targets   map[model.Kind]Target
	order     []model.Kind
	queue     chan model.Kind

	mu        sync.Mutex
	replacers map[model.Kind]Replacer
	pending   map[model.Kind]bool
	lastPush  map[model.Kind]Result
	lastPull  map[model.Kind]Result
}

// New creates a Syncer for the given targets.
func New(opts Options, targets ...Target) (*Syncer, error) {
	owner, repo, ok := strings.Cut(opts.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/name", opts.Repo)
	}
	if opts.Token == "" {
		return nil, errors.New("github token is required")
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Committer == "" {
		opts.Committer = "gametracker"
	}

	client := github.NewClient(&http.Client{Timeout: opts.Timeout}).WithAuthToken(opts.Token)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing github base url: %w", err)
		}
		client.BaseURL = u
	}

	s := &Syncer{
		client:    client,
		owner:     owner,
		repo:      repo,
		branch:    opts.Branch,
		timeout:   opts.Timeout,
		committer: opts.Committer,
		targets:   make(map[model.Kind]Target, len(targets)),
		queue:     make(chan model.Kind, len(targets)+1),
		replacers: map[model.Kind]Replacer{},
		pending:   map[model.Kind]bool{},
		lastPush:  map[model.Kind]Result{},
		lastPull:  map[model.Kind]Result{},
	}
	for _, t := range targets {
		s.targets[t.Kind] = t
		s.order = append(s.order, t.Kind)
	}
	return s, nil
}

// Repo returns the owner/name of the synced repository.
func (s *Syncer) Repo() string { return s.owner + "/" + s.repo }

// Kinds returns the synced kinds in configuration order.
func (s *Syncer) Kinds() []model.Kind { return s.order }

// Attach registers the store that receives pulled content for kind.
func (s *Syncer) Attach(kind model.Kind, r Replacer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replacers[kind] = r
}

// Notify schedules a background push of kind's file. Repeated calls before
// the push starts collapse into one. It never blocks.
func (s *Syncer) Notify(kind model.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.targets[kind]; !ok || s.pending[kind] {
		return
	}
	select {
	case s.queue <- kind:
		s.pending[kind] = true
	default:
	}
}

// Start runs the push worker until ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case kind := <-s.queue:
				s.mu.Lock()
				delete(s.pending, kind)
				s.mu.Unlock()

				if err := s.Push(ctx, kind); err != nil {
					slog.Error("github push failed", "kind", kind, "error", err)
				}
			}
		}
	}()
}

// Push uploads kind's local file, skipping the commit when GitHub already
// has identical content.
func (s *Syncer) Push(ctx context.Context, kind model.Kind) error {
	t, ok := s.targets[kind]
	if !ok {
		return fmt.Errorf("no sync target for %s", kind)
	}

	res, err := s.push(ctx, t)
	if err != nil {
		res.Error = err.Error()
	}
	res.At = time.Now()
	s.mu.Lock()
	s.lastPush[kind] = res
	s.mu.Unlock()
	return err
}

func (s *Syncer) push(ctx context.Context, t Target) (Result, error) {
	data, err := os.ReadFile(t.LocalPath)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", t.LocalPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	remote, sha, exists, err := s.fetch(ctx, t.RemotePath)
	if err != nil {
		return Result{}, err
	}
	if exists && bytes.Equal(remote, data) {
		return Result{OK: true, Skipped: true}, nil
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("Update %s from %s", t.RemotePath, s.committer)),
		Content: data,
		Branch:  github.String(s.branch),
	}
	if exists {
		opts.SHA = github.String(sha)
		_, _, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, t.RemotePath, opts)
	} else {
		_, _, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, t.RemotePath, opts)
	}
	if err != nil {
		return Result{}, fmt.Errorf("uploading %s: %w", t.RemotePath, err)
	}

	slog.Info("pushed data file to github", "kind", t.Kind, "repo", s.Repo(), "path", t.RemotePath)
	return Result{OK: true}, nil
}

// Pull downloads kind's file from GitHub and hands it to the attached store,
// which replaces its local file and reloads.
func (s *Syncer) Pull(ctx context.Context, kind model.Kind) error {
	err := s.pull(ctx, kind)
	res := Result{At: time.Now(), OK: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	s.mu.Lock()
	s.lastPull[kind] = res
	s.mu.Unlock()
	return err
}

func (s *Syncer) pull(ctx context.Context, kind model.Kind) error {
	t, ok := s.targets[kind]
	if !ok {
		return fmt.Errorf("no sync target for %s", kind)
	}
	s.mu.Lock()
	r := s.replacers[kind]
	s.mu.Unlock()
	if r == nil {
		return fmt.Errorf("no store attached for %s", kind)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, _, exists, err := s.fetch(ctx, t.RemotePath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s does not exist in %s", t.RemotePath, s.Repo())
	}
	if err := r.Replace(data); err != nil {
		return fmt.Errorf("installing pulled %s: %w", kind.Plural(), err)
	}

	slog.Info("pulled data file from github", "kind", kind, "repo", s.Repo(), "path", t.RemotePath)
	return nil
}

// Status reports the remote state of every target.
func (s *Syncer) Status(ctx context.Context) []FileStatus {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []FileStatus
	for _, kind := range s.order {
		t := s.targets[kind]
		st := FileStatus{
			Kind:     kind,
			Enabled:  true,
			Repo:     s.Repo(),
			FilePath: t.RemotePath,
			Branch:   s.branch,
		}

		s.mu.Lock()
		if r, ok := s.lastPush[kind]; ok {
			st.LastPush = &r
		}
		if r, ok := s.lastPull[kind]; ok {
			st.LastPull = &r
		}
		s.mu.Unlock()

		_, _, exists, err := s.fetch(ctx, t.RemotePath)
		if err != nil {
			st.Error = err.Error()
			out = append(out, st)
			continue
		}
		st.GitHubFileExists = exists
		if exists {
			updated, err := s.lastCommit(ctx, t.RemotePath)
			if err != nil {
				st.Error = err.Error()
			}
			st.LastGitHubUpdate = updated
		}
		out = append(out, st)
	}
	return out
}

// fetch returns the remote file content and blob SHA. A missing file is not
// an error.
func (s *Syncer) fetch(ctx context.Context, path string) ([]byte, string, bool, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path,
		&github.RepositoryContentGetOptions{Ref: s.branch})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("fetching %s: %w", path, err)
	}
	if file == nil {
		return nil, "", false, fmt.Errorf("%s is a directory", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return []byte(content), file.GetSHA(), true, nil
}

func (s *Syncer) lastCommit(ctx context.Context, path string) (*time.Time, error) {
	commits, _, err := s.client.Repositories.ListCommits(ctx, s.owner, s.repo, &github.CommitsListOptions{
		SHA:         s.branch,
		Path:        path,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("listing commits for %s: %w", path, err)
	}
	if len(commits) == 0 {
		return nil, nil
	}
	date := commits[0].GetCommit().GetCommitter().GetDate()
	if date.IsZero() {
		return nil, nil
	}
	t := date.Time
	return &t, nil
}
