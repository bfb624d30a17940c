package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/erazemk/gametracker/internal/config"
	"github.com/erazemk/gametracker/internal/db"
	"github.com/erazemk/gametracker/internal/filestore"
	"github.com/erazemk/gametracker/internal/ghsync"
	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/store"
	"github.com/erazemk/gametracker/internal/tracker"
)

// backend is the storage chosen by configuration. Exactly one of db and
// files is set.
type backend struct {
	cfg    *config.Config
	db     *db.DB
	files  []*filestore.Store
	syncer *ghsync.Syncer
	games  tracker.Store
	books  tracker.Store
}

func (b *backend) stores() []tracker.Store {
	return []tracker.Store{b.games, b.books}
}

func (b *backend) store(kind model.Kind) tracker.Store {
	if kind == model.KindBook {
		return b.books
	}
	return b.games
}

func (b *backend) Close() error {
	var errs []error
	for _, f := range b.files {
		errs = append(errs, f.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	return errors.Join(errs...)
}

// openBackend opens the configured stores. With the file backend and sync
// configured it also builds the GitHub syncer and, when pushOnSave is set,
// queues a push after every save.
func openBackend(cfg *config.Config, pushOnSave bool) (*backend, error) {
	policy := tracker.Policy{MaxLimit: cfg.Limits.Max}
	b := &backend{cfg: cfg}

	if cfg.Storage.UseDatabase {
		database, err := db.Open(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		b.db = database
		b.games = store.NewItems(database, model.KindGame, policy, cfg.Limits.Default)
		b.books = store.NewItems(database, model.KindBook, policy, cfg.Limits.Default)
		slog.Info("database ready", "dialect", database.Dialect)
		return b, nil
	}

	var onSave func(model.Kind)
	if cfg.SyncEnabled() {
		syncer, err := ghsync.New(ghsync.Options{
			Token:     cfg.Sync.GitHubToken,
			Repo:      cfg.Sync.Repo,
			Branch:    cfg.Sync.Branch,
			Timeout:   cfg.SyncTimeout(),
			Committer: cfg.AppName,
		},
			ghsync.Target{Kind: model.KindGame, LocalPath: cfg.GamesPath(), RemotePath: cfg.Sync.GamesPath},
			ghsync.Target{Kind: model.KindBook, LocalPath: cfg.BooksPath(), RemotePath: cfg.Sync.BooksPath},
		)
		if err != nil {
			return nil, fmt.Errorf("configuring github sync: %w", err)
		}
		b.syncer = syncer
		if pushOnSave && cfg.Sync.PushOnSave {
			onSave = syncer.Notify
		}
	}

	for _, src := range []struct {
		kind model.Kind
		path string
	}{
		{model.KindGame, cfg.GamesPath()},
		{model.KindBook, cfg.BooksPath()},
	} {
		fs, err := filestore.Open(filestore.Options{
			Path:         src.path,
			Kind:         src.kind,
			Policy:       policy,
			DefaultLimit: cfg.Limits.Default,
			OnSave:       onSave,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("opening %s store: %w", src.kind, err)
		}
		b.files = append(b.files, fs)
		if b.syncer != nil {
			b.syncer.Attach(src.kind, fs)
		}
		slog.Info("data file ready", "kind", src.kind, "path", fs.Path())
	}
	b.games, b.books = b.files[0], b.files[1]
	return b, nil
}

// jwtSecret returns the configured secret, or the one persisted in the
// database.
func (b *backend) jwtSecret(ctx context.Context) (string, error) {
	if b.cfg.Auth.SecretKey != "" {
		return b.cfg.Auth.SecretKey, nil
	}
	return store.GetJWTSecret(ctx, b.db)
}

func (b *backend) requireDB() error {
	if b.db == nil {
		return errors.New("this command needs the database backend (set DATABASE_URL or use_database)")
	}
	return nil
}
