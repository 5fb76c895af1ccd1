package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/studyflow/internal/clog"
	"github.com/nhle/studyflow/internal/credential"
	"github.com/nhle/studyflow/internal/extract"
	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/source"
	"github.com/nhle/studyflow/internal/source/calendar"
	"github.com/nhle/studyflow/internal/source/email"
	"github.com/nhle/studyflow/internal/source/gmail"
	"github.com/nhle/studyflow/internal/store"
	"github.com/nhle/studyflow/internal/sync"
)

// env holds what every command needs: config, logger, store and secrets.
type env struct {
	cfg    *model.AppConfig
	logger *slog.Logger
	store  *store.SQLStore
	creds  *credential.Store
	loc    *time.Location
	redis  *redis.Client
}

func newEnv(path string) (*env, error) {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	logger, err := clog.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	loc, err := cfg.Sync.Location()
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	creds, err := credential.Open()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, store: s, creds: creds, loc: loc}, nil
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing store", "error", err)
	}
}

// userByEmail resolves the --user flag.
func (e *env) userByEmail(ctx context.Context, addr string) (*model.User, error) {
	u, err := e.store.GetUserByEmail(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no user %q, create one with `studyflow user add`", addr)
	}
	return u, err
}

func (e *env) gmailSource() (*gmail.Source, error) {
	g := e.cfg.Email.Gmail
	if g.CredentialsFile == "" {
		return nil, errors.New("email.gmail.credentials_file is not set")
	}
	oauthCfg, err := gmail.LoadOAuthConfig(g.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return gmail.New(oauthCfg, e.creds, g.MaxResults, g.WindowDays), nil
}

func (e *env) emailSource() (source.EmailSource, error) {
	switch e.cfg.Email.Provider {
	case "", "fixture":
		return email.NewFixtureSource(nil), nil
	case "imap":
		c := e.cfg.Email.IMAP
		password, err := e.creds.Get(credential.KeyIMAPPassword)
		if err != nil {
			return nil, fmt.Errorf("imap password (set %s): %w",
				credential.EnvName(credential.KeyIMAPPassword), err)
		}
		client := email.NewIMAPClient(c.Host, c.Port, c.Username, password, c.TLS)
		return email.NewAdapter(client, c.Mailbox, c.Limit, c.WindowDays), nil
	case "gmail":
		return e.gmailSource()
	}
	return nil, fmt.Errorf("unknown email provider %q", e.cfg.Email.Provider)
}

func (e *env) locker(ctx context.Context) (sync.Locker, error) {
	switch e.cfg.Sync.Lock {
	case "", "memory":
		return sync.NewMemoryLocker(), nil
	case "redis":
		client, err := sync.DialRedis(ctx, e.cfg.Sync.RedisAddr)
		if err != nil {
			return nil, err
		}
		e.redis = client
		return sync.NewRedisLocker(client, 2*e.cfg.Sync.Timeout), nil
	}
	return nil, fmt.Errorf("unknown sync lock backend %q", e.cfg.Sync.Lock)
}

// orchestrator wires the configured sources, extractor and lock.
func (e *env) orchestrator(ctx context.Context) (*sync.Orchestrator, error) {
	emails, err := e.emailSource()
	if err != nil {
		return nil, err
	}

	apiKey, err := e.creds.Get(credential.KeyAnthropicAPIKey)
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		return nil, err
	}
	if apiKey == "" {
		e.logger.Warn("no anthropic api key configured, syncs with new email will fail",
			"env", credential.EnvName(credential.KeyAnthropicAPIKey))
	}

	locker, err := e.locker(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := sync.ConfigFrom(e.cfg.Sync)
	if err != nil {
		return nil, err
	}

	return sync.New(sync.Deps{
		Store:     e.store,
		Emails:    emails,
		Calendar:  calendar.NewFeed(nil),
		Extractor: extract.New(apiKey, e.cfg.AI, e.loc),
		Locker:    locker,
		Logger:    e.logger,
	}, cfg), nil
}
