package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/retaildesk/api"
	"github.com/angelmondragon/retaildesk/internal/access"
	"github.com/angelmondragon/retaildesk/internal/backend"
	"github.com/angelmondragon/retaildesk/pkg/auth/session"
	"github.com/angelmondragon/retaildesk/pkg/config"
	"github.com/angelmondragon/retaildesk/pkg/env"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/metrics"
	"github.com/angelmondragon/retaildesk/pkg/redis"
)

const (
	envUsername = "RETAILDESK_USERNAME"
	envPassword = "RETAILDESK_PASSWORD"
)

// app wires one CLI invocation: config, the session holder and the backend client.
type app struct {
	cfg     *config.Config
	logg    *logger.Logger
	out     io.Writer
	in      *bufio.Reader
	holder  *session.Holder
	client  *backend.Client
	closers []io.Closer

	registry        *prometheus.Registry
	checkoutMetrics *metrics.CheckoutMetrics
}

func newApp(ctx context.Context, cfg *config.Config, logg *logger.Logger, in io.Reader, out io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		logg:     logg,
		out:      out,
		in:       bufio.NewReader(in),
		registry: prometheus.NewRegistry(),
	}
	a.checkoutMetrics = metrics.NewCheckoutMetrics(a.registry)

	var store session.Store = session.NewMemoryStore()
	if cfg.Session.UsesRedis() {
		rc, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		a.closers = append(a.closers, rc)
		rs, err := session.NewRedisStore(rc, cfg.Session.Key, cfg.Session.TTL)
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		store = rs
	}

	a.holder = session.NewHolder(store)
	if err := a.holder.Restore(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "stored session unreadable, starting logged out")
	}

	client, err := backend.NewFromConfig(cfg.Backend, a.holder, logg)
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	a.client = client
	return a, nil
}

// Close releases every resource opened by newApp.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	a.closers = nil
	return err
}

func (a *app) login(ctx context.Context, username, password string) (session.Session, error) {
	res, err := a.client.Login(ctx, username, password)
	if err != nil {
		return session.Session{}, err
	}
	return a.holder.Login(ctx, res.Token, session.User{
		ID:       res.User.ID,
		Username: res.User.Username,
		FullName: res.User.FullName,
		Role:     res.User.Role,
	})
}

// requireSession returns the active session and checks it may open route.
// Without a stored login it falls back to credentials from the environment.
func (a *app) requireSession(ctx context.Context, route access.Route) (session.Session, error) {
	s, ok := a.holder.Current()
	if !ok {
		username, password := env.Get(envUsername, ""), env.Get(envPassword, "")
		if username == "" || password == "" {
			return session.Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "not logged in; run `retaildesk login` first")
		}
		var err error
		if s, err = a.login(ctx, username, password); err != nil {
			return session.Session{}, err
		}
	}
	if err := access.Require(s.User.Role, route); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// serveMetrics exposes the checkout counters while ctx is alive, when an
// address is configured.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	srv := api.NewServer(a.cfg.Metrics.Addr, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	go func() {
		if err := api.Serve(ctx, srv, a.logg); err != nil {
			a.logg.Error(ctx, "metrics server stopped", err)
		}
	}()
}

// prompt writes question and reads one trimmed line. io.EOF is returned when
// input is exhausted.
func (a *app) prompt(question string) (string, error) {
	fmt.Fprint(a.out, question)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
