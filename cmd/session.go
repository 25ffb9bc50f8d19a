package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/formatter"
	"github.com/desertthunder/mediasync/internal/push"
	"github.com/desertthunder/mediasync/internal/repositories"
	"github.com/desertthunder/mediasync/internal/server"
	"github.com/desertthunder/mediasync/internal/session"
	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/desertthunder/mediasync/internal/tasks"
	"github.com/desertthunder/mediasync/internal/ui"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 32

// configTarget is the part of [session.Manager] that reacts to config reloads.
type configTarget interface {
	SetTimeout(minutes int) (int, error)
	CredentialsChanged(d session.Dialer)
}

// endpointSetter is implemented by REST clients that can be repointed in place.
type endpointSetter interface {
	SetEndpoint(baseURL, token string)
}

// sessionStack is everything a long-running session command owns.
type sessionStack struct {
	manager  *session.Manager
	board    *tasks.TransferBoard
	progress chan tasks.ProgressUpdate
	db       *sql.DB
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func (s *sessionStack) close() {
	s.cancel()
	s.manager.Close()
	s.wg.Wait()
	s.db.Close()
}

func (s *sessionStack) goRun(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

func pushDialer(c *shared.Config, logger *log.Logger) session.Dialer {
	return session.PushDialer(push.NewDialer(c.Service.PushURL, c.Service.APIToken, c.DialTimeout(), logger))
}

// startSession wires the manager to the transfer board, the history store and the config watcher.
func (r *Runner) startSession(ctx context.Context, autoConnect bool) (*sessionStack, error) {
	config := r.settings()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if r.transfers == nil {
		return nil, fmt.Errorf("%w: no transfer service client", shared.ErrServiceUnavailable)
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	stack := &sessionStack{
		progress: make(chan tasks.ProgressUpdate, progressBuffer),
		db:       db,
		cancel:   cancel,
	}

	stack.board = tasks.NewTransferBoard(r.transfers, tasks.BoardOpts{
		Interval: config.RefreshInterval(),
		Store:    repositories.NewTransferSnapshotRepository(db),
		Logger:   r.logger,
	})

	stack.manager = session.NewManager(session.Options{
		Dialer:         pushDialer(config, r.logger),
		Oracle:         session.NewTransferOracle(r.transfers, config.RequestTimeout(), r.logger),
		Logger:         r.logger,
		TimeoutMinutes: config.Session.TimeoutMinutes,
		AutoConnect:    autoConnect,
		DialTimeout:    config.DialTimeout(),
		Forward: func(msg push.Message) {
			stack.board.Apply(msg, stack.progress)
		},
	})

	recorder := tasks.NewHistoryRecorder(repositories.NewSessionEventRepository(db), r.logger)
	history := stack.manager.Subscribe()
	stack.goRun(func() {
		if err := recorder.Run(ctx, history.Events(), stack.progress); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("history recorder stopped", "error", err)
		}
	})

	stack.goRun(func() {
		if err := stack.board.Run(ctx, stack.progress); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("transfer board stopped", "error", err)
		}
	})

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			r.watchConfig(ctx, stack)
		}
	}

	return stack, nil
}

func (r *Runner) watchConfig(ctx context.Context, stack *sessionStack) {
	watcher, err := shared.NewConfigWatcher(r.configPath, r.settings(), 0, r.logger)
	if err != nil {
		r.logger.Warn("config changes will not be picked up", "error", err)
		return
	}

	stack.goRun(func() { watcher.Run(ctx) })
	stack.goRun(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change := <-watcher.Changes():
				r.applyConfigChange(stack.manager, change)
			}
		}
	})
}

// applyConfigChange forwards a reloaded config to the session.
//
// The REST client is repointed before the dialer is swapped so the reconnect that follows
// is already checked against the new endpoint by the oracle and the transfer board.
func (r *Runner) applyConfigChange(target configTarget, change shared.ConfigChange) {
	r.setSettings(change.New)

	if change.EndpointChanged {
		if api, ok := r.api.(endpointSetter); ok {
			r.logger.Info("transfer service endpoint changed", "base_url", change.New.Service.BaseURL)
			api.SetEndpoint(change.New.Service.BaseURL, change.New.Service.APIToken)
		} else if r.api != nil {
			r.logger.Warn("transfer service client cannot be repointed, restart to apply", "base_url", change.New.Service.BaseURL)
		}
	}
	if change.TimeoutChanged {
		applied, err := target.SetTimeout(change.New.Session.TimeoutMinutes)
		if err != nil {
			r.logger.Warn("idle timeout not applied", "error", err)
		} else {
			r.logger.Info("idle timeout updated", "minutes", applied)
		}
	}
	if change.CredentialsChanged {
		r.logger.Info("credentials changed, replacing push dialer")
		target.CredentialsChanged(pushDialer(change.New, r.logger))
	}
}

// SessionWatch runs the interactive panel.
func (r *Runner) SessionWatch(ctx context.Context, cmd *cli.Command) error {
	logger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	shared.SetLogLevel(logger, r.logger.GetLevel())
	r.SetLogger(logger)

	stack, err := r.startSession(ctx, r.settings().Session.AutoConnect && !cmd.Bool("no-connect"))
	if err != nil {
		return err
	}
	defer stack.close()

	sub := stack.manager.Subscribe()
	model := ui.NewModel(ctx, ui.ModelOpts{
		Controller: stack.manager,
		Statuses:   sub.Status(),
		Events:     sub.Events(),
		Board:      stack.board,
		Progress:   stack.progress,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run panel: %w", err)
	}

	return nil
}

// SessionServe exposes the session over the local HTTP API until interrupted.
func (r *Runner) SessionServe(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := r.startSession(ctx, r.settings().Session.AutoConnect && !cmd.Bool("no-connect"))
	if err != nil {
		return err
	}
	defer stack.close()

	stack.goRun(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-stack.progress:
				r.logger.Debug("progress", "phase", u.Phase, "message", u.Message)
			}
		}
	})

	hub := server.NewHub(r.logger)
	stack.goRun(func() { hub.Run(ctx) })
	feed := stack.manager.Subscribe()
	stack.goRun(func() { hub.Feed(ctx, feed) })

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	server.NewSessionHandler(stack.manager, r.logger).Register(router)
	router.Handler(server.NewStreamHandler(hub))

	listen := r.settings().Server
	addr := fmt.Sprintf("%s:%d", listen.Host, listen.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	statusURL := fmt.Sprintf("http://%s%s", addr, server.StatusPath)
	r.logger.Info("session server listening", "addr", addr)
	r.writePlain("Serving session on http://%s (stream at %s)\n", addr, server.StreamPath)

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(statusURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			r.writePlain("Open this URL in your browser:\n%s\n", statusURL)
		}
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("server shutdown failed", "error", err)
	}
	r.logger.Info("session server stopped")
	return nil
}

// SessionStatus queries a running `session serve`.
func (r *Runner) SessionStatus(ctx context.Context, cmd *cli.Command) error {
	listen := r.settings().Server
	url := fmt.Sprintf("http://%s:%d%s", listen.Host, listen.Port, server.StatusPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: no session server at %s: %v", shared.ErrServiceUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d from %s", shared.ErrAPIRequest, resp.StatusCode, url)
	}

	var status session.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	return r.writeRaw(formatter.StatusToText(status))
}
