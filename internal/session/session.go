// Package session wires the dashboard panels to a backend: it owns the active
// instance selection, registers every panel's update function, routes push
// events through the dispatcher, and runs all panel mutation on one loop.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jaakkos/titandash/internal/dispatch"
	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/logtail"
	"github.com/jaakkos/titandash/internal/panel"
	"github.com/jaakkos/titandash/internal/view"
)

// MetaActiveInstance is the meta key the last selection is saved under.
const MetaActiveInstance = "active_instance"

// AlertStore persists toast history and small bits of session state.
type AlertStore interface {
	SaveAlert(ctx context.Context, a domain.Alert) (int64, error)
	SetMeta(ctx context.Context, key, value string) error
	Meta(ctx context.Context, key string) (string, error)
}

// Options configure a Session. Backend and Logger are required.
type Options struct {
	Backend panel.Backend
	Store   AlertStore
	Logger  *log.Logger
	Timers  panel.TimerOptions

	ToastTimeout  time.Duration
	MaxLogRecords int

	// TailLogs follows the selected instance's log file when the backend
	// reports a local path for it.
	TailLogs         bool
	TailPollInterval time.Duration
}

// Session is one dashboard connected to one backend.
type Session struct {
	backend panel.Backend
	store   AlertStore
	logger  *log.Logger
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc
	loop   *Loop

	mu     sync.RWMutex
	active domain.PK

	board    *view.Board
	toasts   *view.Toasts
	fetcher  *panel.Fetcher
	registry *panel.Registry

	instances *panel.Instances
	selected  *panel.SelectedInstance
	actions   *panel.Actions
	settings  *panel.Settings
	queue     *panel.QueueFunction
	logs      *panel.Logs

	dispatcher *dispatch.Dispatcher

	obsMu      sync.RWMutex
	structural []func(name string)

	tail     *logtail.Tailer
	tailPath string

	closeOnce sync.Once
}

// New builds a session. Nothing is fetched until Init.
func New(opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend:  opts.Backend,
		store:    opts.Store,
		logger:   opts.Logger,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		board:    view.NewBoard(),
		toasts:   view.NewToasts(opts.ToastTimeout),
		registry: panel.NewRegistry(opts.Logger),
	}
	s.loop = NewLoop(opts.Logger)
	s.fetcher = panel.NewFetcher(ctx, s.loop)

	env := &panel.Env{
		Backend:   opts.Backend,
		Selection: s,
		Fetcher:   s.fetcher,
		Board:     s.board,
		Toasts:    s.toasts,
		Logger:    opts.Logger,
	}
	s.instances = panel.NewInstances(env)
	s.selected = panel.NewSelectedInstance(env, s.instances, opts.Timers)
	s.actions = panel.NewActions(env)
	s.settings = panel.NewSettings(env)
	s.queue = panel.NewQueueFunction(env)
	s.logs = panel.NewLogs(env, opts.MaxLogRecords)

	s.dispatcher = dispatch.New(dispatch.Deps{
		Selection: s,
		Panels:    s.registry,
		Instances: s.instances,
		Queue:     s.queue.Queued(),
		Toasts:    s.toasts,
		Logger:    opts.Logger,
	})

	s.instances.Table().OnChange(s.structureChanged)
	s.queue.Queued().OnChange(s.structureChanged)
	s.logs.OnChange(s.structureChanged)
	s.toasts.OnChange(func() { s.structureChanged("toasts") })
	s.toasts.OnPush(s.saveAlert)
	s.selected.OnData(s.followLog)
	return s
}

// ActiveInstance returns the selected instance.
func (s *Session) ActiveInstance() domain.PK {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) setActive(pk domain.PK) {
	s.mu.Lock()
	s.active = pk
	s.mu.Unlock()
}

// Init loads the instance list, restores the last selection (or picks the
// first instance), registers every update function and starts each panel's
// first fetch.
func (s *Session) Init(ctx context.Context) error {
	list, err := s.instances.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("load instances: %w", err)
	}
	active := s.restoreSelection(ctx, list)
	return s.loop.Call(func() {
		s.instances.Load(list)
		s.setActive(active)
		s.register()
		s.refresh()
		s.registry.Invoke(panel.NameInitLogs)
	})
}

func (s *Session) restoreSelection(ctx context.Context, list []domain.Instance) domain.PK {
	if len(list) == 0 {
		return ""
	}
	if s.store != nil {
		saved, err := s.store.Meta(ctx, MetaActiveInstance)
		if err != nil {
			s.logger.Printf("session: restore selection: %v", err)
		}
		for _, inst := range list {
			if saved != "" && string(inst.PK) == saved {
				return inst.PK
			}
		}
	}
	return list[0].PK
}

func (s *Session) register() {
	s.registry.Register(panel.NameSelectedInstance, s.selected.Update)
	s.registry.Register(panel.NameActions, s.actions.Update)
	s.registry.Register(panel.NameSettings, s.settings.Update)
	s.registry.Register(panel.NameQueueFunction, s.queue.Update)
	s.registry.Register(panel.NameInstances, s.instances.Update)
	s.registry.Register(panel.NameInitLogs, s.logs.Init)
	s.registry.Register(panel.NameAddLog, s.logs.Add)
	s.registry.Register(panel.NameClearLogs, s.logs.Clear)
}

// refresh refetches every panel that depends on the selection.
func (s *Session) refresh() {
	for _, name := range []string{
		panel.NameSelectedInstance,
		panel.NameActions,
		panel.NameSettings,
		panel.NameQueueFunction,
	} {
		s.registry.Invoke(name)
	}
}

// Select makes pk the active instance, saves the choice, clears the logs
// and refreshes the dependent panels. The selected instance panel starts from
// placeholders so nothing of the previous instance lingers.
func (s *Session) Select(ctx context.Context, pk domain.PK) error {
	err := s.onLoop(func() error {
		if !s.instances.Has(pk) {
			return fmt.Errorf("select %s: %w", pk, panel.ErrUnknownInstance)
		}
		s.setActive(pk)
		s.registry.Invoke(panel.NameInitLogs)
		s.selected.Reset()
		s.refresh()
		return nil
	})
	if err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.SetMeta(ctx, MetaActiveInstance, string(pk)); err != nil {
			s.logger.Printf("session: save selection: %v", err)
		}
	}
	return nil
}

// Dispatch hands ev to the dispatcher on the loop. It reports false once the
// session is closed.
func (s *Session) Dispatch(ev dispatch.Event) bool {
	return s.loop.Post(func() {
		if err := s.dispatcher.Handle(ev); err != nil {
			s.logger.Printf("session: event %s: %v", ev.Kind, err)
		}
	})
}

// Refresh refetches one panel, or every selection-dependent panel when name
// is empty.
func (s *Session) Refresh(name string) error {
	return s.loop.Call(func() {
		if name == "" {
			s.refresh()
			return
		}
		s.registry.Invoke(name)
	})
}

// Sync waits until no fetch is in flight and every completion has been
// applied.
func (s *Session) Sync() error {
	for {
		s.fetcher.Wait()
		if err := s.loop.Call(func() {}); err != nil {
			return err
		}
		if s.fetcher.Idle() {
			return nil
		}
	}
}

// Board exposes the text targets.
func (s *Session) Board() *view.Board { return s.board }

// Observe registers fn for every text target change.
func (s *Session) Observe(fn func(view.Change)) { s.board.Subscribe(fn) }

// ObserveStructure registers fn to run when a table, the logs or the toasts
// change. fn receives the name of what changed and must not block.
func (s *Session) ObserveStructure(fn func(name string)) {
	s.obsMu.Lock()
	s.structural = append(s.structural, fn)
	s.obsMu.Unlock()
}

func (s *Session) structureChanged(name string) {
	s.obsMu.RLock()
	fns := s.structural
	s.obsMu.RUnlock()
	for _, fn := range fns {
		fn(name)
	}
}

// SetLimits applies reloaded limits. Non-positive values leave a limit as is.
func (s *Session) SetLimits(maxLogRecords int, toastTimeout time.Duration) {
	s.toasts.SetDefaultTimeout(toastTimeout)
	s.loop.Post(func() { s.logs.SetMax(maxLogRecords) })
}

func (s *Session) saveAlert(t view.Toast) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.store.SaveAlert(ctx, domain.Alert{
		Sender:    t.Sender,
		Message:   t.Message,
		Kind:      string(t.Kind),
		CreatedAt: t.Created,
	})
	if err != nil {
		s.logger.Printf("session: save alert: %v", err)
	}
}

// followLog points the log tailer at the file of the selected instance. It
// runs on the loop whenever the selected instance panel applies data.
func (s *Session) followLog(data *domain.InstanceInformation) {
	if !s.opts.TailLogs {
		return
	}
	path := ""
	if data != nil && data.Log != nil {
		path = data.Log.Path
	}
	if path == s.tailPath {
		return
	}
	s.stopTail()
	s.tailPath = path
	if path == "" {
		return
	}

	instance := s.ActiveInstance()
	var opts []logtail.Option
	if s.opts.TailPollInterval > 0 {
		opts = append(opts, logtail.WithPollInterval(s.opts.TailPollInterval))
	}
	t := logtail.New(path, func(line string) {
		rec := domain.LogRecord{Instance: instance, Record: line}
		s.loop.Post(func() { s.registry.Invoke(panel.NameAddLog, rec) })
	}, s.logger, opts...)
	s.tail = t
	go t.Start(s.ctx)
	s.logger.Printf("session: following %s", path)
}

// stopTail detaches the current tailer. Stopping happens off the loop since
// the tailer may be blocked posting a line to it.
func (s *Session) stopTail() {
	if s.tail == nil {
		return
	}
	go s.tail.Stop()
	s.tail = nil
}

// Close destroys every timer, cancels fetches and stops the loop. It is safe
// to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.loop.Call(func() {
			s.selected.Teardown()
			s.stopTail()
		})
		s.cancel()
		s.fetcher.Close()
		s.loop.Stop()
		s.toasts.Close()
	})
}

// onLoop runs fn on the loop and returns its error.
func (s *Session) onLoop(fn func() error) error {
	var err error
	if cerr := s.loop.Call(func() { err = fn() }); cerr != nil {
		return cerr
	}
	return err
}
