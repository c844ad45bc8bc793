package stablecoin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
)

var (
	// ErrLoggerNil is returned when the launcher has no logger.
	ErrLoggerNil = errors.New("logger is nil")
	// ErrNilLauncher is returned when a launcher method is called on a nil receiver.
	ErrNilLauncher = errors.New("launcher is nil")
	// ErrEmptyApp is returned when an app name is blank.
	ErrEmptyApp = errors.New("app name is empty")
	// ErrNilApp is returned when a nil app is registered.
	ErrNilApp = errors.New("app is nil")
	// ErrConfigFailed is returned when launcher options collected errors.
	ErrConfigFailed = errors.New("launcher configuration failed")
)

// App is a long-running component started by the Launcher, such as the
// multisig API or the auto-submit job. Run blocks until ctx is done or the
// component fails.
type App interface {
	Run(ctx context.Context, launcher *Launcher) error
}

// AppFunc adapts a function to App.
type AppFunc func(ctx context.Context, launcher *Launcher) error

// Run implements App.
func (f AppFunc) Run(ctx context.Context, launcher *Launcher) error { return f(ctx, launcher) }

// LauncherOption configures a Launcher.
type LauncherOption func(l *Launcher)

// WithLogger sets the launcher logger.
func WithLogger(logger log.Logger) LauncherOption {
	return func(l *Launcher) {
		l.Logger = logger
	}
}

// RunApp registers an app. Registration errors surface from RunWithError.
func RunApp(name string, app App) LauncherOption {
	return func(l *Launcher) {
		if err := l.Add(name, app); err != nil {
			l.configErrors = append(l.configErrors, fmt.Errorf("add app %q: %w", name, err))
		}
	}
}

// Launcher runs a set of apps and waits for all of them.
type Launcher struct {
	Logger       log.Logger
	apps         map[string]App
	order        []string
	configErrors []error
}

// NewLauncher creates a Launcher.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{apps: make(map[string]App)}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Add registers app under appName. Re-adding a name replaces the app.
func (l *Launcher) Add(appName string, a App) error {
	if l == nil {
		return ErrNilLauncher
	}

	if strings.TrimSpace(appName) == "" {
		return ErrEmptyApp
	}

	if a == nil {
		return ErrNilApp
	}

	if l.apps == nil {
		l.apps = make(map[string]App)
	}

	if _, exists := l.apps[appName]; !exists {
		l.order = append(l.order, appName)
	}

	l.apps[appName] = a

	return nil
}

// RunWithError starts every app and blocks until all return. The first app
// error cancels the others; all app errors are joined in the result.
func (l *Launcher) RunWithError(ctx context.Context) error {
	if l == nil {
		return ErrNilLauncher
	}

	if l.Logger == nil {
		return ErrLoggerNil
	}

	if len(l.configErrors) > 0 {
		return errors.Join(append([]error{ErrConfigFailed}, l.configErrors...)...)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	l.Logger.Log(ctx, log.LevelInfo, "starting apps", log.Int("count", len(l.order)))

	for _, name := range l.order {
		app := l.apps[name]

		wg.Add(1)

		runtime.SafeGoWithContextAndComponent(ctx, l.Logger, "launcher", "run_app_"+name, func(ctx context.Context) {
			defer wg.Done()

			l.Logger.Log(ctx, log.LevelInfo, "app starting", log.String("app", name))

			if err := app.Run(ctx, l); err != nil {
				l.Logger.Log(ctx, log.LevelError, "app error", log.String("app", name), log.Err(err))

				mu.Lock()
				errs = append(errs, fmt.Errorf("app %s: %w", name, err))
				mu.Unlock()

				cancel()
			}

			l.Logger.Log(ctx, log.LevelInfo, "app finished", log.String("app", name))
		})
	}

	wg.Wait()

	l.Logger.Log(context.Background(), log.LevelInfo, "launcher terminated")

	return errors.Join(errs...)
}
