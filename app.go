package refresh

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileLoader returns the raw bytes behind a virtual path. The engine never
// touches the filesystem directly during a frame; the host supplies this.
type FileLoader func(path string) ([]byte, error)

// DirLoader is the default loader, rooted at a game directory.
func DirLoader(gamedir string) FileLoader {
	return func(path string) ([]byte, error) {
		return os.ReadFile(filepath.Join(gamedir, filepath.FromSlash(path)))
	}
}

// App owns the engine-wide services every subsystem consumes: logger, cvar
// registry, command dispatch, and the file loader. Modules install their
// cvars, commands, and resources through it.
type App struct {
	Log     Logger
	Cvars   *CvarRegistry
	Loader  FileLoader
	GameDir string

	commands map[string]Command
	modules  []Module
}

// Module is an installable engine component.
type Module interface {
	Install(app *App, cmd *Commands) error
}

type Command func(args []string)

func NewApp(gamedir string) *App {
	log := NewDefaultLogger("refresh", false)
	return &App{
		Log:      log,
		Cvars:    NewCvarRegistry(log),
		Loader:   DirLoader(gamedir),
		GameDir:  gamedir,
		commands: make(map[string]Command),
	}
}

func (app *App) UseModules(modules ...Module) *App {
	app.modules = append(app.modules, modules...)
	return app
}

// Build installs every module in order. Cvar defaults from refresh.toml are
// applied first so modules registering cvars pick them up via Get.
func (app *App) Build() error {
	if err := app.Cvars.LoadDefaults(filepath.Join(app.GameDir, "refresh.toml")); err != nil {
		app.Log.Warnf("%v", err)
	}
	cmd := &Commands{app: app}
	for _, m := range app.modules {
		if err := m.Install(app, cmd); err != nil {
			return fmt.Errorf("module install: %w", err)
		}
	}
	return nil
}

// Shutdown removes every registered command. Modules holding GPU resources
// release them through their own teardown paths.
func (app *App) Shutdown() {
	for name := range app.commands {
		delete(app.commands, name)
	}
}
