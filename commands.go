package refresh

import "strings"

// Commands is the installation handle passed to modules. It registers
// console commands and resources against the owning App.
type Commands struct {
	app *App
}

func (cmd *Commands) AddCommand(name string, fn Command) *Commands {
	if _, ok := cmd.app.commands[name]; ok {
		cmd.app.Log.Warnf("command %s already registered", name)
		return cmd
	}
	cmd.app.commands[name] = fn
	return cmd
}

func (cmd *Commands) RemoveCommand(name string) *Commands {
	delete(cmd.app.commands, name)
	return cmd
}

func (cmd *Commands) Cvar(name, def string, flags CvarFlags) *Cvar {
	return cmd.app.Cvars.Get(name, def, flags)
}

// Execute dispatches one console line: a registered command, or a cvar name
// (print on bare name, set with an argument). Unknown tokens are reported.
func (app *App) Execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	name := fields[0]
	if fn, ok := app.commands[name]; ok {
		fn(fields[1:])
		return
	}
	if v := app.Cvars.Lookup(name); v != nil {
		if len(fields) > 1 {
			app.Cvars.Set(name, fields[1])
		} else {
			app.Log.Infof("%q is %q, default %q", v.Name, v.String, v.Default)
		}
		return
	}
	app.Log.Infof("unknown command %q", name)
}
