package refresh

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
)

type CvarFlags uint32

const (
	CvarArchive CvarFlags = 1 << iota
	CvarUserInfo
	CvarServerInfo
	CvarNoSet
	CvarLatch
)

// Cvar is one named configuration value. String is authoritative; Value is
// the cached float parse. Modified is set on every write and cleared by
// whoever consumes the change.
type Cvar struct {
	Name     string
	String   string
	Value    float32
	Default  string
	Flags    CvarFlags
	Modified bool

	latched    string
	hasLatched bool
}

func (c *Cvar) Bool() bool { return c.Value != 0 }
func (c *Cvar) Int() int   { return int(c.Value) }

type CvarRegistry struct {
	mu   sync.RWMutex
	vars map[string]*Cvar
	log  Logger
}

func NewCvarRegistry(log Logger) *CvarRegistry {
	if log == nil {
		log = NewNopLogger()
	}
	return &CvarRegistry{
		vars: make(map[string]*Cvar),
		log:  log,
	}
}

// Get registers a cvar if it does not exist yet and returns it. A second
// registration of the same name merges flags and keeps the current value.
func (r *CvarRegistry) Get(name, def string, flags CvarFlags) *Cvar {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.vars[name]; ok {
		v.Flags |= flags
		if v.Default == "" {
			v.Default = def
		}
		return v
	}
	v := &Cvar{
		Name:     name,
		String:   def,
		Value:    parseCvarValue(def),
		Default:  def,
		Flags:    flags,
		Modified: true,
	}
	r.vars[name] = v
	return v
}

// Lookup returns the cvar or nil; it never registers.
func (r *CvarRegistry) Lookup(name string) *Cvar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vars[name]
}

// Set writes a value, honoring NOSET and LATCH semantics. Latched writes
// take effect on the next ApplyLatched (map load).
func (r *CvarRegistry) Set(name, value string) *Cvar {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vars[name]
	if !ok {
		v = &Cvar{Name: name, String: value, Value: parseCvarValue(value), Default: value, Modified: true}
		r.vars[name] = v
		return v
	}
	if v.Flags&CvarNoSet != 0 {
		r.log.Warnf("%s is write protected", name)
		return v
	}
	if v.Flags&CvarLatch != 0 {
		if value == v.String && !v.hasLatched {
			return v
		}
		v.latched = value
		v.hasLatched = true
		r.log.Infof("%s will be changed for next map", name)
		return v
	}
	if value == v.String {
		return v
	}
	v.String = value
	v.Value = parseCvarValue(value)
	v.Modified = true
	return v
}

func (r *CvarRegistry) SetValue(name string, value float32) *Cvar {
	return r.Set(name, trimFloat(value))
}

// Value returns the float value of a cvar, 0 if unregistered.
func (r *CvarRegistry) Value(name string) float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.vars[name]; ok {
		return v.Value
	}
	return 0
}

// ApplyLatched promotes pending latched values. Called at map load.
func (r *CvarRegistry) ApplyLatched() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vars {
		if !v.hasLatched {
			continue
		}
		v.String = v.latched
		v.Value = parseCvarValue(v.latched)
		v.Modified = true
		v.latched = ""
		v.hasLatched = false
	}
}

// Names returns all registered names, sorted, for the list commands.
func (r *CvarRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.vars))
	for n := range r.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadDefaults reads a TOML file of name = value pairs and applies each as a
// Set. Missing file is not an error; a parse failure is.
func (r *CvarRegistry) LoadDefaults(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cvar defaults %s: %w", path, err)
	}
	for name, val := range raw {
		switch t := val.(type) {
		case string:
			r.Set(name, t)
		case int64:
			r.Set(name, strconv.FormatInt(t, 10))
		case float64:
			r.Set(name, trimFloat(float32(t)))
		case bool:
			if t {
				r.Set(name, "1")
			} else {
				r.Set(name, "0")
			}
		default:
			r.log.Warnf("cvar defaults %s: %s has unusable type %T", path, name, val)
		}
	}
	return nil
}

func parseCvarValue(s string) float32 {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0
	}
	return float32(f)
}

func trimFloat(f float32) string {
	if f == float32(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
