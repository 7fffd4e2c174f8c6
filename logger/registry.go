package logger

import "sync"

var (
	regMu sync.RWMutex
	named = make(map[string]*Logger)
)

// Register stores a logger under the given component name. Later calls
// with the same name replace the earlier entry.
func Register(name string, l *Logger) {
	regMu.Lock()
	named[name] = l
	regMu.Unlock()
}

// Get returns the logger registered under name. Unregistered names fall
// back to the global logger tagged with that component, so call sites do
// not need to care whether RegisterDefaults ran.
func Get(name string) *Logger {
	regMu.RLock()
	l, ok := named[name]
	regMu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults seeds the registry with component loggers derived from
// the global logger. Call it once after Init.
func RegisterDefaults(names ...string) {
	for _, name := range names {
		Register(name, GetGlobalLogger().WithComponent(name))
	}
}
