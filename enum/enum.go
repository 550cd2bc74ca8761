package enum

import (
	"strings"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Registry maps enum aliases to declared enum value names, per enum type.
// The zero value is not usable; create one with NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	aliases map[protoreflect.FullName]map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{aliases: make(map[protoreflect.FullName]map[string]string)}
}

// Register adds aliases for an enum.
// enumName: the fully-qualified enum name (e.g., "scan.v1.ScanType")
// aliases: map of alias to declared value name (e.g., {"syn": "SYN_SCAN"})
func (r *Registry) Register(enumName protoreflect.FullName, aliases map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aliases[enumName] == nil {
		r.aliases[enumName] = make(map[string]string, len(aliases))
	}

	// Store aliases with lowercase keys for case-insensitive lookup
	for alias, valueName := range aliases {
		r.aliases[enumName][strings.ToLower(alias)] = valueName
	}
}

// RegisterBatch registers aliases for several enums at once.
func (r *Registry) RegisterBatch(enumAliases map[protoreflect.FullName]map[string]string) {
	for enumName, aliases := range enumAliases {
		r.Register(enumName, aliases)
	}
}

// ResolveEnumAlias returns the declared value name registered for alias.
// It implements protodict.EnumAliasResolver.
func (r *Registry) ResolveEnumAlias(enumName protoreflect.FullName, alias string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	valueName, found := r.aliases[enumName][strings.ToLower(alias)]
	return valueName, found
}

// Mappings returns a copy of the aliases registered for an enum.
// Returns nil if the enum has no registered aliases.
func (r *Registry) Mappings(enumName protoreflect.FullName) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	aliases, exists := r.aliases[enumName]
	if !exists {
		return nil
	}

	result := make(map[string]string, len(aliases))
	for alias, valueName := range aliases {
		result[alias] = valueName
	}
	return result
}

// Clear removes every registered alias.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.aliases = make(map[protoreflect.FullName]map[string]string)
}

// defaultRegistry backs the package-level functions.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package-level functions.
func Default() *Registry {
	return defaultRegistry
}

// Register adds aliases for an enum to the default registry.
func Register(enumName protoreflect.FullName, aliases map[string]string) {
	defaultRegistry.Register(enumName, aliases)
}

// RegisterBatch registers aliases for several enums in the default registry.
func RegisterBatch(enumAliases map[protoreflect.FullName]map[string]string) {
	defaultRegistry.RegisterBatch(enumAliases)
}

// GetMappings returns a copy of the default registry's aliases for an enum.
func GetMappings(enumName protoreflect.FullName) map[string]string {
	return defaultRegistry.Mappings(enumName)
}

// Clear resets the default registry.
// This is primarily useful for testing.
func Clear() {
	defaultRegistry.Clear()
}
