package naming

import "strings"

// Resolver picks the formatter for a plugin: a formatter claiming the plugin,
// else the global formatter, else plain template expansion. It is immutable
// once built and safe for concurrent use.
type Resolver struct {
	global  Formatter
	plugins map[string]Formatter
}

// NewResolver maps every plugin claimed by the given formatters to its
// formatter. When two formatters claim the same plugin the later one wins.
// global may be nil.
func NewResolver(global Formatter, formatters ...Formatter) *Resolver {
	r := &Resolver{
		global:  global,
		plugins: make(map[string]Formatter),
	}
	for _, f := range formatters {
		for _, plugin := range f.Plugins() {
			r.plugins[plugin] = f
		}
	}
	return r
}

// Formatter returns the formatter that applies to plugin, or nil.
func (r *Resolver) Formatter(plugin string) Formatter {
	if f, ok := r.plugins[plugin]; ok {
		return f
	}
	return r.global
}

// Resolve computes the metric name prefix and tags of a sample. The base tags
// are copied before a formatter sees them.
func (r *Resolver) Resolve(template string, tags map[string]string, f Fields) (string, map[string]string) {
	formatter := r.Formatter(f.Plugin)
	if formatter == nil {
		return DefaultName(template, f), tags
	}
	name, out := formatter.Format(template, copyTags(tags), f)
	if out == nil {
		out = map[string]string{}
	}
	return Clean(name), out
}

// DefaultName expands the template without any formatter.
func DefaultName(template string, f Fields) string {
	return Clean(Expand(template, f))
}

// Clean collapses doubled dots left behind by empty or removed segments and
// strips a trailing dot.
func Clean(name string) string {
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	return strings.TrimRight(name, ".")
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
