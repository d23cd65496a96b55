// Package naming builds KairosDB metric names and tags from collectd
// identifiers. A name template is expanded with the sample's fields and may
// be rewritten by a Formatter registered for the sample's plugin.
package naming

import "strings"

const DefaultTemplate = "collectd.{plugin}.{plugin_instance}.{type}.{type_instance}"

// Template placeholders.
const (
	Host           = "{host}"
	Plugin         = "{plugin}"
	PluginInstance = "{plugin_instance}"
	Type           = "{type}"
	TypeInstance   = "{type_instance}"
)

// Fields identify the source of a sample. Instances are expected to be
// sanitized already.
type Fields struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
}

// Expand substitutes the fields into a template. Unknown placeholders are
// left as is.
func Expand(template string, f Fields) string {
	return strings.NewReplacer(
		Host, f.Host,
		Plugin, f.Plugin,
		PluginInstance, f.PluginInstance,
		Type, f.Type,
		TypeInstance, f.TypeInstance,
	).Replace(template)
}

// Formatter rewrites the name and tags of metrics for the plugins it claims.
// Formatters usually remove a segment such as "{plugin_instance}." from the
// template and carry that field as a tag instead.
type Formatter interface {
	Plugins() []string
	Format(template string, tags map[string]string, f Fields) (string, map[string]string)
}

// FormatterFunc adapts a function to a Formatter claiming the given plugins.
func FormatterFunc(fn func(template string, tags map[string]string, f Fields) (string, map[string]string), plugins ...string) Formatter {
	return funcFormatter{fn: fn, plugins: plugins}
}

type funcFormatter struct {
	fn      func(string, map[string]string, Fields) (string, map[string]string)
	plugins []string
}

func (f funcFormatter) Plugins() []string { return f.plugins }

func (f funcFormatter) Format(template string, tags map[string]string, fields Fields) (string, map[string]string) {
	return f.fn(template, tags, fields)
}
