// Package formatters provides ready made naming.Formatters and loads rule
// based ones from YAML files.
package formatters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juvenn/kairosdb-writer/naming"
)

var builtin = map[string]func() naming.Formatter{
	"cpu":            func() naming.Formatter { return CPU{} },
	"cassandra":      func() naming.Formatter { return ColumnFamily{} },
	"disk-interface": func() naming.Formatter { return DiskInterface{} },
}

// Lookup returns a new instance of the builtin formatter registered as name.
func Lookup(name string) (naming.Formatter, bool) {
	mk, ok := builtin[name]
	if !ok {
		return nil, false
	}
	return mk(), true
}

// Names lists the builtin formatters.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load resolves a formatter reference from configuration: the name of a
// builtin formatter, or the path of a YAML rule file holding one rule.
func Load(ref string) (naming.Formatter, error) {
	if f, ok := Lookup(ref); ok {
		return f, nil
	}
	rules, err := loadRuleFile(ref)
	if err != nil {
		return nil, fmt.Errorf("could not load formatter %s: %w", ref, err)
	}
	if len(rules) != 1 {
		return nil, fmt.Errorf("could not load formatter %s: expected one rule, found %d", ref, len(rules))
	}
	return rules[0], nil
}

// removeSegment deletes a placeholder together with the separator that
// follows it.
func removeSegment(template, placeholder string) string {
	if strings.Contains(template, placeholder+".") {
		return strings.ReplaceAll(template, placeholder+".", "")
	}
	return strings.ReplaceAll(template, placeholder, "")
}

// CPU reports cpu time under one utilization metric, carrying the cpu number
// and the cpu state as tags.
type CPU struct{}

func (CPU) Plugins() []string { return []string{"cpu"} }

func (CPU) Format(template string, tags map[string]string, f naming.Fields) (string, map[string]string) {
	if f.Plugin == "cpu" {
		template = removeSegment(template, naming.PluginInstance)
		template = removeSegment(template, naming.Type)
		tags["cpu"] = f.PluginInstance
		tags["type"] = f.TypeInstance
		f.TypeInstance = "utilization"
	}
	return naming.Expand(template, f), tags
}

// ColumnFamily is for Cassandra JMX metrics collected per column family
// under the plugin name column_family. The column family moves into a tag and
// the metrics are reported under the cassandra plugin.
type ColumnFamily struct{}

func (ColumnFamily) Plugins() []string { return []string{"column_family"} }

func (ColumnFamily) Format(template string, tags map[string]string, f naming.Fields) (string, map[string]string) {
	if f.Plugin == "column_family" {
		template = removeSegment(template, naming.PluginInstance)
		tags["column_family"] = f.PluginInstance
		f.Plugin = "cassandra"
	}
	return naming.Expand(template, f), tags
}

// DiskInterface tags disk and interface metrics by device. It is meant to be
// used as the global formatter.
type DiskInterface struct{}

func (DiskInterface) Plugins() []string { return []string{"disk", "interface"} }

func (DiskInterface) Format(template string, tags map[string]string, f naming.Fields) (string, map[string]string) {
	switch f.Plugin {
	case "disk":
		template = removeSegment(template, naming.PluginInstance)
		tags["disk"] = f.PluginInstance
	case "interface":
		template = removeSegment(template, naming.TypeInstance)
		tags["interface"] = f.TypeInstance
	}
	return naming.Expand(template, f), tags
}
