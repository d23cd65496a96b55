package formatters

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/juvenn/kairosdb-writer/naming"
	"gopkg.in/yaml.v3"
)

var placeholders = map[string]string{
	"host":            naming.Host,
	"plugin":          naming.Plugin,
	"plugin_instance": naming.PluginInstance,
	"type":            naming.Type,
	"type_instance":   naming.TypeInstance,
}

// A rule formatter is declared in YAML:
//
//	plugins: [column_family]
//	drop: [plugin_instance]
//	tags:
//	  column_family: "{plugin_instance}"
//	rename:
//	  plugin: cassandra
//
// Tag values are templates over the original fields. Dropped segments are
// removed from the name template, renamed fields are substituted after that.
type Rule struct {
	Name        string            `yaml:"name"`
	PluginNames []string          `yaml:"plugins"`
	Drop        []string          `yaml:"drop"`
	Tags        map[string]string `yaml:"tags"`
	Rename      map[string]string `yaml:"rename"`
}

func (r *Rule) Plugins() []string { return r.PluginNames }

func (r *Rule) Format(template string, tags map[string]string, f naming.Fields) (string, map[string]string) {
	for k, v := range r.Tags {
		tags[k] = naming.Expand(v, f)
	}
	for _, seg := range r.Drop {
		template = removeSegment(template, placeholders[seg])
	}
	for field, v := range r.Rename {
		switch field {
		case "host":
			f.Host = v
		case "plugin":
			f.Plugin = v
		case "plugin_instance":
			f.PluginInstance = v
		case "type":
			f.Type = v
		case "type_instance":
			f.TypeInstance = v
		}
	}
	return naming.Expand(template, f), tags
}

func (r *Rule) validate() error {
	if len(r.PluginNames) == 0 {
		return errors.New("rule claims no plugins")
	}
	for _, seg := range r.Drop {
		if _, ok := placeholders[seg]; !ok {
			return fmt.Errorf("unknown segment %q in drop", seg)
		}
	}
	for field := range r.Rename {
		if _, ok := placeholders[field]; !ok {
			return fmt.Errorf("unknown field %q in rename", field)
		}
	}
	return nil
}

// LoadRules reads rule formatters from files, or from every .yml and .yaml
// file of a directory in lexical order. A file may hold several YAML
// documents, one rule each.
func LoadRules(paths ...string) ([]naming.Formatter, error) {
	var out []naming.Formatter
	for _, path := range paths {
		files, err := ruleFiles(path)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			rules, err := loadRuleFile(file)
			if err != nil {
				return nil, fmt.Errorf("could not load formatter %s: %w", file, err)
			}
			out = append(out, rules...)
		}
	}
	return out, nil
}

func ruleFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not load formatter %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func loadRuleFile(path string) ([]naming.Formatter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rules []naming.Formatter
	dec := yaml.NewDecoder(f)
	for {
		rule := &Rule{}
		err := dec.Decode(rule)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := rule.validate(); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
