package types

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed types.db
var defaultTypesDB string

// Default returns a registry of the common collectd types, used when no
// types.db is configured.
func Default() *Registry {
	reg := NewRegistry()
	// embedded file is known good
	_ = Parse(strings.NewReader(defaultTypesDB), reg, zap.NewNop())
	return reg
}

// LoadFiles parses each types.db file into one registry. Later files
// override types defined by earlier ones.
func LoadFiles(logger *zap.Logger, paths ...string) (*Registry, error) {
	reg := NewRegistry()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open types.db: %w", err)
		}
		err = Parse(f, reg, logger.With(zap.String("file", path)))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return reg, nil
}

// Parse reads lines of the form
//
//	if_packets  rx:DERIVE:0:U, tx:DERIVE:0:U
//
// into reg. Comment lines and lines without data sources are skipped. A data
// source that cannot be parsed is dropped with a warning and the rest of the
// type is kept.
func Parse(r io.Reader, reg *Registry, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		if strings.HasPrefix(name, "#") {
			continue
		}
		sources := make([]DataSource, 0, len(fields)-1)
		for _, field := range fields[1:] {
			field = strings.TrimRight(field, ",")
			ds, err := parseDataSource(field)
			if err != nil {
				logger.Warn("cannot parse data source",
					zap.String("type", name), zap.String("ds", field), zap.Error(err))
				continue
			}
			sources = append(sources, ds)
		}
		reg.Add(name, sources...)
	}
	return scanner.Err()
}

func parseDataSource(s string) (DataSource, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return DataSource{}, fmt.Errorf("expected name:kind:min:max, got %d fields", len(parts))
	}
	kind, err := ParseKind(parts[1])
	if err != nil {
		return DataSource{}, err
	}
	return DataSource{
		Name: parts[0],
		Kind: kind,
		Min:  parseLimit(parts[2]),
		Max:  parseLimit(parts[3]),
	}, nil
}

// Limits that are not numbers, such as U for unlimited, are 0.
func parseLimit(s string) float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
