package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name picked up by auto-discovery.
const FileName = ".webinject.yaml"

// ErrConfigExists is returned by WriteSample when the target already exists
// and overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

// Sample renders cfg as a commented YAML document suitable for a project
// level .webinject.yaml.
func Sample(cfg *Config) ([]byte, error) {
	exts := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, ext := range cfg.Extensions {
		exts.Content = append(exts.Content, scalar(ext))
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, comment string, value *yaml.Node) {
		k := scalar(key)
		k.HeadComment = comment
		doc.Content = append(doc.Content, k, value)
	}

	add("log-level", "Log verbosity: debug, info, warn, error.", scalar(cfg.LogLevel))
	add("log-format", "Log format: text, json.", scalar(cfg.LogFormat))
	add("extensions", "Source files scanned for @inject directives.", exts)
	add("marker", "Self-write suppression: file (<path>.lock) or memory (content hash).", scalar(cfg.Marker))
	add("debounce", "Change notifications within this window are handled as one batch.", scalar(cfg.Debounce.String()))
	add("initial", "Inject every directive once before watching starts.", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(cfg.Initial)})

	if cfg.MinVersion != "" {
		add("min-version", "Semver constraint the webinject binary must satisfy.", scalar(cfg.MinVersion))
	}

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}); err != nil {
		return nil, fmt.Errorf("encoding sample config: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding sample config: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteSample writes Sample(cfg) to dir/.webinject.yaml and returns the
// path written.
func WriteSample(dir string, cfg *Config, force bool) (string, error) {
	path := filepath.Join(dir, FileName)

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s: %w", path, ErrConfigExists)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
	}

	data, err := Sample(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // config is meant to be shared
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return path, nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
