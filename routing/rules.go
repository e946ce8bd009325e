package routing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a rule set.
//
//	rules:
//	  - capability: weather
//	    keywords: [weather, forecast, temperature]
//	  - capability: calculator
//	    keywords: [calculate, compute]
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadDirectory loads every *.yaml/*.yml rule file under dir and appends
// the rules in file-name order (so priority is predictable). A malformed
// file is logged and skipped; it never aborts loading of the others.
// A missing directory is not an error - no rules are defined yet.
func (r *Router) LoadDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read rules directory %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		n, err := r.loadRuleFile(path)
		if err != nil {
			r.logger.Warn("Skipping unreadable rule file", map[string]interface{}{
				"operation": "router_load_rules",
				"file":      path,
				"error":     err.Error(),
			})
			continue
		}
		loaded += n
	}

	r.logger.Info("Intent rules loaded", map[string]interface{}{
		"operation": "router_load_rules",
		"directory": dir,
		"rules":     loaded,
	})
	return loaded, nil
}

func (r *Router) loadRuleFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse rule file: %w", err)
	}

	loaded := 0
	for _, rule := range file.Rules {
		if err := r.AddRule(rule); err != nil {
			r.logger.Warn("Skipping invalid rule", map[string]interface{}{
				"operation":  "router_load_rules",
				"file":       path,
				"capability": rule.Capability,
				"error":      err.Error(),
			})
			continue
		}
		loaded++
	}
	return loaded, nil
}
