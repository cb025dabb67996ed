// Package feature answers whether an optional behavior is switched on.
package feature

import (
	"strings"

	"go.uber.org/zap"
)

// Flag is a dotted path into the features block of the config file
type Flag string

const (
	NotificationsEnabled    Flag = "notifications.enabled"
	NotificationsEscalation Flag = "notifications.escalation"
	NotificationsDigest     Flag = "notifications.digest"
	AnalyticsEnabled        Flag = "analytics.enabled"
	AnalyticsConversations  Flag = "analytics.conversations"
	EscalationAutoTransfer  Flag = "escalation.autoTransfer"
)

// Known lists every flag the service reads
var Known = []Flag{
	NotificationsEnabled,
	NotificationsEscalation,
	NotificationsDigest,
	AnalyticsEnabled,
	AnalyticsConversations,
	EscalationAutoTransfer,
}

// Defaults is used for flags absent from the config
var Defaults = map[Flag]bool{
	NotificationsEnabled:    true,
	NotificationsEscalation: true,
	NotificationsDigest:     false,
	AnalyticsEnabled:        true,
	AnalyticsConversations:  true,
	EscalationAutoTransfer:  false,
}

// Gate is immutable once built and safe for concurrent use
type Gate struct {
	tree map[string]any
}

// New builds a gate from the nested features map decoded from YAML.
// Flags missing from tree take their default; paths that are not known flags are logged and kept
// so Lookup still answers for them.
func New(tree map[string]any, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{tree: map[string]any{}}
	for f, on := range Defaults {
		g.set(string(f), on)
	}

	known := make(map[string]bool, len(Known))
	for _, f := range Known {
		known[string(f)] = true
	}
	flatten("", tree, func(path string, v any) {
		on, ok := v.(bool)
		if !ok {
			logger.Warn("ignoring non boolean feature", zap.String("path", path))
			return
		}
		if !known[path] {
			logger.Warn("unknown feature flag", zap.String("path", path))
		}
		g.set(path, on)
	})
	return g
}

// FromFlags builds a gate from explicit values on top of the defaults, used by tests
func FromFlags(values map[Flag]bool) *Gate {
	g := &Gate{tree: map[string]any{}}
	for f, on := range Defaults {
		g.set(string(f), on)
	}
	for f, on := range values {
		g.set(string(f), on)
	}
	return g
}

func (g *Gate) IsEnabled(f Flag) bool {
	return g.Lookup(string(f))
}

// Lookup resolves a dotted path. It is total: missing segments, intermediate leaves and
// non boolean values all answer false.
func (g *Gate) Lookup(path string) bool {
	if g == nil || path == "" {
		return false
	}
	var node any = g.tree
	for _, seg := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return false
		}
		if node, ok = m[seg]; !ok {
			return false
		}
	}
	on, _ := node.(bool)
	return on
}

// Snapshot returns the value of every known flag
func (g *Gate) Snapshot() map[Flag]bool {
	out := make(map[Flag]bool, len(Known))
	for _, f := range Known {
		out[f] = g.IsEnabled(f)
	}
	return out
}

func (g *Gate) set(path string, on bool) {
	segs := strings.Split(path, ".")
	node := g.tree
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[seg] = next
		}
		node = next
	}
	node[segs[len(segs)-1]] = on
}

func flatten(prefix string, tree map[string]any, fn func(path string, v any)) {
	for k, v := range tree {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(path, sub, fn)
			continue
		}
		fn(path, v)
	}
}
