package fetcher

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

type getFunc func(ctx context.Context, rawURL string) (*http.Response, error)

// RobotsPolicy answers whether a listing page may be fetched according to
// its host's robots.txt. Rules are fetched once per host and cached. An
// unreachable or missing robots.txt allows everything.
type RobotsPolicy struct {
	get    getFunc
	mu     sync.Mutex
	rules  map[string]*robotsRules
	logger *slog.Logger
}

type robotsRules struct {
	allow    []string
	disallow []string
}

// NewRobotsPolicy creates a policy that downloads robots.txt with get.
func NewRobotsPolicy(get getFunc, logger *slog.Logger) *RobotsPolicy {
	return &RobotsPolicy{
		get:    get,
		rules:  make(map[string]*robotsRules),
		logger: logger.With("component", "robots"),
	}
}

// Allowed reports whether rawURL may be fetched.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	rules := p.rulesFor(ctx, u.Scheme+"://"+u.Host)
	if rules == nil {
		return true
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return rules.allows(target)
}

func (p *RobotsPolicy) rulesFor(ctx context.Context, origin string) *robotsRules {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rules, ok := p.rules[origin]; ok {
		return rules
	}

	var rules *robotsRules
	resp, err := p.get(ctx, origin+"/robots.txt")
	if err != nil {
		p.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
	} else {
		if resp.StatusCode == http.StatusOK {
			rules = parseRobots(io.LimitReader(resp.Body, 512*1024))
		}
		resp.Body.Close()
	}

	p.rules[origin] = rules
	return rules
}

// parseRobots keeps the rules of the "*" group.
func parseRobots(r io.Reader) *robotsRules {
	rules := &robotsRules{}
	inGroup := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			inGroup = value == "*"
		case "allow":
			if inGroup && value != "" {
				rules.allow = append(rules.allow, value)
			}
		case "disallow":
			if inGroup && value != "" {
				rules.disallow = append(rules.disallow, value)
			}
		}
	}
	return rules
}

// allows applies longest-match precedence; ties go to allow.
func (r *robotsRules) allows(target string) bool {
	best, allowed := -1, true
	for _, pattern := range r.allow {
		if n := matchLength(pattern, target); n > best {
			best, allowed = n, true
		}
	}
	for _, pattern := range r.disallow {
		if n := matchLength(pattern, target); n > best {
			best, allowed = n, false
		}
	}
	return allowed
}

// matchLength returns len(pattern) when pattern matches the start of target,
// honoring "*" wildcards and a trailing "$" anchor, and -1 otherwise.
func matchLength(pattern, target string) int {
	anchored := strings.HasSuffix(pattern, "$")
	body := strings.TrimSuffix(pattern, "$")

	parts := strings.Split(body, "*")
	if !strings.HasPrefix(target, parts[0]) {
		return -1
	}
	pos := len(parts[0])
	last := len(parts) - 1

	if anchored && last == 0 {
		if pos != len(target) {
			return -1
		}
		return len(pattern)
	}

	// With an anchor the final segment has to sit at the end of target, so
	// only the segments before it are matched leftmost.
	middle := parts[1:]
	if anchored {
		middle = parts[1:last]
	}
	for _, part := range middle {
		idx := strings.Index(target[pos:], part)
		if idx < 0 {
			return -1
		}
		pos += idx + len(part)
	}
	if anchored {
		tail := parts[last]
		if !strings.HasSuffix(target, tail) || len(target)-len(tail) < pos {
			return -1
		}
	}
	return len(pattern)
}
