package automation

import (
	"encoding/json"

	"trafficlens/internal/domain"
)

// EnumerateTargets scans a store snapshot (most-recent-first) for action
// URLs matching the profile's resource pattern. Each resource appears once;
// the newest capture wins, and its request body decides whether the action
// was already observed complete.
func EnumerateTargets(txs []domain.Transaction, p Profile) ([]domain.AutomationTarget, error) {
	re, err := p.resourceRe()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var targets []domain.AutomationTarget
	for _, tx := range txs {
		if !matchHost(tx.Host, p.HostSuffix) {
			continue
		}
		m := re.FindStringSubmatch(tx.URL)
		if m == nil {
			continue
		}
		resourceID := m[1]
		if _, dup := seen[resourceID]; dup {
			continue
		}
		seen[resourceID] = struct{}{}

		part, complete := activityStateFromBody(tx.RequestBody)
		targets = append(targets, domain.AutomationTarget{
			ResourceID:       resourceID,
			Part:             part,
			ObservedComplete: complete,
			SourceURL:        tx.URL,
			Outcome:          domain.OutcomeUnattempted,
		})
	}
	return targets, nil
}

func matchHost(host, suffix string) bool {
	if suffix == "" {
		return true
	}
	if host == suffix {
		return true
	}
	return len(host) > len(suffix) && host[len(host)-len(suffix)-1] == '.' && host[len(host)-len(suffix):] == suffix
}

// activityStateFromBody reads "part" and "complete" from a captured request
// body. A body that does not parse counts as part 0, incomplete.
func activityStateFromBody(body string) (int, bool) {
	if body == "" {
		return 0, false
	}
	var m struct {
		Part     int  `json:"part"`
		Complete bool `json:"complete"`
	}
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return 0, false
	}
	return m.Part, m.Complete
}
