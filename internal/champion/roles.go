package champion

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidThresholds = errors.New("invalid champion role thresholds")

// Threshold grants Role once a user holds at least Points.
type Threshold struct {
	Points int
	Role   string
}

// ParseThresholds parses "50:Bronze,150:Silver,400:Gold" into ascending thresholds.
func ParseThresholds(value string) ([]Threshold, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var thresholds []Threshold
	seen := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		points, role, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThresholds, part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(points))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThresholds, part)
		}
		role = strings.TrimSpace(role)
		if role == "" || seen[role] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThresholds, part)
		}
		seen[role] = true
		thresholds = append(thresholds, Threshold{Points: n, Role: role})
	}

	sort.SliceStable(thresholds, func(i, j int) bool { return thresholds[i].Points < thresholds[j].Points })
	return thresholds, nil
}

// RoleFor returns the highest role reached by total, or "".
func RoleFor(thresholds []Threshold, total int) string {
	role := ""
	for _, t := range thresholds {
		if total >= t.Points {
			role = t.Role
		}
	}
	return role
}

// RoleNames lists every configured role.
func RoleNames(thresholds []Threshold) []string {
	names := make([]string, 0, len(thresholds))
	for _, t := range thresholds {
		names = append(names, t.Role)
	}
	return names
}
