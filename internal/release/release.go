// Package release interprets compiler release metadata: version
// parsing and comparison, release note summaries, and migration hints
// relative to an installed compiler version.
package release

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"compactmcp/internal/github"
)

// Version is a parsed semantic version.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 ordering v against o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts a version from a tag or free-form string.
// Tag prefixes like `v` or `compact-v` are tolerated.
func ParseVersion(s string) (Version, bool) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	return Version{Major: major, Minor: minor, Patch: patch}, true
}

// Note is one release, parsed.
type Note struct {
	Version   Version   `json:"version"`
	Tag       string    `json:"tag"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Published time.Time `json:"published,omitempty"`
	Breaking  bool      `json:"breaking"`
}

var breakingRe = regexp.MustCompile(`(?im)^#*\s*breaking\b|\bbreaking change`)

// FromRelease parses one GitHub release into a Note. Releases whose
// tag carries no version number are skipped.
func FromRelease(r github.Release) (Note, bool) {
	v, ok := ParseVersion(r.TagName)
	if !ok {
		v, ok = ParseVersion(r.Name)
	}
	if !ok {
		return Note{}, false
	}
	title := r.Name
	if title == "" {
		title = r.TagName
	}
	return Note{
		Version:   v,
		Tag:       r.TagName,
		Title:     title,
		Body:      r.Body,
		Published: r.PublishedAt,
		Breaking:  breakingRe.MatchString(r.Body),
	}, true
}

// Parse converts a release list into notes, newest version first.
// Prereleases and unversioned tags are dropped.
func Parse(releases []github.Release) []Note {
	notes := make([]Note, 0, len(releases))
	for _, r := range releases {
		if r.Prerelease {
			continue
		}
		if n, ok := FromRelease(r); ok {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].Version.Compare(notes[j].Version) > 0
	})
	return notes
}

// Latest returns the newest note, or false for an empty list.
func Latest(notes []Note) (Note, bool) {
	if len(notes) == 0 {
		return Note{}, false
	}
	return notes[0], true
}

// MigrationHints describes what changed between the installed compiler
// version and the newest release. The empty slice means up to date.
func MigrationHints(installed Version, notes []Note) []string {
	var hints []string
	var newer []Note
	for _, n := range notes {
		if n.Version.Compare(installed) > 0 {
			newer = append(newer, n)
		}
	}
	if len(newer) == 0 {
		return nil
	}

	latest := newer[0]
	hints = append(hints, fmt.Sprintf("Installed compiler is %s; the latest release is %s (%d release(s) behind).",
		installed, latest.Version, len(newer)))
	for _, n := range newer {
		if n.Breaking {
			hints = append(hints, fmt.Sprintf("Version %s contains breaking changes; review its notes before upgrading: %s",
				n.Version, firstSentence(n.Body)))
		}
	}
	return hints
}

// firstSentence trims a note body to its first sentence or line.
func firstSentence(body string) string {
	body = strings.TrimSpace(body)
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[:idx]
	}
	if idx := strings.Index(body, ". "); idx >= 0 {
		body = body[:idx+1]
	}
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return body
}
