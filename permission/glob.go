package permission

import "strings"

// pattern is a compiled resource glob. Matching is anchored at both ends
// and segment aware: a ** segment spans whole path segments while * and ?
// never cross a separator.
type pattern struct {
	segments []segment
}

type segment struct {
	globstar bool
	glob     string
}

func compilePattern(raw string) *pattern {
	parts := strings.Split(raw, "/")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		if part == "**" {
			// Adjacent ** segments collapse; they already span any depth.
			if len(segs) > 0 && segs[len(segs)-1].globstar {
				continue
			}
			segs = append(segs, segment{globstar: true})
			continue
		}
		segs = append(segs, segment{glob: part})
	}
	return &pattern{segments: segs}
}

func (p *pattern) match(resource string) bool {
	return matchSegments(p.segments, strings.Split(resource, "/"))
}

func matchSegments(pat []segment, parts []string) bool {
	if len(pat) == 0 {
		return len(parts) == 0
	}
	if pat[0].globstar {
		for skip := 0; skip <= len(parts); skip++ {
			if matchSegments(pat[1:], parts[skip:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	if !matchSegment(pat[0].glob, parts[0]) {
		return false
	}
	return matchSegments(pat[1:], parts[1:])
}

// matchSegment matches one glob segment against one path segment using
// iterative backtracking over * wildcards.
func matchSegment(pat, s string) bool {
	pi, si := 0, 0
	starPi, starSi := -1, 0

	for si < len(s) {
		switch {
		case pi < len(pat) && (pat[pi] == '?' || pat[pi] == s[si]):
			pi++
			si++
		case pi < len(pat) && pat[pi] == '*':
			starPi, starSi = pi, si
			pi++
		case starPi >= 0:
			starSi++
			pi, si = starPi+1, starSi
		default:
			return false
		}
	}
	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}
