package guard

import "strings"

// AllSuffixes is the wildcard entry meaning "deliver every extension".
const AllSuffixes = ".*"

// normalizeSuffix lower-cases s and prefixes a missing dot. "*" and ".*"
// both become AllSuffixes. Empty input is rejected.
func normalizeSuffix(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "", false
	case "*", AllSuffixes:
		return AllSuffixes, true
	}
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	return s, true
}

// SuffixSet is an ordered, duplicate-free extension allow-list. When the
// wildcard is present it is the only member.
type SuffixSet struct {
	items []string
}

func (s *SuffixSet) Add(suffix string) {
	v, ok := normalizeSuffix(suffix)
	if !ok {
		return
	}
	if v == AllSuffixes {
		s.items = []string{AllSuffixes}
		return
	}
	if s.IsWildcard() || s.index(v) >= 0 {
		return
	}
	s.items = append(s.items, v)
}

func (s *SuffixSet) AddAll(suffixes []string) {
	for _, v := range suffixes {
		s.Add(v)
	}
}

func (s *SuffixSet) Remove(suffix string) {
	v, ok := normalizeSuffix(suffix)
	if !ok {
		return
	}
	if i := s.index(v); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
}

func (s *SuffixSet) RemoveAll(suffixes []string) {
	for _, v := range suffixes {
		s.Remove(v)
	}
}

func (s *SuffixSet) Clear() { s.items = nil }

// List returns a copy of the entries in insertion order.
func (s *SuffixSet) List() []string {
	return append([]string(nil), s.items...)
}

func (s *SuffixSet) IsWildcard() bool {
	return len(s.items) == 1 && s.items[0] == AllSuffixes
}

// collapse turns the wildcard singleton into the empty set; both mean
// "no filtering".
func (s *SuffixSet) collapse() {
	if s.IsWildcard() {
		s.items = nil
	}
}

func (s *SuffixSet) index(v string) int {
	for i, item := range s.items {
		if item == v {
			return i
		}
	}
	return -1
}

// Match reports whether path passes the filter.
func (s *SuffixSet) Match(path string) bool {
	return newSuffixFilter(s.items).match(path)
}

// suffixFilter is the immutable snapshot the workers read.
type suffixFilter struct {
	all   bool
	items map[string]struct{}
}

func newSuffixFilter(items []string) *suffixFilter {
	f := &suffixFilter{items: make(map[string]struct{}, len(items))}
	for _, v := range items {
		if v == AllSuffixes {
			f.all = true
		}
		f.items[v] = struct{}{}
	}
	if len(items) == 0 {
		f.all = true
	}
	return f
}

func (f *suffixFilter) match(path string) bool {
	if f == nil || f.all {
		return true
	}
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return false
	}
	_, ok := f.items[strings.ToLower(path[i:])]
	return ok
}
