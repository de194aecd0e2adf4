package registry

import "testing"

func TestSplitPathGrammar(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"/a/b", true},
		{"a/b", false},
		{"/a/b/", false},
		{"/a//b", false},
		{"/0/b", false},
		{"/10241", false},
		{"/asset/value1", true},
	}
	for _, c := range cases {
		_, ok := splitPath(c.path)
		if ok != c.ok {
			t.Errorf("splitPath(%q) = %v, want %v", c.path, ok, c.ok)
		}
	}
}

func TestIsPathPrefixSegmentBoundary(t *testing.T) {
	if !isPathPrefix("/a/b", "/a/b/c") {
		t.Error("/a/b should be a prefix of /a/b/c")
	}
	if isPathPrefix("/a/b", "/a/bc") {
		t.Error("/a/b should not be a prefix of /a/bc")
	}
	if isPathPrefix("/a/b", "/a/b") {
		t.Error("a path is not a proper prefix of itself")
	}
}

func TestParentPath(t *testing.T) {
	parent, leaf := parentPath("/a/b/c")
	if parent != "/a/b" || leaf != "c" {
		t.Errorf("parentPath(/a/b/c) = (%q, %q)", parent, leaf)
	}
	parent, leaf = parentPath("/a")
	if parent != "" || leaf != "a" {
		t.Errorf("parentPath(/a) = (%q, %q)", parent, leaf)
	}
}
