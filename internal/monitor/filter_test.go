package monitor

import "testing"

func TestFilterRelevantExtensions(t *testing.T) {
	f := NewFilter(nil, nil)

	relevant := []string{
		"src/app.js", "src/App.tsx", "pages/index.vue", "styles/main.scss",
		"widget.svelte", "legacy.htm", "src/util.test.js", "UPPER.JS",
	}
	for _, path := range relevant {
		if !f.Relevant(path) {
			t.Errorf("expected %s to be relevant", path)
		}
	}

	irrelevant := []string{
		"main.go", "README.md", "logo.png", "src/app.js.map", "Makefile", "src/app",
	}
	for _, path := range irrelevant {
		if f.Relevant(path) {
			t.Errorf("expected %s to be irrelevant", path)
		}
	}
}

func TestFilterIgnoredDirectories(t *testing.T) {
	f := NewFilter(nil, nil)

	blocked := []string{
		"node_modules/lodash/index.js",
		"src/node_modules/x/y.css",
		"dist/bundle.js",
		"build/out.css",
		"coverage/report.html",
		"vendor/lib.js",
		".git/hooks/pre-commit.js",
		".next/server/page.js",
	}
	for _, path := range blocked {
		if f.Relevant(path) {
			t.Errorf("expected %s to be filtered out", path)
		}
	}

	if !f.Relevant("src/components/Button.jsx") {
		t.Error("expected nested source file to be relevant")
	}
	// Hidden files are not hidden directories.
	if !f.Relevant(".eslintrc.js") {
		t.Error("expected dotfile with relevant extension to pass")
	}
}

func TestFilterCustomLists(t *testing.T) {
	f := NewFilter([]string{"js", ".TS", " css "}, []string{"generated"})

	if !f.Relevant("a.js") || !f.Relevant("b.ts") || !f.Relevant("c.css") {
		t.Error("expected normalized custom extensions to match")
	}
	if f.Relevant("page.html") {
		t.Error("expected html to be excluded by custom extension list")
	}
	if f.Relevant("generated/a.js") {
		t.Error("expected custom ignore dir to apply")
	}
	// Custom list replaces the defaults for named dirs, hidden stays out.
	if !f.Relevant("node_modules/a.js") {
		t.Error("expected default ignore list to be replaced")
	}
	if f.Relevant(".cache/a.js") {
		t.Error("expected hidden directories to stay excluded")
	}
}

func TestIgnoredDir(t *testing.T) {
	f := NewFilter(nil, nil)

	for _, name := range []string{"node_modules", ".git", "dist", "build", "coverage", "vendor", ".cache", ".next"} {
		if !f.IgnoredDir(name) {
			t.Errorf("expected %s to be ignored", name)
		}
	}
	for _, name := range []string{"src", "components", "pages"} {
		if f.IgnoredDir(name) {
			t.Errorf("expected %s not to be ignored", name)
		}
	}
}
