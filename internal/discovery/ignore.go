package discovery

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultIgnoreFiles are read from the project root when no others are configured.
var DefaultIgnoreFiles = []string{".gitignore"}

// Parser reads gitignore-style files into match rules.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are used when no ignore files are found.
	FallbackPatterns []string
}

// NewParser creates an ignore file parser.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// Rules is an ordered set of ignore rules.
type Rules []rule

// rule is one parsed ignore line.
type rule struct {
	pattern  string
	dirOnly  bool
	anchored bool
}

// ParseProject reads all ignore files from the project root and returns the
// combined rules. If no ignore file exists the fallback patterns are parsed.
func (p *Parser) ParseProject(projectRoot string) (Rules, error) {
	var lines []string
	foundAny := false

	for _, ignoreFile := range p.IgnoreFiles {
		fileLines, err := readLines(filepath.Join(projectRoot, ignoreFile))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		lines = append(lines, fileLines...)
		foundAny = true
	}

	if !foundAny {
		lines = p.FallbackPatterns
	}
	return ParseRules(lines), nil
}

// ParseRules turns gitignore lines into rules, dropping duplicates.
func ParseRules(lines []string) Rules {
	seen := make(map[rule]bool)
	rules := make(Rules, 0, len(lines))
	for _, line := range lines {
		r, ok := parseLine(line)
		if !ok || seen[r] {
			continue
		}
		seen[r] = true
		rules = append(rules, r)
	}
	return rules
}

// Match reports whether the slash-separated path rel, relative to the
// project root, is ignored.
func (rs Rules) Match(rel string, isDir bool) bool {
	for _, r := range rs {
		if r.match(rel, isDir) {
			return true
		}
	}
	return false
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// parseLine parses a single line from a gitignore file. Comments, blank lines
// and negations yield no rule.
func parseLine(line string) (rule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return rule{}, false
	}

	var r rule
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}

	// "**/x" matches x at any depth, same as a bare name.
	line = strings.TrimPrefix(line, "**/")

	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
	}
	if line == "" {
		return rule{}, false
	}

	r.pattern = line
	return r, true
}

func (r rule) match(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	if r.anchored {
		ok, _ := path.Match(r.pattern, rel)
		return ok
	}
	ok, _ := path.Match(r.pattern, path.Base(rel))
	return ok
}
