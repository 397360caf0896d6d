package lib

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/denormal/go-gitignore"
)

// IgnoreFilename is the name of the file, placed in the downloads directory,
// containing user-defined exclusion patterns. Matched paths are skipped by
// discovery and therefore can never be deleted.
const IgnoreFilename = ".modsweepignore"

// defaultIgnorePatterns are always excluded from discovery.
var defaultIgnorePatterns = []string{
	IgnoreFilename,
}

var (
	// ignoreCache stores compiled gitignore.GitIgnore objects to avoid
	// re-reading and re-parsing the ignore file. The key is the canonical
	// absolute path to a directory. Access is serialized by a global mutex
	// because the gitignore library is not safe for concurrent use.
	ignoreCache = make(map[string]gitignore.GitIgnore)
	cacheMutex  = &sync.Mutex{}
)

// IsPathIgnored checks whether a path under baseDir matches the exclusion
// rules for that directory. Rules are compiled once per base directory and
// cached for the rest of the run.
func IsPathIgnored(baseDir, path string) bool {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	// Both arguments to filepath.Rel must use the same canonical pathing.
	canonicalBaseDir, err := filepath.EvalSymlinks(baseDir)
	if err != nil {
		canonicalBaseDir = baseDir
	}

	matcher, found := ignoreCache[canonicalBaseDir]
	if !found {
		matcher = loadIgnoreMatcher(canonicalBaseDir)
		ignoreCache[canonicalBaseDir] = matcher
	}

	canonicalPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		canonicalPath = path
	}

	relativePath, err := filepath.Rel(canonicalBaseDir, canonicalPath)
	if err != nil {
		// If the relative path can't be determined, it's safest not to ignore.
		return false
	}
	// The gitignore library expects forward-slash separators, even on Windows.
	slashedPath := filepath.ToSlash(relativePath)

	match := matcher.Match(slashedPath)
	if match == nil {
		match = matcher.Match(canonicalPath)
	}
	if match == nil {
		return false
	}
	return match.Ignore()
}

// loadIgnoreMatcher compiles the default patterns plus the contents of the
// directory's ignore file, if present, into a gitignore matcher.
func loadIgnoreMatcher(baseDir string) gitignore.GitIgnore {
	rawPatterns := make([]string, len(defaultIgnorePatterns))
	copy(rawPatterns, defaultIgnorePatterns)

	ignoreFilePath := filepath.Join(baseDir, IgnoreFilename)
	if _, err := os.Stat(ignoreFilePath); err == nil {
		content, err := os.ReadFile(ignoreFilePath)
		if err == nil {
			rawPatterns = append(rawPatterns, strings.Split(string(content), "\n")...)
		}
	}

	var finalPatterns []string
	for _, p := range rawPatterns {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		// Normalize Windows-style backslashes for cross-platform patterns.
		trimmed = strings.ReplaceAll(trimmed, "\\", "/")

		// Directory patterns (trailing slash) become glob patterns so they
		// match the files inside the directory.
		if strings.HasSuffix(trimmed, "/") && !strings.HasSuffix(trimmed, "**/") {
			trimmed = trimmed + "**"
		}
		finalPatterns = append(finalPatterns, trimmed)
	}

	reader := strings.NewReader(strings.Join(finalPatterns, "\n"))
	matcher := gitignore.New(
		reader,
		baseDir,
		// Continue parsing on error.
		func(err gitignore.Error) bool { return false },
	)

	// If the matcher fails to compile, fall back to one that ignores nothing.
	if matcher == nil {
		return gitignore.New(strings.NewReader(""), "", nil)
	}

	return matcher
}

// ResetIgnoreState clears the ignore cache. This is used for testing.
func ResetIgnoreState() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	ignoreCache = make(map[string]gitignore.GitIgnore)
}
