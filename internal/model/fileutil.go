package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LineContext represents a source line with surrounding context
type LineContext struct {
	Before2    string `json:"before2"`    // Two lines before the target
	Before1    string `json:"before1"`    // Line before the target
	Target     string `json:"target"`     // The actual target line
	After1     string `json:"after1"`     // Line after the target
	After2     string `json:"after2"`     // Two lines after the target
	LineNumber int    `json:"lineNumber"` // Line number of the target
	HasBefore2 bool   `json:"hasBefore2"` // Whether there's a second line before
	HasBefore1 bool   `json:"hasBefore1"` // Whether there's a line before
	HasAfter1  bool   `json:"hasAfter1"`  // Whether there's a line after
	HasAfter2  bool   `json:"hasAfter2"`  // Whether there's a second line after
	ErrorMsg   string `json:"errorMsg,omitempty"`
}

// SourceLines splits source text into lines, dropping a trailing CR per line.
func SourceLines(source string) []string {
	lines := strings.Split(source, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// GetLineContext returns the target line of source with surrounding context
func GetLineContext(source string, lineNumber int) LineContext {
	result := LineContext{
		LineNumber: lineNumber,
	}

	lines := SourceLines(source)

	if lineNumber < 1 || lineNumber > len(lines) {
		result.ErrorMsg = fmt.Sprintf("Line %d out of range (source has %d lines)", lineNumber, len(lines))
		return result
	}

	result.Target = lines[lineNumber-1]

	if lineNumber > 2 {
		result.Before2 = lines[lineNumber-3]
		result.HasBefore2 = true
	}
	if lineNumber > 1 {
		result.Before1 = lines[lineNumber-2]
		result.HasBefore1 = true
	}

	if lineNumber < len(lines) {
		result.After1 = lines[lineNumber]
		result.HasAfter1 = true
	}
	if lineNumber+1 < len(lines) {
		result.After2 = lines[lineNumber+1]
		result.HasAfter2 = true
	}

	return result
}

// ReadSource reads a program from disk, expanding a leading tilde.
func ReadSource(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read source: %w", err)
	}
	return string(data), nil
}

// DetectLanguage guesses the language from a file extension.
func DetectLanguage(path string) (Language, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cpp", ".cc", ".cxx", ".c++", ".hpp", ".h":
		return LanguageCpp, nil
	case ".py":
		return LanguagePython, nil
	}
	return "", fmt.Errorf("cannot infer language from %q, use --lang", path)
}
