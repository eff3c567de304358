package judge

import (
	"fmt"
	"strings"

	"codearena/internal/common"
)

// Execution backend language ids for the languages the platform accepts.
// Keep this in sync with the language pack deployed on the judge.
const (
	LangCpp        = 54
	LangGo         = 60
	LangJava       = 62
	LangJavaScript = 63
	LangPython     = 71
)

// ResolveLanguage maps a human-readable language name to the execution
// backend's numeric id. Case-insensitive; fails with ErrUnsupportedLanguage.
func ResolveLanguage(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "c++", "cpp":
		return LangCpp, nil
	case "go", "golang":
		return LangGo, nil
	case "java":
		return LangJava, nil
	case "javascript", "js":
		return LangJavaScript, nil
	case "python", "python3":
		return LangPython, nil
	default:
		return 0, fmt.Errorf("language %q: %w", name, common.ErrUnsupportedLanguage)
	}
}

// SupportedLanguages lists the accepted language names, for API error messages
// and the problem editor.
func SupportedLanguages() []string {
	return []string{"c++", "go", "java", "javascript", "python"}
}
