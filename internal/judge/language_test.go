package judge

import (
	"errors"
	"testing"

	"codearena/internal/common"
)

func TestResolveLanguage(t *testing.T) {
	cases := []struct {
		name string
		want int
	}{
		{"c++", LangCpp},
		{"cpp", LangCpp},
		{"CPP", LangCpp},
		{"go", LangGo},
		{"Golang", LangGo},
		{"java", LangJava},
		{"javascript", LangJavaScript},
		{"JS", LangJavaScript},
		{"python", LangPython},
		{"Python3", LangPython},
		{"  python  ", LangPython},
	}
	for _, tc := range cases {
		got, err := ResolveLanguage(tc.name)
		if err != nil {
			t.Errorf("ResolveLanguage(%q) returned error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ResolveLanguage(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestResolveLanguageUnsupported(t *testing.T) {
	for _, name := range []string{"", "brainfuck", "c#", "python2 "} {
		if _, err := ResolveLanguage(name); !errors.Is(err, common.ErrUnsupportedLanguage) {
			t.Errorf("ResolveLanguage(%q) error = %v, want ErrUnsupportedLanguage", name, err)
		}
	}
}

func TestSupportedLanguagesResolve(t *testing.T) {
	for _, name := range SupportedLanguages() {
		if _, err := ResolveLanguage(name); err != nil {
			t.Errorf("advertised language %q does not resolve: %v", name, err)
		}
	}
}
