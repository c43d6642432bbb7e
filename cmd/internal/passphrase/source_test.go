package passphrase

import (
	"bytes"
	"errors"
	"testing"
)

func newTestSource(env map[string]string, tty bool, typed string) *Source {
	s := NewSource(DefaultEnv, "operator keystore")
	s.lookup = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTTY = func() bool { return tty }
	s.readPass = func() ([]byte, error) {
		if typed == "" {
			return nil, errors.New("no input")
		}
		return []byte(typed), nil
	}
	s.prompt = &bytes.Buffer{}
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := newTestSource(map[string]string{DefaultEnv: " secret "}, true, "typed")
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != " secret " {
		t.Fatalf("expected env value verbatim, got %q", got)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	s := newTestSource(map[string]string{DefaultEnv: "   "}, true, "typed")
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error for blank env passphrase")
	}
}

func TestSourcePromptsOnTerminal(t *testing.T) {
	s := newTestSource(nil, true, "typed")
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "typed" {
		t.Fatalf("unexpected passphrase %q", got)
	}
	prompt := s.prompt.(*bytes.Buffer).String()
	if prompt == "" {
		t.Fatalf("expected a prompt to be written")
	}
	// Cached after the first call.
	s.readPass = func() ([]byte, error) { return []byte("other"), nil }
	if again, _ := s.Get(); again != "typed" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	s := newTestSource(nil, false, "")
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error without env or terminal")
	}
}
