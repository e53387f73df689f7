package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// defaultPrompts seeds the prompt directory and answers when a file is missing.
var defaultPrompts = map[string]string{
	driven.PromptRAGSystem: driven.DefaultRAGSystemPrompt,
	driven.PromptRAGUser:   driven.DefaultRAGUserPrompt,
}

const promptReadme = `# ragline prompts

rag_system.txt  system instruction sent with every question
rag_user.txt    user message; the first %s is the retrieved context,
                the second %s is the question

Edits are picked up on the next query, also by a running server.
A rag_user.txt without exactly two %s verbs is ignored.
Delete a file to restore its default.
`

// cachedPrompt is a file's trimmed text and the modification time it was read at.
type cachedPrompt struct {
	text    string
	modTime time.Time
}

// PromptStore serves prompt templates from text files in a directory.
// A file is re-read when its modification time changes.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]cachedPrompt
}

// NewPromptStore creates a store reading promptDir, by default
// ~/.ragline/prompts. Nothing is written until the first Load.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".ragline", "prompts")
	}
	return &PromptStore{dir: promptDir, cache: make(map[string]cachedPrompt)}, nil
}

// Load returns the named template. Missing or unreadable files fall back to
// the built-in text; names without a built-in fail.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	text, err := s.read(name)
	if err == nil {
		return text, nil
	}
	if def, ok := defaultPrompts[name]; ok {
		return def, nil
	}
	if s.seedErr != nil {
		err = errors.Join(err, s.seedErr)
	}
	return "", fmt.Errorf("load prompt %q: %w", name, err)
}

// Reload forgets every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) read(name string) (string, error) {
	path := filepath.Join(s.dir, name+".txt")
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache[name]; ok && c.modTime.Equal(info.ModTime()) {
		return c.text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	s.cache[name] = cachedPrompt{text: text, modTime: info.ModTime()}
	return text, nil
}

// seed creates the directory with default files and a README, leaving
// existing files alone.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	files := map[string]string{"README.md": promptReadme}
	for name, text := range defaultPrompts {
		files[name+".txt"] = text + "\n"
	}
	for name, text := range files {
		err := writeIfMissing(filepath.Join(s.dir, name), text)
		if err != nil {
			s.seedErr = errors.Join(s.seedErr, err)
		}
	}
}

func writeIfMissing(path, text string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
