package quiz

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/quizmatch/internal/dependencies/random"
)

//go:embed questions.yaml
var defaultQuestions []byte

// Errors
var (
	ErrEmptyBank       = errors.New("question bank is empty")
	ErrInvalidQuestion = errors.New("question text must not be empty")
)

// Question is a single true/false prompt
type Question struct {
	Text   string `yaml:"text"`
	Answer bool   `yaml:"answer"`
}

type bankFile struct {
	Questions []Question `yaml:"questions"`
}

// Bank holds the loaded question set
type Bank struct {
	mu        sync.RWMutex
	questions []Question
}

// NewBank creates an empty Bank
func NewBank() *Bank {
	return &Bank{}
}

// LoadDefault loads the built-in question set
func (b *Bank) LoadDefault() error {
	return b.LoadBytes(defaultQuestions)
}

// LoadFromFile loads a YAML question set from path
func (b *Bank) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading question bank: %w", err)
	}
	return b.LoadBytes(data)
}

// LoadBytes parses a YAML question set, replacing the current one
func (b *Bank) LoadBytes(data []byte) error {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing question bank: %w", err)
	}
	return b.LoadQuestions(file.Questions)
}

// LoadQuestions directly loads a slice of questions (useful for testing)
func (b *Bank) LoadQuestions(questions []Question) error {
	if len(questions) == 0 {
		return ErrEmptyBank
	}
	loaded := make([]Question, 0, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return fmt.Errorf("%w: entry %d", ErrInvalidQuestion, i)
		}
		loaded = append(loaded, q)
	}

	b.mu.Lock()
	b.questions = loaded
	b.mu.Unlock()
	return nil
}

// Len returns the number of loaded questions
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

// Pick returns up to n distinct questions in random order
func (b *Bank) Pick(rng random.Random, n int) []Question {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > len(b.questions) {
		n = len(b.questions)
	}
	perm := rng.Perm(len(b.questions))
	picked := make([]Question, 0, n)
	for _, i := range perm[:n] {
		picked = append(picked, b.questions[i])
	}
	return picked
}
