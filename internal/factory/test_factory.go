package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/quizmatch/internal/dependencies/mocks"
	"github.com/mcoot/quizmatch/internal/events"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/services/quiz"
	"github.com/mcoot/quizmatch/internal/storage/memory"
	"github.com/mcoot/quizmatch/internal/testutil"
)

// TestQuestions is the bank loaded by NewTestApp, picked in order
var TestQuestions = []quiz.Question{
	{Text: "The sky is blue", Answer: true},
	{Text: "Fish can fly", Answer: false},
	{Text: "Water is wet", Answer: true},
}

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Recorder   *events.Recorder
}

// TestConfig returns a config with short timeouts suited to tests
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Server.AuthTimeout = 2 * time.Second
	cfg.Heartbeat.Interval = 50 * time.Millisecond
	cfg.Heartbeat.Timeout = 200 * time.Millisecond
	cfg.Quiz.Rounds = len(TestQuestions)
	cfg.Quiz.AnswerTimeout = 2 * time.Second
	cfg.Pool.Workers = 2
	cfg.Pool.QueueSize = 2
	return cfg
}

// NewTestApp creates an App configured for testing with mocked dependencies
// Events are recorded in memory instead of being published
func NewTestApp(cfg Config) (*TestApp, error) {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	recorder := events.NewRecorder(256)

	app, err := newWithDependencies(cfg, testutil.NopLogger(), store, mockClock, mockRandom, metrics.New(), recorder)
	if err != nil {
		return nil, err
	}
	if err := app.Bank.LoadQuestions(TestQuestions); err != nil {
		return nil, err
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Recorder:   recorder,
	}, nil
}
