package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/quizmatch/internal/dependencies/mocks"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage/memory"
	"github.com/mcoot/quizmatch/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, testutil.NopLogger(), Config{BcryptCost: bcrypt.MinCost})
	s.ctx = context.Background()
}

// CreateAccount tests

func (s *ServiceSuite) TestCreateAccountSucceeds() {
	err := s.service.CreateAccount(s.ctx, "alice", "password123")
	s.Require().NoError(err)

	player, err := s.storage.GetPlayer(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.DefaultRank, player.Rank)
	s.NotEqual("password123", player.PasswordHash) // Should be hashed
	s.Equal(s.clock.Now(), player.CreatedAt)
}

func (s *ServiceSuite) TestCreateAccountDuplicateFails() {
	_ = s.service.CreateAccount(s.ctx, "alice", "password123")

	err := s.service.CreateAccount(s.ctx, "alice", "other")
	s.ErrorIs(err, ErrUsernameExists)
}

func (s *ServiceSuite) TestCreateAccountRejectsInvalidUsername() {
	s.ErrorIs(s.service.CreateAccount(s.ctx, "", "pw"), ErrInvalidUsername)
	s.ErrorIs(s.service.CreateAccount(s.ctx, "al ice", "pw"), ErrInvalidUsername)
}

func (s *ServiceSuite) TestCreateAccountRejectsInvalidPassword() {
	s.ErrorIs(s.service.CreateAccount(s.ctx, "alice", ""), ErrInvalidPassword)
	s.ErrorIs(s.service.CreateAccount(s.ctx, "alice", "pass word"), ErrInvalidPassword)
}

// Authenticate tests

func (s *ServiceSuite) TestAuthenticateWithCorrectPassword() {
	_ = s.service.CreateAccount(s.ctx, "alice", "password123")

	s.NoError(s.service.Authenticate(s.ctx, "alice", "password123"))
}

func (s *ServiceSuite) TestAuthenticateWithWrongPassword() {
	_ = s.service.CreateAccount(s.ctx, "alice", "password123")

	err := s.service.Authenticate(s.ctx, "alice", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestAuthenticateUnknownUser() {
	err := s.service.Authenticate(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestConcurrentAuthenticationForDistinctUsers() {
	_ = s.service.CreateAccount(s.ctx, "alice", "pw-alice")
	_ = s.service.CreateAccount(s.ctx, "bob", "pw-bob")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = s.service.Authenticate(s.ctx, "alice", "pw-alice")
	}()
	go func() {
		defer wg.Done()
		errs[1] = s.service.Authenticate(s.ctx, "bob", "pw-bob")
	}()
	wg.Wait()

	s.NoError(errs[0])
	s.NoError(errs[1])
}

// Rank tests

func (s *ServiceSuite) TestGetRankReturnsDefaultForNewAccount() {
	_ = s.service.CreateAccount(s.ctx, "alice", "pw")

	rank, err := s.service.GetRank(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.DefaultRank, rank)
}

func (s *ServiceSuite) TestGetRankUnknownUser() {
	_, err := s.service.GetRank(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestAddRankPersists() {
	_ = s.service.CreateAccount(s.ctx, "alice", "pw")
	s.clock.Advance(time.Minute)

	rank, err := s.service.AddRank(s.ctx, "alice", 30)
	s.Require().NoError(err)
	s.Equal(130, rank)

	player, _ := s.storage.GetPlayer(s.ctx, "alice")
	s.Equal(130, player.Rank)
	s.Equal(s.clock.Now(), player.UpdatedAt)
}

func (s *ServiceSuite) TestConcurrentAddRankLosesNoUpdates() {
	_ = s.service.CreateAccount(s.ctx, "alice", "pw")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.service.AddRank(s.ctx, "alice", 1)
		}()
	}
	wg.Wait()

	rank, _ := s.service.GetRank(s.ctx, "alice")
	s.Equal(model.DefaultRank+20, rank)
}

// Session token tests

func (s *ServiceSuite) TestIssuedTokenResolves() {
	_ = s.service.CreateAccount(s.ctx, "alice", "pw")

	token, err := s.service.IssueSessionToken(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEmpty(token)

	username, err := s.service.ResolveSessionToken(s.ctx, token)
	s.Require().NoError(err)
	s.Equal("alice", username)
}

func (s *ServiceSuite) TestTokenStoredAsDigest() {
	_ = s.service.CreateAccount(s.ctx, "alice", "pw")
	token, _ := s.service.IssueSessionToken(s.ctx, "alice")

	player, _ := s.storage.GetPlayer(s.ctx, "alice")
	s.NotEmpty(player.SessionTokenHash)
	s.NotEqual(token, player.SessionTokenHash)
}

func (s *ServiceSuite) TestReissueInvalidatesPreviousToken() {
	_ = s.service.CreateAccount(s.ctx, "alice", "pw")
	first, _ := s.service.IssueSessionToken(s.ctx, "alice")
	second, _ := s.service.IssueSessionToken(s.ctx, "alice")

	s.NotEqual(first, second)

	_, err := s.service.ResolveSessionToken(s.ctx, first)
	s.ErrorIs(err, ErrInvalidSession)

	username, err := s.service.ResolveSessionToken(s.ctx, second)
	s.Require().NoError(err)
	s.Equal("alice", username)
}

func (s *ServiceSuite) TestResolveGarbageToken() {
	_, err := s.service.ResolveSessionToken(s.ctx, "not-a-token")
	s.ErrorIs(err, ErrInvalidSession)

	_, err = s.service.ResolveSessionToken(s.ctx, "  ")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestIssueTokenUnknownUser() {
	_, err := s.service.IssueSessionToken(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Online set tests

func (s *ServiceSuite) TestClaimAndRelease() {
	s.Require().NoError(s.service.Claim("alice"))
	s.True(s.service.IsOnline("alice"))
	s.Equal(1, s.service.OnlineCount())

	s.ErrorIs(s.service.Claim("alice"), ErrAlreadyLoggedIn)

	s.service.Release("alice")
	s.False(s.service.IsOnline("alice"))
	s.NoError(s.service.Claim("alice"))
}
