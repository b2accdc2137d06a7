package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.SessionTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) newPlayer(username string) *model.Player {
	return &model.Player{
		Username:     username,
		PasswordHash: "hash",
		Rank:         model.DefaultRank,
		CreatedAt:    time.Now(),
	}
}

// Player tests

func (s *StorageSuite) TestCreateAndGetPlayer() {
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, s.newPlayer("alice")))

	retrieved, err := s.storage.GetPlayer(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", retrieved.Username)
	s.Equal("hash", retrieved.PasswordHash)
	s.Equal(model.DefaultRank, retrieved.Rank)
}

func (s *StorageSuite) TestCreatePlayerFailsIfExists() {
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, s.newPlayer("alice")))

	err := s.storage.CreatePlayer(s.ctx, s.newPlayer("alice"))
	s.ErrorIs(err, model.ErrPlayerExists)
}

func (s *StorageSuite) TestGetPlayerNotFound() {
	_, err := s.storage.GetPlayer(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestSavePlayerUpdatesRank() {
	player := s.newPlayer("alice")
	_ = s.storage.CreatePlayer(s.ctx, player)

	player.Rank = 180
	s.Require().NoError(s.storage.SavePlayer(s.ctx, player))

	retrieved, _ := s.storage.GetPlayer(s.ctx, "alice")
	s.Equal(180, retrieved.Rank)
}

func (s *StorageSuite) TestPlayerKeyHasNoTTL() {
	_ = s.storage.CreatePlayer(s.ctx, s.newPlayer("alice"))

	s.Equal(time.Duration(0), s.mini.TTL(playerKey("alice")))
}

// Session token tests

func (s *StorageSuite) TestSetAndResolveSessionTokenHash() {
	_ = s.storage.CreatePlayer(s.ctx, s.newPlayer("alice"))

	s.Require().NoError(s.storage.SetSessionTokenHash(s.ctx, "alice", "digest-1"))

	username, err := s.storage.GetUsernameBySessionTokenHash(s.ctx, "digest-1")
	s.Require().NoError(err)
	s.Equal("alice", username)

	player, _ := s.storage.GetPlayer(s.ctx, "alice")
	s.Equal("digest-1", player.SessionTokenHash)
}

func (s *StorageSuite) TestSetSessionTokenHashReplacesOldIndex() {
	_ = s.storage.CreatePlayer(s.ctx, s.newPlayer("alice"))
	_ = s.storage.SetSessionTokenHash(s.ctx, "alice", "digest-1")

	s.Require().NoError(s.storage.SetSessionTokenHash(s.ctx, "alice", "digest-2"))

	_, err := s.storage.GetUsernameBySessionTokenHash(s.ctx, "digest-1")
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.False(s.mini.Exists(sessionIndexKey("digest-1")))

	username, err := s.storage.GetUsernameBySessionTokenHash(s.ctx, "digest-2")
	s.Require().NoError(err)
	s.Equal("alice", username)
}

func (s *StorageSuite) TestSessionIndexExpires() {
	_ = s.storage.CreatePlayer(s.ctx, s.newPlayer("alice"))
	_ = s.storage.SetSessionTokenHash(s.ctx, "alice", "digest-1")

	s.mini.FastForward(2 * time.Hour)

	_, err := s.storage.GetUsernameBySessionTokenHash(s.ctx, "digest-1")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestSetSessionTokenHashUnknownPlayer() {
	err := s.storage.SetSessionTokenHash(s.ctx, "nobody", "digest-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestResolveUnknownTokenHash() {
	_, err := s.storage.GetUsernameBySessionTokenHash(s.ctx, "garbage")
	s.ErrorIs(err, model.ErrSessionNotFound)
}
