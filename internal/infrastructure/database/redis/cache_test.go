package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/suite"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := &Client{rdb: db, mode: ModeStandalone, logger: logging.NewNopLogger()}
	s.cache = NewRedisCache(client, nil, WithPrefix("test:"), WithTTLJitter(0), WithDefaultTTL(time.Minute))
}

func (s *CacheTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

type labValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func (s *CacheTestSuite) TestGet_Hit() {
	want := labValue{Name: "HEMOGLOBIN", Value: 10.2}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:k1").SetVal(string(data))

	var got labValue
	s.Require().NoError(s.cache.Get(context.Background(), "k1", &got))
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:k1").RedisNil()

	var got labValue
	err := s.cache.Get(context.Background(), "k1", &got)
	s.Equal(ErrCacheMiss, err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeNotFound))
}

func (s *CacheTestSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:k1").SetErr(stderrors.New("connection reset"))

	var got labValue
	err := s.cache.Get(context.Background(), "k1", &got)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:k1").SetVal("{not json")

	var got labValue
	err := s.cache.Get(context.Background(), "k1", &got)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_DefaultTTL() {
	data, _ := json.Marshal(labValue{Name: "ESR", Value: 45})
	s.mock.ExpectSet("test:k1", data, time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "k1", labValue{Name: "ESR", Value: 45}, 0))
}

func (s *CacheTestSuite) TestSet_Unserializable() {
	err := s.cache.Set(context.Background(), "k1", func() {}, time.Second)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "k1", "k2"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	want := labValue{Name: "WBC", Value: 12000}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:k1").SetVal(string(data))

	var got labValue
	hit, err := s.cache.GetOrSet(context.Background(), "k1", &got, time.Minute, func(context.Context) (interface{}, error) {
		s.Fail("loader must not run on a hit")
		return nil, nil
	})
	s.Require().NoError(err)
	s.True(hit)
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGetOrSet_MissLoadsAndStores() {
	want := labValue{Name: "SGOT", Value: 162}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:k1").RedisNil()
	s.mock.ExpectSet("test:k1", data, 2*time.Minute).SetVal("OK")

	var got labValue
	hit, err := s.cache.GetOrSet(context.Background(), "k1", &got, 2*time.Minute, func(context.Context) (interface{}, error) {
		return want, nil
	})
	s.Require().NoError(err)
	s.False(hit)
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGetOrSet_StoreFailureStillReturnsValue() {
	want := labValue{Name: "SGPT", Value: 86}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:k1").RedisNil()
	s.mock.ExpectSet("test:k1", data, time.Minute).SetErr(stderrors.New("READONLY"))

	var got labValue
	hit, err := s.cache.GetOrSet(context.Background(), "k1", &got, 0, func(context.Context) (interface{}, error) {
		return want, nil
	})
	s.Require().NoError(err)
	s.False(hit)
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderError() {
	s.mock.ExpectGet("test:k1").RedisNil()
	boom := stderrors.New("extractor failed")

	var got labValue
	_, err := s.cache.GetOrSet(context.Background(), "k1", &got, 0, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	s.ErrorIs(err, boom)
}

func (s *CacheTestSuite) TestDeleteByPrefix() {
	s.mock.ExpectScan(0, "test:extract:*", 100).SetVal([]string{"test:extract:a", "test:extract:b"}, 0)
	s.mock.ExpectDel("test:extract:a", "test:extract:b").SetVal(2)

	n, err := s.cache.DeleteByPrefix(context.Background(), "extract:")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

//Personal.AI order the ending
