package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/KNICEX/strategy-agent/internal/entity"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type RepoSuite struct {
	suite.Suite
	db *gorm.DB
}

func TestRepoSuite(t *testing.T) {
	suite.Run(t, new(RepoSuite))
}

func (s *RepoSuite) SetupTest() {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(s.T().Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(InitTables(db))
	s.db = db
}

func (s *RepoSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	s.NoError(sqlDB.Close())
}

func (s *RepoSuite) TestStrategyRepo() {
	ctx := context.Background()
	r := NewStrategyRepo(s.db)

	s.Require().NoError(r.Create(ctx, entity.Strategy{Id: "01A", Name: "first", Symbols: "AAPL", Rule: "{}"}))
	s.Require().NoError(r.Create(ctx, entity.Strategy{Id: "01B", Name: "second", Symbols: "MSFT", Rule: "{}"}))
	s.Error(r.Create(ctx, entity.Strategy{Id: "01A"}), "duplicate id")

	got, err := r.FindById(ctx, "01B")
	s.Require().NoError(err)
	s.Equal("second", got.Name)

	_, err = r.FindById(ctx, "missing")
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	list, err := r.List(ctx, 10)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *RepoSuite) TestDecisionRepo() {
	ctx := context.Background()
	r := NewDecisionRepo(s.db)
	now := time.Now()

	s.Require().NoError(r.Create(ctx, entity.Decision{Id: "d1", RuleId: "r1", Action: "BUY", Symbol: "AAPL", Quantity: "10", Price: "181", DecidedAt: now}))
	s.Require().NoError(r.Create(ctx, entity.Decision{Id: "d2", RuleId: "r1", Action: "SELL", Symbol: "AAPL", Quantity: "10", Price: "190", DecidedAt: now.Add(time.Minute)}))
	s.Require().NoError(r.Create(ctx, entity.Decision{Id: "d3", RuleId: "r2", Action: "BUY", Symbol: "MSFT", DecidedAt: now}))

	s.Require().NoError(r.UpdateFill(ctx, "d1", "181.05", "0.18"))
	s.Require().NoError(r.UpdateStatus(ctx, "d2", entity.DecisionStatusRejected, "no open position"))

	decisions, err := r.FindByRule(ctx, "r1")
	s.Require().NoError(err)
	s.Require().Len(decisions, 2)
	s.Equal(entity.DecisionStatusExecuted, decisions[0].Status)
	s.Equal("181.05", decisions[0].FillPrice)
	s.Equal(entity.DecisionStatusRejected, decisions[1].Status)
	s.Equal("no open position", decisions[1].Detail)
}

func (s *RepoSuite) TestTradeRepo() {
	ctx := context.Background()
	r := NewTradeRepo(s.db)
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	for i, sym := range []string{"AAPL", "MSFT", "TSLA"} {
		id, err := r.Create(ctx, entity.ClosedTrade{RuleId: "r1", Symbol: sym, RealizedPnl: "1", ClosedAt: base.Add(time.Duration(i) * time.Hour)})
		s.Require().NoError(err)
		s.Positive(id)
	}

	latest, err := r.List(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(latest, 2)
	s.Equal("TSLA", latest[0].Symbol)
	s.Equal("MSFT", latest[1].Symbol)

	all, err := r.List(ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 3)

	byRule, err := r.FindByRule(ctx, "r1")
	s.Require().NoError(err)
	s.Equal("AAPL", byRule[0].Symbol)
}

func (s *RepoSuite) TestKnowledgeRepo_Search() {
	ctx := context.Background()
	r := NewKnowledgeRepo(s.db)
	snippets := []entity.Knowledge{
		{Title: "moving averages", Content: "A golden cross happens when the 50 day moving average crosses above the 200 day average."},
		{Title: "volume", Content: "Volume spikes often confirm breakouts."},
		{Title: "sector rotation", Content: "Compare XLK against XLE to detect rotation between technology and energy."},
	}
	for _, k := range snippets {
		_, err := r.Create(ctx, k)
		s.Require().NoError(err)
	}

	res, err := r.Search(ctx, "Buy AAPL when the 50 day moving average crosses the 200 day", 3)
	s.Require().NoError(err)
	s.Require().NotEmpty(res)
	s.Equal("moving averages", res[0].Title)

	res, err = r.Search(ctx, "rotation from XLE into XLK", 1)
	s.Require().NoError(err)
	s.Require().Len(res, 1)
	s.Equal("sector rotation", res[0].Title)

	res, err = r.Search(ctx, "a b", 3)
	s.Require().NoError(err)
	s.Empty(res)
}

func TestKeywords(t *testing.T) {
	got := keywords("Buy AAPL when price goes above $180, buy again!")
	want := []string{"aapl", "price", "above", "180", "again"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
}
