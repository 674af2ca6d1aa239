package entity

import "time"

// ClosedTrade 平仓记录
type ClosedTrade struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	RuleId      string `gorm:"index"`
	Symbol      string `gorm:"index"`
	Quantity    string
	EntryPrice  string
	ExitPrice   string
	Fees        string
	RealizedPnl string
	OpenedAt    time.Time
	ClosedAt    time.Time `gorm:"index"`
	CreatedAt   time.Time
}
