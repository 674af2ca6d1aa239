package entity

import "time"

// Decision 交易决策及其执行结果
type Decision struct {
	Id        string `gorm:"primaryKey;size:26"`
	RuleId    string `gorm:"index"`
	Action    string
	Symbol    string `gorm:"index"`
	Quantity  string
	Price     string
	Reason    string
	Status    int `gorm:"index"` // 0:已触发 1:已成交 2:被拒绝 3:执行失败
	Detail    string
	FillPrice string
	Fee       string
	DecidedAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	DecisionStatusEmitted  = 0
	DecisionStatusExecuted = 1
	DecisionStatusRejected = 2
	DecisionStatusFailed   = 3
)
