package entity

import "time"

// Strategy 解析后的策略规则, Rule 为 JSON
type Strategy struct {
	Id          string `gorm:"primaryKey;size:26"`
	Name        string `gorm:"index"`
	Description string
	Source      string // 用户原始输入
	Symbols     string // 逗号分隔
	Rule        string
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}
