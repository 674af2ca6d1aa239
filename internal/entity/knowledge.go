package entity

import "time"

// Knowledge 策略解析时可检索的知识片段
type Knowledge struct {
	Id        int64  `gorm:"primaryKey;autoIncrement"`
	Title     string `gorm:"index"`
	Content   string
	CreatedAt time.Time
}
