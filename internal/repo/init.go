package repo

import (
	"github.com/KNICEX/strategy-agent/internal/entity"
	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Strategy{}, &entity.Decision{}, &entity.ClosedTrade{}, &entity.Knowledge{})
}
