package models

import "time"

// CartSnapshot stores the serialized cart under a fixed storage key.
type CartSnapshot struct {
	CartKey   string    `gorm:"column:cart_key;type:varchar(128);primaryKey"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
