package model

import "time"

type TransitionLog struct {
	ID            uint64        `gorm:"primaryKey;autoIncrement"`
	TransactionID string        `gorm:"column:transaction_id;size:128;index;not null"`
	FromStatus    RequestStatus `gorm:"column:from_status;size:32"`
	ToStatus      RequestStatus `gorm:"column:to_status;size:32;not null"`
	ActorUID      string        `gorm:"column:actor_uid;size:128;index;not null"`
	CreatedAt     time.Time     `gorm:"autoCreateTime"`
}

func (TransitionLog) TableName() string {
	return "transition_logs"
}
