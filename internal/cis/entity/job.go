package entity

import "time"

// Job groups the items of one customer order under a unique code.
type Job struct {
	JobID     uint      `json:"job_id" gorm:"primaryKey"`
	JobCode   string    `json:"job_code" gorm:"size:50;not null;uniqueIndex"`
	Status    bool      `json:"status" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`

	Items []Item `json:"items,omitempty" gorm:"foreignKey:JobID"`
}

func (Job) TableName() string {
	return "jobs"
}
