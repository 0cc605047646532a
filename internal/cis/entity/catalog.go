package entity

// Stage is a named station on the shop floor (e.g. "Cutting").
// A stage cannot be removed while any pipeline edge or unit points at it.
type Stage struct {
	StageID   uint   `json:"stage_id" gorm:"primaryKey"`
	StageName string `json:"stage_name" gorm:"size:50;not null;uniqueIndex"`

	ProcessStages []ProcessStage `json:"-" gorm:"foreignKey:StageID"`
}

func (Stage) TableName() string {
	return "stages"
}

// Process is a named manufacturing route. Its stage sequence lives in
// process_stages and is always replaced as a whole, never appended to.
type Process struct {
	ProcessID   uint   `json:"process_id" gorm:"primaryKey"`
	ProcessName string `json:"process_name" gorm:"size:50;not null;uniqueIndex"`

	ProcessStages []ProcessStage `json:"-" gorm:"foreignKey:ProcessID"`
	Items         []Item         `json:"-" gorm:"foreignKey:ProcessID"`
}

func (Process) TableName() string {
	return "processes"
}

// ProcessStage is one edge of a process pipeline. StageOrder is a dense
// 1-based sequence, unique per process.
type ProcessStage struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ProcessID  uint `json:"process_id" gorm:"not null;index;uniqueIndex:idx_process_stage_order"`
	StageID    uint `json:"stage_id" gorm:"not null;index"`
	StageOrder int  `json:"order" gorm:"column:stage_order;not null;uniqueIndex:idx_process_stage_order"`

	Process *Process `json:"-" gorm:"foreignKey:ProcessID"`
	Stage   *Stage   `json:"stage,omitempty" gorm:"foreignKey:StageID"`
}

func (ProcessStage) TableName() string {
	return "process_stages"
}
