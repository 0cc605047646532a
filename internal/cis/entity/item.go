package entity

// Item is a manufactured part type within a job. Every item follows exactly
// one process; its ordered stage list is derived from process_stages on each
// read and is never stored on the row.
//
// Dimensional attribute names follow the import sheet the plant already uses.
type Item struct {
	ItemID          uint    `json:"item_id" gorm:"primaryKey"`
	JobID           uint    `json:"job_id" gorm:"not null;index"`
	ProcessID       uint    `json:"process_id" gorm:"not null;index"`
	ItemName        string  `json:"item_name" gorm:"size:255;not null"`
	OCR             string  `json:"ocr" gorm:"column:ocr;size:255;not null;index"`
	Material        string  `json:"material" gorm:"size:100;default:Steel"`
	Espesor         float64 `json:"espesor"`
	Longitud        float64 `json:"longitud"`
	Ancho           float64 `json:"ancho"`
	Alto            float64 `json:"alto"`
	Volumen         float64 `json:"volumen"`
	AreaSuperficial float64 `json:"area_superficial"`
	Cantidad        int     `json:"cantidad" gorm:"not null"`

	Job     *Job     `json:"-" gorm:"foreignKey:JobID"`
	Process *Process `json:"-" gorm:"foreignKey:ProcessID"`
	Objects []Object `json:"objects,omitempty" gorm:"foreignKey:ItemID"`
}

func (Item) TableName() string {
	return "items"
}
