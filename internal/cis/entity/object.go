package entity

// Object is one physical unit of an item. CurrentStage points into the stage
// catalog; the Version column backs the compare-and-swap used when a scan
// advances the unit, so two concurrent scans cannot silently overwrite each
// other.
//
// Ordinal addressing ("the Nth unit of an item") is always resolved by
// object_id ascending, which matches creation order.
type Object struct {
	ObjectID     uint `json:"object_id" gorm:"primaryKey"`
	ItemID       uint `json:"item_id" gorm:"not null;index"`
	CurrentStage uint `json:"current_stage" gorm:"not null"`
	Rework       int  `json:"rework" gorm:"not null;default:0"`
	Scrap        int  `json:"scrap" gorm:"not null;default:0"`
	Version      int  `json:"-" gorm:"not null;default:0"`

	Item *Item `json:"-" gorm:"foreignKey:ItemID"`
}

func (Object) TableName() string {
	return "objects"
}
