package model

// MaxFocusSlots is the number of top task slots a DailyFocus can hold.
const MaxFocusSlots = 5

// DailyFocus is the focus set chosen for one user on one calendar date.
// Slot columns are weak references: the tasks they point at may be archived
// or gone by the time they are read.
type DailyFocus struct {
	ID             uint    `gorm:"primaryKey" json:"-"`
	Date           string  `gorm:"size:10;not null;uniqueIndex:idx_focus_user_date" json:"date"`
	UserID         uint    `gorm:"not null;uniqueIndex:idx_focus_user_date" json:"userId"`
	TopTask1       *string `gorm:"size:36" json:"topTask1"`
	TopTask2       *string `gorm:"size:36" json:"topTask2"`
	TopTask3       *string `gorm:"size:36" json:"topTask3"`
	TopTask4       *string `gorm:"size:36" json:"topTask4"`
	TopTask5       *string `gorm:"size:36" json:"topTask5"`
	AvoidedTask    *string `gorm:"size:36" json:"avoidedTask"`
	DailyDirective string  `json:"dailyDirective"`
	Accepted       bool    `gorm:"default:false" json:"accepted"`
	OverrideUsed   bool    `gorm:"default:false" json:"overrideUsed"`
}

// TableName keeps the table name singular like the rest of the focus API.
func (DailyFocus) TableName() string {
	return "daily_focus"
}

// Slots returns the top task references in slot order. Empty slots are nil.
func (f DailyFocus) Slots() [MaxFocusSlots]*string {
	return [MaxFocusSlots]*string{f.TopTask1, f.TopTask2, f.TopTask3, f.TopTask4, f.TopTask5}
}

// SetSlots fills the slot columns from ids in order; missing positions are cleared.
func (f *DailyFocus) SetSlots(ids []string) {
	var slots [MaxFocusSlots]*string
	for i := 0; i < len(ids) && i < MaxFocusSlots; i++ {
		id := ids[i]
		slots[i] = &id
	}
	f.TopTask1, f.TopTask2, f.TopTask3, f.TopTask4, f.TopTask5 = slots[0], slots[1], slots[2], slots[3], slots[4]
}

// ReferencedIDs lists every task id the record points at, slots first.
func (f DailyFocus) ReferencedIDs() []string {
	ids := make([]string, 0, MaxFocusSlots+1)
	for _, slot := range f.Slots() {
		if slot != nil {
			ids = append(ids, *slot)
		}
	}
	if f.AvoidedTask != nil {
		ids = append(ids, *f.AvoidedTask)
	}
	return ids
}
