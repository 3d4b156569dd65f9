package todo

import "time"

// Collection is a user-owned checklist. The UUID is generated by the client
// and never changes after creation; the owner never changes either.
type Collection struct {
	UUID        string    `gorm:"primaryKey;size:64" json:"uuid"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	Owner       string    `gorm:"index;not null" json:"-"`
}

// TableName returns the table name for the Collection entity.
func (Collection) TableName() string {
	return "list_collections"
}

// Item is a single checklist entry. It references its owning collection by
// UUID and never outlives it.
type Item struct {
	UUID         string     `gorm:"primaryKey;size:64" json:"uuid"`
	InCollection string     `gorm:"index;not null" json:"inCollection"`
	Name         string     `gorm:"not null" json:"name"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"-"`
	DeadLine     *time.Time `json:"deadLine,omitempty"`
	Checked      bool       `json:"checked"`
}

// TableName returns the table name for the Item entity.
func (Item) TableName() string {
	return "collection_items"
}
