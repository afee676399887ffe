// Package directory is the user store behind the Identity Gate.
package directory

import "time"

// Category is the group an identity reports; teams belong to one.
type Category struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:128;not null"`
}

type Team struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:128;not null"`
	CategoryID *uint
	Category   *Category
}

type User struct {
	ID          uint   `gorm:"primaryKey"`
	Email       string `gorm:"uniqueIndex;size:255;not null"`
	DisplayName string `gorm:"size:64"`
	Role        string `gorm:"size:32;not null"`
	TeamID      *uint
	Team        *Team
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
