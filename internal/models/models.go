package models

import (
	"time"
)

// User is created on the first successful federated login for an email.
// Rows are never deleted by the application.
type User struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"size:100;not null"        json:"name"`
	Email   string `gorm:"size:200;unique;not null" json:"email"`
	Picture string `gorm:"size:250"                 json:"picture"`
}

// Category uses its name as natural primary key.
type Category struct {
	Name        string `gorm:"size:80;primaryKey" json:"name"`
	Description string `gorm:"size:250"           json:"description"`
	UserID      uint   `gorm:"index;not null"     json:"user_id"`
}

// Product name is a global primary key, not scoped per category, so two
// categories cannot both contain a product with the same name.
type Product struct {
	Name          string `gorm:"size:80;primaryKey"     json:"name"`
	Description   string `gorm:"size:250"               json:"description"`
	Price         string `gorm:"size:20"                json:"price"`
	ImageFileName string `gorm:"size:250"               json:"image_file_name"`
	CategoryName  string `gorm:"size:80;index;not null" json:"category_name"`
	UserID        uint   `gorm:"index;not null"         json:"user_id"`
}

// Session is the server-side login session, keyed by a random id carried in
// a signed cookie. Identity fields stay empty until a provider login
// succeeds.
type Session struct {
	ID            string    `gorm:"size:36;primaryKey" json:"id"`
	UserID        uint      `gorm:"index"              json:"user_id"`
	Username      string    `gorm:"size:100"           json:"username"`
	Email         string    `gorm:"size:200"           json:"email"`
	Picture       string    `gorm:"size:250"           json:"picture"`
	Provider      string    `gorm:"size:20"            json:"provider"`
	ExtUserID     string    `gorm:"size:100"           json:"ext_user_id"`
	ProviderToken string    `gorm:"size:2048"          json:"-"`
	State         string    `gorm:"size:64"            json:"-"`
	RedirectTo    string    `gorm:"size:250"           json:"-"`
	Flash         string    `gorm:"size:250"           json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}
