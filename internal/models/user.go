package models

import (
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypeShipper UserType = "shipper"
	UserTypeDriver  UserType = "driver"
)

// User is the identity record owned by the external auth service. The
// dispatch core only reads it for names and contact details on
// responses and notifications.
type User struct {
	gorm.Model
	Username    string `json:"username" gorm:"column:username;unique;not null"`
	Email       string `json:"email" gorm:"column:email;unique;not null"`
	PhoneNumber string `json:"phoneNumber" gorm:"column:phone_number"`
	UserType    string `json:"userType" gorm:"column:user_type;not null"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}
