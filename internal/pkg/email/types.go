// internal/pkg/email/types.go
package email

import (
	"time"
)

// Kind tags an outgoing message, used for provider tags and logging
type Kind string

const (
	KindWelcome           Kind = "welcome"
	KindPasswordReset     Kind = "password_reset"
	KindOrderConfirmation Kind = "order_confirmation"
	KindOrderStatusUpdate Kind = "order_status_update"
	KindTest              Kind = "test"
)

// Message represents an email message
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Kind    Kind     `json:"kind"`
}

// BaseData contains common data for all email templates
type BaseData struct {
	SiteName  string
	SiteURL   string
	UserName  string
	UserEmail string
	Year      int
}

// WelcomeData contains data for the welcome/activation email
type WelcomeData struct {
	BaseData
	ActivationURL string
}

// PasswordResetData contains data for password reset email
type PasswordResetData struct {
	BaseData
	ResetURL   string
	ExpiryTime string
}

// OrderLine is one purchased line rendered in order emails
type OrderLine struct {
	Name     string
	Quantity int
	Price    string
	Total    string
}

// OrderData contains data for order confirmation and status update emails
type OrderData struct {
	BaseData
	OrderNumber     string
	OrderDate       string
	Status          string
	PreviousStatus  string
	StatusMessage   string
	Total           string
	ShippingAddress string
	Items           []OrderLine
}

func (s *Service) baseData(userName, userEmail string) BaseData {
	return BaseData{
		SiteName:  s.config.FromName,
		SiteURL:   s.siteURL,
		UserName:  userName,
		UserEmail: userEmail,
		Year:      time.Now().Year(),
	}
}
