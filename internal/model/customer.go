// internal/model/customer.go
package model

// Customer is owned by the customer module; schedules only reference it.
type Customer struct {
	ID          string `db:"id" json:"_id"`
	CompanyName string `db:"company_name" json:"companyName"`
	WhatsApp    string `db:"whatsapp" json:"whatsapp,omitempty"`
}
