package repository

import (
	"context"
	"database/sql"

	appErrors "github.com/unclebandit/poster-scheduler/internal/errors"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

// CustomerRepositoryInterface is the read-only view of customers this
// service needs. Customers are owned elsewhere.
type CustomerRepositoryInterface interface {
	ListWithoutContact(ctx context.Context) ([]model.Customer, error)
}

type CustomerRepository struct {
	DB *sql.DB
}

// ListWithoutContact returns customers that have no WhatsApp number. Their
// schedules will fail at dispatch time.
func (r *CustomerRepository) ListWithoutContact(ctx context.Context) ([]model.Customer, error) {
	query := `
        SELECT id, company_name, COALESCE(whatsapp, '')
        FROM customers
        WHERE whatsapp IS NULL OR TRIM(whatsapp) = ''
        ORDER BY company_name
    `
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, appErrors.NewPersistence("list customers", err)
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.CompanyName, &c.WhatsApp); err != nil {
			return nil, appErrors.NewPersistence("scan customer", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewPersistence("list customers", err)
	}
	return customers, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
