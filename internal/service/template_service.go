// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/poster-scheduler/internal/model"
)

// RenderTemplate replaces every {key} in template with data[key].
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// messageData exposes the schedule fields usable as {placeholders} in the
// outbound message text. Unresolved references render as empty strings.
func messageData(rec model.Schedule) map[string]string {
	data := map[string]string{
		"category":     rec.Category,
		"date":         rec.Date,
		"time":         rec.Time,
		"poster_id":    rec.PosterID,
		"company_name": "",
		"poster_title": "",
	}
	if rec.Customer != nil {
		data["company_name"] = rec.Customer.CompanyName
	}
	if rec.Poster != nil {
		data["poster_title"] = rec.Poster.Title
	}
	return data
}
