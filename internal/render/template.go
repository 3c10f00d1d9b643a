package render

import (
	"html"
	"strconv"
	"strings"

	"github.com/unclebandit/directmail-scheduler/internal/model"
)

// Placeholders returns the {key} substitutions available to letter templates.
func Placeholders(l model.Lead) map[string]string {
	return map[string]string{
		"first_name":      l.FirstName,
		"last_name":       l.LastName,
		"address":         l.Address,
		"city":            l.City,
		"state":           l.State,
		"zip":             l.Zip,
		"mailing_address": l.MailingAddress,
		"mailing_city":    l.MailingCity,
		"mailing_state":   l.MailingState,
		"mailing_zip":     l.MailingZip,
		"phone":           l.Phone,
		"property_type":   l.PropertyType,
		"estimated_value": strconv.FormatFloat(l.EstimatedValue, 'f', 0, 64),
	}
}

// RenderTemplate replaces every {key} in template. Values are HTML-escaped and
// empty values fall back to "Homeowner" for names and "" otherwise.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" && (k == "first_name" || k == "last_name") {
			v = "Homeowner"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", html.EscapeString(v))
	}
	return result
}
