package notify

import (
	"strings"

	"github.com/HerbHall/beacon/pkg/models"
)

// Render substitutes every ${key} placeholder in the template's subject and
// content. Placeholders with no matching key are left untouched, and
// substituted values are not re-scanned for placeholders.
func Render(tpl *models.NotificationTemplate, vars map[string]string) (subject, body string) {
	if tpl == nil {
		return "", ""
	}
	if len(vars) == 0 {
		return tpl.Subject, tpl.Content
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "${"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(tpl.Subject), r.Replace(tpl.Content)
}
