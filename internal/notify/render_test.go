package notify

import (
	"testing"

	"github.com/HerbHall/beacon/pkg/models"
)

func TestRender(t *testing.T) {
	tpl := &models.NotificationTemplate{
		Subject: "[${status}] ${name}",
		Content: "${name} is ${status}, was ${previous_status}. ${name}! ${missing}",
	}

	tests := []struct {
		name        string
		vars        map[string]string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "all occurrences replaced",
			vars:        map[string]string{"name": "api", "status": "down", "previous_status": "up"},
			wantSubject: "[down] api",
			wantBody:    "api is down, was up. api! ${missing}",
		},
		{
			name:        "no variables leaves template untouched",
			vars:        nil,
			wantSubject: tpl.Subject,
			wantBody:    tpl.Content,
		},
		{
			name:        "values are not re-expanded",
			vars:        map[string]string{"name": "${status}", "status": "up"},
			wantSubject: "[up] ${status}",
			wantBody:    "${status} is up, was ${previous_status}. ${status}! ${missing}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := Render(tpl, tt.vars)
			if subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", subject, tt.wantSubject)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestRender_NilTemplate(t *testing.T) {
	subject, body := Render(nil, map[string]string{"a": "b"})
	if subject != "" || body != "" {
		t.Errorf("Render(nil) = %q, %q, want empty", subject, body)
	}
}
