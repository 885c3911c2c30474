package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

// Kind selects the subject and body template of a message.
type Kind string

const (
	KindOTP                  Kind = "otp"
	KindAppointmentApproved  Kind = "appointment_approved"
	KindCaregiverAssignment  Kind = "caregiver_assignment"
	KindAppointmentSuspended Kind = "appointment_suspended"
	KindAppointmentCancelled Kind = "appointment_cancelled"
)

type kindTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[Kind]kindTemplate{
	KindOTP: {
		subject: "Your OTP Code",
		body: template.Must(template.New("otp").Parse(
			`<p>Hello {{.Name}},</p><p>Your one-time code is <strong>{{.Code}}</strong>. It expires in {{.TTLMinutes}} minutes.</p>`)),
	},
	KindAppointmentApproved: {
		subject: "Appointment Approved",
		body: template.Must(template.New("approved").Parse(
			`<p>Hello {{.Name}},</p><p>Your {{.Department}} appointment has been approved{{if .Date}} for {{.Date}}{{end}}{{if .Counterpart}} with {{.Counterpart}}{{end}}.</p>`)),
	},
	KindCaregiverAssignment: {
		subject: "New Appointment Assignment",
		body: template.Must(template.New("assignment").Parse(
			`<p>Hello {{.Name}},</p><p>You have been assigned a {{.Department}} appointment{{if .Counterpart}} with {{.Counterpart}}{{end}}{{if .Date}} on {{.Date}}{{end}}.</p>`)),
	},
	KindAppointmentSuspended: {
		subject: "Appointment Suspended",
		body: template.Must(template.New("suspended").Parse(
			`<p>Hello {{.Name}},</p><p>The {{.Department}} appointment{{if .Date}} scheduled for {{.Date}}{{end}} has been suspended.</p>`)),
	},
	KindAppointmentCancelled: {
		subject: "Appointment Cancelled",
		body: template.Must(template.New("cancelled").Parse(
			`<p>Hello {{.Name}},</p><p>Your {{.Department}} appointment{{if .Date}} scheduled for {{.Date}}{{end}} has been cancelled.</p>`)),
	},
}

// Data fills the body templates. Unused fields are ignored per kind.
type Data struct {
	Name        string
	Code        string
	TTLMinutes  int
	Department  string
	Date        string
	Counterpart string
}

// Render returns the subject and HTML body for a message.
func Render(kind Kind, data Data) (string, string, error) {
	t, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", kind)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", kind, err)
	}
	return t.subject, buf.String(), nil
}
