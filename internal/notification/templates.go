// Package notification maps admission states onto the email templates sent to
// staff and participants, and renders them.
package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/noah-isme/iufc-admission-api/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Audience is the recipient group of a notification.
type Audience string

const (
	AudienceAdmin       Audience = "admin"
	AudienceParticipant Audience = "participant"
)

// InvoiceUploadedKey is the participant template sent when an invoice is attached.
const InvoiceUploadedKey = "invoice_uploaded"

// Ref names the HTML body, text body and subject templates of one notification.
type Ref struct {
	HTML    string
	Text    string
	Subject string
}

// Key returns the template key for state: the lower-cased state name with
// registration_submitted shortened to registr_submitted.
func Key(state models.AdmissionState) string {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(string(state)), " ", "_"))
	return strings.Replace(key, "registration_submitted", "registr_submitted", 1)
}

// RefFor builds the template reference for audience and key.
func RefFor(audience Audience, key string) Ref {
	base := fmt.Sprintf("iufc_%s_%s", audience, key)
	return Ref{HTML: base + "_html", Text: base + "_txt", Subject: base + "_subject"}
}

var stateAudiences = map[models.AdmissionState][]Audience{
	models.AdmissionStateDraft:                           nil,
	models.AdmissionStateSubmitted:                       {AudienceAdmin, AudienceParticipant},
	models.AdmissionStateAccepted:                        {AudienceAdmin, AudienceParticipant},
	models.AdmissionStateAcceptedNoRegistrationRequired:  {AudienceAdmin, AudienceParticipant},
	models.AdmissionStateWaiting:                         {AudienceAdmin, AudienceParticipant},
	models.AdmissionStateRejected:                        {AudienceAdmin, AudienceParticipant},
	models.AdmissionStateRegistrationSubmitted:           {AudienceAdmin, AudienceParticipant},
	models.AdmissionStateValidated:                       {AudienceAdmin, AudienceParticipant},
	models.AdmissionStateCancelled:                       nil,
	models.AdmissionStateCancelledNoRegistrationRequired: nil,
}

// Audiences returns who is notified when an admission enters state.
func Audiences(state models.AdmissionState) []Audience {
	return stateAudiences[state]
}

// Submission reports whether state is one of the two submission states whose
// notifications carry the admission data.
func Submission(state models.AdmissionState) bool {
	return state == models.AdmissionStateSubmitted || state == models.AdmissionStateRegistrationSubmitted
}

// Data is the template input of one notification.
type Data struct {
	FirstName            string
	LastName             string
	Formation            string
	FormationAcronym     string
	State                string
	Reason               string
	Mails                string
	Condition            string
	RegistrationRequired bool
	FormationLink        string
	AdmissionData        []string
	Attachments          []string
	AttachmentsOmitted   bool
}

// Rendered is a composed message body.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Templates holds the parsed template sets.
type Templates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Load parses the embedded templates and checks that every state of the
// workflow resolves to existing templates for each notified audience.
func Load() (*Templates, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	t := &Templates{html: html, text: text}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustLoad is Load for process startup.
func MustLoad() *Templates {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Templates) validate() error {
	for _, state := range models.AdmissionStates {
		audiences, ok := stateAudiences[state]
		if !ok {
			return fmt.Errorf("no notification rule for state %s", state)
		}
		for _, audience := range audiences {
			if err := t.check(RefFor(audience, Key(state))); err != nil {
				return err
			}
		}
	}
	return t.check(RefFor(AudienceParticipant, InvoiceUploadedKey))
}

func (t *Templates) check(ref Ref) error {
	if t.html.Lookup(ref.HTML) == nil {
		return fmt.Errorf("missing template %s", ref.HTML)
	}
	if t.text.Lookup(ref.Text) == nil {
		return fmt.Errorf("missing template %s", ref.Text)
	}
	if t.text.Lookup(ref.Subject) == nil {
		return fmt.Errorf("missing template %s", ref.Subject)
	}
	return nil
}

// Render executes the three templates of ref with data.
func (t *Templates) Render(ref Ref, data Data) (Rendered, error) {
	var subject, text, html bytes.Buffer
	if err := t.text.ExecuteTemplate(&subject, ref.Subject, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", ref.Subject, err)
	}
	if err := t.text.ExecuteTemplate(&text, ref.Text, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", ref.Text, err)
	}
	if err := t.html.ExecuteTemplate(&html, ref.HTML, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", ref.HTML, err)
	}
	return Rendered{
		Subject: strings.TrimSpace(subject.String()),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()) + "\n",
	}, nil
}
