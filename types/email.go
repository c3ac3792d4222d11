package types

// EmailData is a rendered-on-send email: TemplateData feeds the HTML template.
type EmailData struct {
	To           string
	Subject      string
	TemplateData map[string]interface{}
}
