// Package email renders customer notification templates. Delivery is
// simulated: rendered messages are logged and recorded in the conversation
// log, never actually sent.
package email

import (
	"fmt"
	"strings"
	"text/template"
)

// Template names accepted by Render.
const (
	TemplateReturnApproved = "return_approved"
	TemplateReturnRejected = "return_rejected"
	TemplateLabelReady     = "label_ready"
)

var templates = map[string]*template.Template{
	TemplateReturnApproved: template.Must(template.New(TemplateReturnApproved).Parse(`Dear {{.customer_name}},

Your return request has been approved!

Order Number: {{.order_number}}
RMA Number: {{.rma_number}}
Items: {{.items}}
Refund Amount: {{.refund_amount}}

Your prepaid shipping label is ready. You can download it here:
{{.label_url}}

Tracking Number: {{.tracking_number}}

Please pack your items securely and drop off the package at any {{.carrier}} location.
Once we receive your return, we'll process your refund within 3-5 business days.

Thank you for your business!

Best regards,
Customer Service Team
`)),
	TemplateReturnRejected: template.Must(template.New(TemplateReturnRejected).Parse(`Dear {{.customer_name}},

Thank you for contacting us about your return request for Order #{{.order_number}}.

Unfortunately, we're unable to process this return because:
{{.reason}}

{{.additional_info}}

If you have any questions or would like to discuss alternatives, please don't hesitate to contact us.

Best regards,
Customer Service Team
`)),
	TemplateLabelReady: template.Must(template.New(TemplateLabelReady).Parse(`Dear {{.customer_name}},

Your return shipping label is ready!

Order Number: {{.order_number}}
RMA Number: {{.rma_number}}
Tracking Number: {{.tracking_number}}

Download your label here: {{.label_url}}

Please print the label and attach it to your package. Drop it off at any {{.carrier}} location.

Thank you!

Best regards,
Customer Service Team
`)),
}

// Render fills the named template with the given context.
func Render(name string, context map[string]string) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("email template %q not found", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, context); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return sb.String(), nil
}

// Preview returns the first 200 characters of a rendered body.
func Preview(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= 200 {
		return body
	}
	return body[:200] + "..."
}
