package email

// SendEmailRequest represents a request to send a plain text email
type SendEmailRequest struct {
	FromAddress string   `json:"from_address" validate:"omitempty,email"`
	ToAddresses []string `json:"to_addresses" validate:"required,min=1,dive,email"`
	Subject     string   `json:"subject" validate:"required"`
	Text        string   `json:"text" validate:"required"`
}

// SendEmailResponse represents the response from sending an email
type SendEmailResponse struct {
	MessageID string
	Success   bool
	Error     string
}
