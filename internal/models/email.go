package models

type EmailRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"assunto" binding:"required"`
	Message string `json:"mensagem" binding:"required"`
}

// Email is the delivery record returned after a message is handed to SMTP.
type Email struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Subject string `json:"assunto"`
	Message string `json:"mensagem"`
}
