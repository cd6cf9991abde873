// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/config"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

// NotificationService sends best-effort emails around completed sales.
// Failures are logged and never affect the purchase that triggered them.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// SendSaleNotifications emails both sides of a completed purchase: a
// receipt to the buyer and a sale notice to the seller.
func (s *NotificationService) SendSaleNotifications(purchase *models.Purchase) {
	var buyer models.User
	if err := s.db.First(&buyer, "id = ?", purchase.BuyerID).Error; err != nil {
		logrus.WithError(err).Warn("Failed to load buyer for receipt email")
	} else {
		s.sendPurchaseReceipt(&buyer, purchase)
	}

	var resource models.Resource
	if err := s.db.First(&resource, "id = ?", purchase.ResourceID).Error; err != nil {
		logrus.WithError(err).Warn("Failed to load resource for sale email")
		return
	}

	var seller models.User
	if err := s.db.First(&seller, "id = ?", resource.UserID).Error; err != nil {
		logrus.WithError(err).Warn("Failed to load seller for sale email")
		return
	}

	s.sendSaleNotice(&seller, &resource, purchase)
}

func (s *NotificationService) sendPurchaseReceipt(buyer *models.User, purchase *models.Purchase) {
	body := fmt.Sprintf(
		"Hi %s,<br><br>Thanks for your purchase. Amount paid: $%s (transaction %s).<br><br>SmartStudy Marketplace",
		template.HTMLEscapeString(buyer.Username), purchase.AmountPaid, purchase.TransactionID)

	if err := s.sendEmail(buyer.Email, "Your SmartStudy purchase", body); err != nil {
		logrus.WithError(err).WithField("user_id", buyer.ID).Warn("Failed to send purchase receipt")
	}
}

func (s *NotificationService) sendSaleNotice(seller *models.User, resource *models.Resource, purchase *models.Purchase) {
	body := fmt.Sprintf(
		"Hi %s,<br><br>Good news: a unit of %q just sold. Your earnings: $%s.<br><br>SmartStudy Marketplace",
		template.HTMLEscapeString(seller.Username), resource.Title, purchase.SellerEarnings)

	if err := s.sendEmail(seller.Email, "You made a sale!", body); err != nil {
		logrus.WithError(err).WithField("user_id", seller.ID).Warn("Failed to send sale notice")
	}
}

func (s *NotificationService) sendEmail(to, subject, htmlBody string) error {
	if s.config.Email.SMTPUsername == "" {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("SMTP not configured, skipping email")
		return nil
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.config.Email.FromName, s.config.Email.FromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)
	addr := s.config.Email.SMTPHost + ":" + s.config.Email.SMTPPort

	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg.Bytes())
}
