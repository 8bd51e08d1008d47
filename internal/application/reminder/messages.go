package reminder

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/go-subtracker/internal/domain"
)

const (
	titlePayment = "Payment due soon"
	titleTrial   = "Free trial ending soon"

	billingDateLayout = "January 2, 2006"
)

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// compose builds the type, title and message of a reminder for sub due in days.
func compose(sub *domain.Subscription, days int) (domain.NotificationType, string, string) {
	price := sub.Price.String()
	if sub.Status == domain.StatusTrial {
		return domain.NotificationTrial, titleTrial,
			fmt.Sprintf("Your %s trial ends in %d %s. It will auto-renew for $%s.", sub.Name, days, dayWord(days), price)
	}
	return domain.NotificationPayment, titlePayment,
		fmt.Sprintf("%s payment of $%s due in %d %s.", sub.Name, price, days, dayWord(days))
}

// {{.Title}} and friends are auto-escaped by html/template.
var emailTmpl = template.Must(template.New("reminder").Parse(
	`<h2>{{.Title}}</h2>` +
		`<p>{{.Message}}</p>` +
		`<p>Payment date: {{.Date}}</p>` +
		`<p>Amount: ${{.Amount}}</p>`))

type emailData struct {
	Title   string
	Message string
	Date    string
	Amount  string
}

func reminderEmail(n domain.Notification, sub *domain.Subscription) (html, text string, err error) {
	d := emailData{
		Title:   n.Title,
		Message: n.Message,
		Date:    sub.NextBillingDate.Format(billingDateLayout),
		Amount:  sub.Price.String(),
	}
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, d); err != nil {
		return "", "", err
	}
	text = fmt.Sprintf("%s\n\n%s\n\nPayment date: %s\nAmount: $%s\n", d.Title, d.Message, d.Date, d.Amount)
	return buf.String(), text, nil
}

func smsText(n domain.Notification) string {
	return n.Title + ": " + n.Message
}
