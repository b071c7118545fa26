package email

import (
	"fmt"
	"html"
	"strings"

	"tour-booking-api/models"
	"tour-booking-api/utils"
)

const emailShell = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body style="margin: 0; padding: 0; background-color: #f4f6f5; font-family: Arial, sans-serif;">
    <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%%" style="background-color: #f4f6f5;">
        <tr>
            <td align="center" style="padding: 32px 16px;">
                <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="600" style="background-color: #ffffff; border-radius: 8px; overflow: hidden;">
                    <tr>
                        <td style="background-color: #1f4e3d; padding: 24px; color: #ffffff; font-size: 20px; font-weight: bold;">
                            Andes Experience
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 28px;">
%s
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 16px 28px; background-color: #f4f6f5; color: #6b7280; font-size: 12px;">
                            This is an automated message, please do not reply.
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>`

// RenderBookingConfirmation builds the post-checkout confirmation email.
func RenderBookingConfirmation(booking BookingEmailData) string {
	var rows strings.Builder
	for _, item := range booking.Items {
		fmt.Fprintf(&rows, `
                            <tr>
                                <td style="padding: 8px 0; border-bottom: 1px solid #e5e7eb;">%s</td>
                                <td style="padding: 8px 0; border-bottom: 1px solid #e5e7eb;">%s</td>
                                <td style="padding: 8px 0; border-bottom: 1px solid #e5e7eb; text-align: center;">%d</td>
                                <td style="padding: 8px 0; border-bottom: 1px solid #e5e7eb; text-align: right;">%s</td>
                            </tr>`,
			html.EscapeString(item.TourName),
			html.EscapeString(utils.FormatScheduleTime(item.StartDatetime)),
			item.NumParticipants,
			utils.FormatAmount(item.ItemTotal, booking.Currency),
		)
	}

	var names []string
	for _, p := range booking.Participants {
		if p.FullName != "" {
			names = append(names, html.EscapeString(p.FullName))
		}
	}

	content := fmt.Sprintf(`
                            <h2 style="margin-top: 0; color: #111827;">Booking confirmed</h2>
                            <p>Hi %s,</p>
                            <p>Your booking <strong>%s</strong> is confirmed. Here is what you booked:</p>
                            <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%%" style="font-size: 14px; color: #374151;">
                                <tr>
                                    <th align="left" style="padding: 8px 0; border-bottom: 2px solid #1f4e3d;">Tour</th>
                                    <th align="left" style="padding: 8px 0; border-bottom: 2px solid #1f4e3d;">Departure</th>
                                    <th style="padding: 8px 0; border-bottom: 2px solid #1f4e3d;">Seats</th>
                                    <th align="right" style="padding: 8px 0; border-bottom: 2px solid #1f4e3d;">Amount</th>
                                </tr>%s
                            </table>
                            <p style="margin-top: 16px; font-size: 16px;"><strong>Total: %s</strong></p>
                            <p style="font-size: 14px; color: #374151;">Participants: %s</p>
                            <p style="font-size: 14px; color: #374151;">Please bring a valid ID matching the participant details. We will contact you at the pickup address provided.</p>`,
		html.EscapeString(booking.ContactName),
		html.EscapeString(booking.BookingID),
		rows.String(),
		utils.FormatAmount(booking.Total, booking.Currency),
		strings.Join(names, ", "),
	)

	return fmt.Sprintf(emailShell, "Booking confirmed", content)
}

// RenderPaymentReceipt builds the receipt sent when a payment completes.
func RenderPaymentReceipt(payment models.PaymentSession) string {
	methodNote := "Your payment was received."
	switch {
	case payment.QRCode != "":
		methodNote = "Your PIX payment was received."
	case payment.PaymentURL != "":
		methodNote = "Your card payment was confirmed by the payment gateway."
	}

	content := fmt.Sprintf(`
                            <h2 style="margin-top: 0; color: #111827;">Payment received</h2>
                            <p>%s</p>
                            <table role="presentation" cellspacing="0" cellpadding="0" border="0" style="font-size: 14px; color: #374151;">
                                <tr><td style="padding: 4px 16px 4px 0;">Payment id</td><td><strong>%s</strong></td></tr>
                                <tr><td style="padding: 4px 16px 4px 0;">Provider</td><td>%s</td></tr>
                                <tr><td style="padding: 4px 16px 4px 0;">Amount</td><td>%s</td></tr>
                                <tr><td style="padding: 4px 16px 4px 0;">Status</td><td>%s</td></tr>
                            </table>`,
		methodNote,
		html.EscapeString(payment.PaymentID),
		html.EscapeString(payment.Provider),
		utils.FormatAmount(payment.Amount, payment.Currency),
		payment.Status,
	)

	return fmt.Sprintf(emailShell, "Payment receipt", content)
}
