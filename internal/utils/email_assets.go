package utils

import (
	"fmt"
	"html"
)

// BrandName appears in email headers and footers.
const BrandName = "Storefront"

// GetLogoHTML returns the text logo used at the top of every email.
func GetLogoHTML() string {
	return fmt.Sprintf(`
		<div style="text-align: center; padding: 32px 20px;">
			<h1 style="font-family: 'Segoe UI', Arial, sans-serif; font-size: 30px; font-weight: 700; color: #ffffff; margin: 0; letter-spacing: -0.5px;">%s</h1>
		</div>
	`, BrandName)
}

// GetEmailTemplate wraps pre-rendered content in the shared email layout.
// title and buttonText are escaped; content is trusted HTML.
func GetEmailTemplate(title, content, buttonText, buttonURL string) string {
	button := ""
	if buttonText != "" && buttonURL != "" {
		button = fmt.Sprintf(`<div style="text-align: center; margin: 30px 0;"><a href="%s" class="btn">%s</a></div>`,
			html.EscapeString(buttonURL), html.EscapeString(buttonText))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s - %s</title>
    <style>
        body { font-family: 'Segoe UI', Arial, sans-serif; line-height: 1.6; color: #1f2937; background-color: #f3f4f6; margin: 0; }
        .email-container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
        .header { background: #111827; }
        .content { padding: 36px 28px; }
        .footer { background-color: #f9fafb; padding: 24px; text-align: center; border-top: 1px solid #e5e7eb; color: #6b7280; font-size: 13px; }
        .btn { display: inline-block; padding: 14px 28px; background: #111827; color: #ffffff; text-decoration: none; border-radius: 6px; font-weight: 600; }
        table.items { width: 100%%; border-collapse: collapse; margin: 16px 0; }
        table.items td, table.items th { padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: left; }
        h2 { font-size: 22px; margin: 0 0 16px 0; }
    </style>
</head>
<body>
    <div class="email-container">
        <div class="header">%s</div>
        <div class="content">
            <h2>%s</h2>
            %s
            %s
        </div>
        <div class="footer">
            This email was sent by %s. Reply to this message if you need help with your order.
        </div>
    </div>
</body>
</html>`, html.EscapeString(title), BrandName, GetLogoHTML(), html.EscapeString(title), content, button, BrandName)
}
