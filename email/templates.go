package email

import (
	"fmt"
	"html/template"
	"strings"
)

var shiftReminderHTML = template.Must(template.New("shift_reminder").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Shift Reminder</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: linear-gradient(135deg, #2c7a4b 0%, #38a169 100%); padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
        <h1 style="color: white; margin: 0; font-size: 24px;">{{.AppName}}</h1>
    </div>

    <div style="background: #ffffff; padding: 30px; border: 1px solid #e0e0e0; border-top: none; border-radius: 0 0 10px 10px;">
        <h2 style="color: #333; margin-top: 0;">Your Shift Is Tomorrow</h2>

        <p>Hello{{if .Name}} <strong>{{.Name}}</strong>{{end}},</p>

        <p>This is a friendly reminder that you are signed up for a volunteer shift tomorrow:</p>

        <div style="background: #f5f5f5; border-radius: 8px; padding: 20px; margin: 25px 0;">
            <p style="margin: 0; font-size: 18px;"><strong>{{.ShiftDate}}</strong></p>
            <p style="margin: 8px 0 0;">{{.StartTime}} &ndash; {{.EndTime}}</p>
            {{if .Notes}}<p style="margin: 8px 0 0; color: #666;">{{.Notes}}</p>{{end}}
        </div>

        <p style="color: #666; font-size: 14px;">
            If you can no longer make it, please cancel your signup so someone else can take your place.
        </p>

        <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 25px 0;">

        <p style="color: #999; font-size: 12px; margin-bottom: 0;">
            This is an automated message from {{.AppName}}.
            {{if .SupportEmail}}If you need help, contact us at <a href="mailto:{{.SupportEmail}}" style="color: #38a169;">{{.SupportEmail}}</a>.{{end}}
        </p>
    </div>
</body>
</html>`))

var signupConfirmationHTML = template.Must(template.New("signup_confirmation").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Signup Confirmation</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: linear-gradient(135deg, #2c7a4b 0%, #38a169 100%); padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
        <h1 style="color: white; margin: 0; font-size: 24px;">{{.AppName}}</h1>
    </div>

    <div style="background: #ffffff; padding: 30px; border: 1px solid #e0e0e0; border-top: none; border-radius: 0 0 10px 10px;">
        <h2 style="color: #333; margin-top: 0;">You're Signed Up!</h2>

        <p>Hello{{if .Name}} <strong>{{.Name}}</strong>{{end}},</p>

        <p>Thank you for volunteering. Your signup is confirmed:</p>

        <div style="background: #f5f5f5; border-radius: 8px; padding: 20px; margin: 25px 0;">
            <p style="margin: 0; font-size: 18px;"><strong>{{.ShiftDate}}</strong></p>
            <p style="margin: 8px 0 0;">{{.StartTime}} &ndash; {{.EndTime}}</p>
            {{if .Notes}}<p style="margin: 8px 0 0; color: #666;">{{.Notes}}</p>{{end}}
        </div>

        <p style="color: #666; font-size: 14px;">
            We'll send you a reminder the day before your shift.
        </p>

        <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 25px 0;">

        <p style="color: #999; font-size: 12px; margin-bottom: 0;">
            This is an automated message from {{.AppName}}.
            {{if .SupportEmail}}If you need help, contact us at <a href="mailto:{{.SupportEmail}}" style="color: #38a169;">{{.SupportEmail}}</a>.{{end}}
        </p>
    </div>
</body>
</html>`))

func renderShiftReminderHTML(data ShiftEmailData) (string, error) {
	var buf strings.Builder
	if err := shiftReminderHTML.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderShiftReminderText(data ShiftEmailData) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("%s - Shift Reminder\n\n", data.AppName))

	if data.Name != "" {
		buf.WriteString(fmt.Sprintf("Hello %s,\n\n", data.Name))
	} else {
		buf.WriteString("Hello,\n\n")
	}

	buf.WriteString("This is a reminder that you are signed up for a volunteer shift tomorrow:\n\n")
	buf.WriteString(fmt.Sprintf("    %s\n", data.ShiftDate))
	buf.WriteString(fmt.Sprintf("    %s - %s\n\n", data.StartTime, data.EndTime))

	if data.Notes != "" {
		buf.WriteString(fmt.Sprintf("Notes: %s\n\n", data.Notes))
	}

	buf.WriteString("If you can no longer make it, please cancel your signup so someone else can take your place.\n")

	if data.SupportEmail != "" {
		buf.WriteString(fmt.Sprintf("\nIf you need help, contact us at %s.\n", data.SupportEmail))
	}

	return buf.String()
}

func renderSignupConfirmationHTML(data ShiftEmailData) (string, error) {
	var buf strings.Builder
	if err := signupConfirmationHTML.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderSignupConfirmationText(data ShiftEmailData) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("%s - Signup Confirmation\n\n", data.AppName))

	if data.Name != "" {
		buf.WriteString(fmt.Sprintf("Hello %s,\n\n", data.Name))
	} else {
		buf.WriteString("Hello,\n\n")
	}

	buf.WriteString("Thank you for volunteering. Your signup is confirmed:\n\n")
	buf.WriteString(fmt.Sprintf("    %s\n", data.ShiftDate))
	buf.WriteString(fmt.Sprintf("    %s - %s\n\n", data.StartTime, data.EndTime))

	if data.Notes != "" {
		buf.WriteString(fmt.Sprintf("Notes: %s\n\n", data.Notes))
	}

	buf.WriteString("We'll send you a reminder the day before your shift.\n")

	if data.SupportEmail != "" {
		buf.WriteString(fmt.Sprintf("\nIf you need help, contact us at %s.\n", data.SupportEmail))
	}

	return buf.String()
}

// fillDefaults backfills AppName and SupportEmail from provider-level config
// when the caller left them empty.
func (d *ShiftEmailData) fillDefaults(appName, supportEmail string) {
	if d.AppName == "" {
		d.AppName = appName
	}
	if d.SupportEmail == "" {
		d.SupportEmail = supportEmail
	}
}
