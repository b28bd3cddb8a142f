package mailer

import (
	"bytes"
	"html/template"
)

// Email subjects.
const (
	SubjectReminder    = "Your habits are waiting..."
	SubjectCredentials = "Your Habit Tracker Credentials"
	SubjectResetOTP    = "Password Reset OTP"
)

var reminderTmpl = template.Must(template.New("reminder").Parse(`
<div style="font-family: Arial, sans-serif; padding: 20px; border: 1px solid #eee; border-radius: 10px; background: #fafafa;">
    <h2 style="color: #00ccff; text-align: center;">Don't break the chain!</h2>
    <p style="font-size: 1.1rem; color: #333;">Hi <strong>{{.Username}}</strong>,</p>
    <p style="line-height: 1.6; color: #555;">
        We noticed your dashboard has been a bit quiet for the past <strong>2 days</strong>.
    </p>
    <div style="background: #fff; padding: 15px; border-radius: 8px; border-left: 4px solid #00ccff; margin: 20px 0;">
        <p style="margin: 0; font-style: italic; color: #666;">
            "Consistency is the only bridge between your goals and your reality."
        </p>
    </div>
    <p style="font-weight: bold; color: #333;">Why jump back in?</p>
    <ul style="color: #555;">
        <li>Protect your current streaks.</li>
        <li>Keep your visual analytics growing.</li>
        <li>Strengthen your self-discipline.</li>
    </ul>
    <div style="text-align: center; margin-top: 30px;">
        <a href="{{.FrontendURL}}"
           style="background: #00ccff; color: #000; padding: 12px 30px; text-decoration: none; border-radius: 50px; font-weight: 900;">
           GO TO MY DASHBOARD
        </a>
    </div>
    <p style="color: #888; font-size: 0.8rem; margin-top: 40px; text-align: center; border-top: 1px solid #eee; padding-top: 20px;">
        Discipline over motivation.<br>
        <strong>The Habit Tracker Team</strong>
    </p>
</div>`))

var credentialsTmpl = template.Must(template.New("credentials").Parse(`
<div style="font-family: Arial, sans-serif; padding: 20px; border: 1px solid #eee; border-radius: 10px;">
    <h2 style="color: #00ccff;">Welcome to Habit Tracker!</h2>
    <p>An administrator has created an account for you.</p>
    <div style="background: #f9f9f9; padding: 15px; border-radius: 5px; margin: 20px 0;">
        <p><strong>Username:</strong> {{.Username}}</p>
        <p><strong>Password:</strong> {{.Password}}</p>
    </div>
    <p>You can now log in at <a href="{{.FrontendURL}}/login">Habit Tracker Login</a></p>
    <p style="color: #888; font-size: 12px; margin-top: 30px;">Please change your password after your first login.</p>
</div>`))

var otpTmpl = template.Must(template.New("otp").Parse(`
<div style="font-family: sans-serif; padding: 20px;">
    <h2>Password Reset Request</h2>
    <p>Use the following OTP to reset your password. This code is valid for 10 minutes.</p>
    <div style="font-size: 24px; font-weight: bold; color: #00ccff; letter-spacing: 5px; margin: 20px 0;">
        {{.OTP}}
    </div>
    <p>If you didn't request this, please ignore this email.</p>
</div>`))

// ReminderBody renders the inactivity nudge email.
func ReminderBody(username, frontendURL string) string {
	return render(reminderTmpl, map[string]string{"Username": username, "FrontendURL": frontendURL})
}

// CredentialsBody renders the admin-created-account email.
func CredentialsBody(username, password, frontendURL string) string {
	return render(credentialsTmpl, map[string]string{
		"Username": username, "Password": password, "FrontendURL": frontendURL,
	})
}

// OTPBody renders the password reset OTP email.
func OTPBody(otp string) string {
	return render(otpTmpl, map[string]string{"OTP": otp})
}

func render(t *template.Template, data interface{}) string {
	var buf bytes.Buffer
	// Templates are static; render cannot fail on map input.
	_ = t.Execute(&buf, data)
	return buf.String()
}
