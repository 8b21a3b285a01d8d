package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
	"diagnostics-api/monitor"
)

// Mailer delivers one HTML message.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

// mailVerifier is implemented by mailers that can check their relay.
type mailVerifier interface {
	Verify(ctx context.Context) error
}

// Branding is the tenant look applied to one e-mail. Empty fields fall back
// to the platform defaults.
type Branding struct {
	AccentColor string
	LogoURL     string
}

// EmailService renders and sends the transactional e-mails of the platform.
// Every method returns the delivery error; callers decide whether it matters.
type EmailService struct {
	mailer       Mailer
	frontendURL  string
	logoURL      string
	assetBaseURL string
	logger       *zap.Logger
}

// NewEmailService returns a service. logoURL is the platform logo used when
// a tenant has none.
func NewEmailService(mailer Mailer, frontendURL, logoURL string, logger *zap.Logger) *EmailService {
	return &EmailService{
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logoURL:     logoURL,
		logger:      loggerOrDefault(logger),
	}
}

// WithAssetBaseURL sets the API address tenant logo links are built on.
func (s *EmailService) WithAssetBaseURL(baseURL string) *EmailService {
	s.assetBaseURL = baseURL
	return s
}

// Branding derives the e-mail look of tenant. A nil tenant yields defaults.
func (s *EmailService) Branding(tenant *models.Tenant) Branding {
	if tenant == nil {
		return Branding{}
	}
	b := Branding{AccentColor: tenant.PrimaryColor}
	if s != nil && s.assetBaseURL != "" && tenant.LogoPath != nil && *tenant.LogoPath != "" {
		b.LogoURL = TenantAssetURL(s.assetBaseURL, tenant.ID, TenantLogo)
	}
	return b
}

// FrontendLink joins a path onto the configured frontend URL.
func (s *EmailService) FrontendLink(path string) string {
	return s.frontendURL + "/" + strings.TrimLeft(path, "/")
}

func (s *EmailService) send(ctx context.Context, templateName string, to []string, content emailContent, brand Branding) error {
	if s == nil || s.mailer == nil {
		return fmt.Errorf("send %s: mailer not configured", templateName)
	}
	logo := brand.LogoURL
	if logo == "" {
		logo = s.logoURL
	}
	html := renderEmail(content, brand.AccentColor, logo)
	if err := s.mailer.Send(ctx, to, content.Subject, html); err != nil {
		monitor.IncrementEmailSent(templateName, "failed")
		return fmt.Errorf("send %s: %w", templateName, err)
	}
	monitor.IncrementEmailSent(templateName, "sent")
	s.logger.Info("email sent", zap.String("template", templateName), zap.Int("recipients", len(to)))
	return nil
}

type WelcomeEmail struct {
	To               string
	Name             string
	OrganizationName string
	ProjectName      string
	ConsultantName   string
	LoginURL         string
	Brand            Branding
}

func (s *EmailService) SendWelcome(ctx context.Context, in WelcomeEmail) error {
	return s.send(ctx, "welcome", []string{in.To}, emailContent{
		Subject: "Welcome to your organizational diagnostics project",
		Paragraphs: []string{
			fmt.Sprintf("Hello %s,", in.Name),
			fmt.Sprintf("A diagnostics project was opened for <strong>%s</strong>. Set your password to access the client portal and start onboarding.", in.OrganizationName),
		},
		Meta: []emailMetaItem{
			{Label: "Project", Value: in.ProjectName},
			{Label: "Consultant", Value: in.ConsultantName},
		},
		ButtonText: "Access the portal",
		ButtonURL:  in.LoginURL,
		Footer:     "This link expires in 24 hours.",
	}, in.Brand)
}

type OnboardingReminderEmail struct {
	To          string
	Name        string
	ProjectName string
	Progress    int
	Link        string
	Brand       Branding
}

func (s *EmailService) SendOnboardingReminder(ctx context.Context, in OnboardingReminderEmail) error {
	return s.send(ctx, "onboarding_reminder", []string{in.To}, emailContent{
		Subject: "Reminder: complete your project onboarding",
		Paragraphs: []string{
			fmt.Sprintf("Hello %s,", in.Name),
			"Your onboarding is not finished yet. Please send the pending documents or mark the steps that do not apply.",
		},
		Meta: []emailMetaItem{
			{Label: "Project", Value: in.ProjectName},
			{Label: "Progress", Value: fmt.Sprintf("%d%%", in.Progress)},
		},
		ButtonText: "Continue onboarding",
		ButtonURL:  in.Link,
	}, in.Brand)
}

func (s *EmailService) SendPasswordReset(ctx context.Context, to, name, link string) error {
	return s.send(ctx, "password_reset", []string{to}, emailContent{
		Subject: "Password reset",
		Paragraphs: []string{
			fmt.Sprintf("Hello %s,", name),
			"We received a request to reset your password. If you did not ask for it, ignore this message.",
		},
		ButtonText: "Reset password",
		ButtonURL:  link,
		Footer:     "This link expires in 1 hour.",
	}, Branding{})
}

func (s *EmailService) SendAccountActivated(ctx context.Context, to, name string) error {
	return s.send(ctx, "account_activated", []string{to}, emailContent{
		Subject: "Your account is active",
		Paragraphs: []string{
			fmt.Sprintf("Hello %s,", name),
			"Your password was set and your account is now active.",
		},
		ButtonText: "Sign in",
		ButtonURL:  s.FrontendLink("/login"),
	}, Branding{})
}

type SurveyInvitationEmail struct {
	To          string
	SurveyName  string
	Link        string
	Reminder    bool
	Brand       Branding
}

func (s *EmailService) SendSurveyInvitation(ctx context.Context, in SurveyInvitationEmail) error {
	subject := "You are invited to answer: " + in.SurveyName
	name := "survey_invitation"
	intro := "Your opinion matters. The survey takes only a few minutes."
	if in.Reminder {
		subject = "Reminder: " + in.SurveyName
		name = "survey_reminder"
		intro = "We have not received your answers yet. The survey is still open."
	}
	return s.send(ctx, name, []string{in.To}, emailContent{
		Subject:    subject,
		Paragraphs: []string{"Hello,", intro},
		ButtonText: "Answer survey",
		ButtonURL:  in.Link,
	}, in.Brand)
}

type ReportPublishedEmail struct {
	To          []string
	ProjectName string
	ReportTitle string
	Link        string
	Brand       Branding
}

func (s *EmailService) SendReportPublished(ctx context.Context, in ReportPublishedEmail) error {
	return s.send(ctx, "report_published", in.To, emailContent{
		Subject: "New report available: " + in.ReportTitle,
		Paragraphs: []string{
			"Hello,",
			fmt.Sprintf("A new report was published for <strong>%s</strong>.", in.ProjectName),
		},
		ButtonText: "Open report",
		ButtonURL:  in.Link,
	}, in.Brand)
}

// CheckConnection dials the mail relay without sending anything.
func (s *EmailService) CheckConnection(ctx context.Context) error {
	if s == nil || s.mailer == nil {
		return apperrors.Unavailable("mail delivery is not configured", nil)
	}
	v, ok := s.mailer.(mailVerifier)
	if !ok {
		return nil
	}
	if err := v.Verify(ctx); err != nil {
		return apperrors.Unavailable("SMTP connection failed", err)
	}
	return nil
}

// SendTest delivers a sample welcome e-mail to check rendering and delivery.
func (s *EmailService) SendTest(ctx context.Context, to string, brand Branding) error {
	err := s.send(ctx, "test", []string{to}, emailContent{
		Subject: "Test e-mail",
		Paragraphs: []string{
			"Hello,",
			"This is a test message from the diagnostics platform. If you can read it, delivery works.",
		},
		Meta: []emailMetaItem{
			{Label: "Project", Value: "Sample project"},
			{Label: "Organization", Value: "Sample organization"},
		},
		ButtonText: "Open the portal",
		ButtonURL:  s.FrontendLink("/login"),
	}, brand)
	if err != nil {
		return apperrors.Unavailable("test e-mail could not be delivered", err)
	}
	return nil
}
