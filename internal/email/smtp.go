package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendAssignmentNotice(ctx context.Context, toEmail, technicianName, category, incidenceURL string) error {
	content, err := renderEmailTemplate("assignment.html", assignmentEmailData{
		baseEmailData: baseEmailData{
			Title:    "Incidencia asignada",
			Heading:  "Tiene una nueva incidencia",
			CTALabel: "Ver incidencia",
			CTAURL:   incidenceURL,
		},
		TechnicianName: technicianName,
		Category:       category,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectAssignmentFmt, category), content)
}

func (s *SMTPSender) SendRatingInvitation(ctx context.Context, toEmail, beneficiaryName, category, ratingURL string) error {
	content, err := renderEmailTemplate("rating_invitation.html", ratingInvitationEmailData{
		baseEmailData: baseEmailData{
			Title:    "Califique la atención",
			Heading:  "Su incidencia fue resuelta",
			CTALabel: "Calificar",
			CTAURL:   ratingURL,
		},
		BeneficiaryName: beneficiaryName,
		Category:        category,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectRatingInvitation, content)
}

func (s *SMTPSender) SendPosventaReviewed(ctx context.Context, toEmail, beneficiaryName, verdict, formURL string) error {
	content, err := renderEmailTemplate("posventa_reviewed.html", posventaReviewedEmailData{
		baseEmailData: baseEmailData{
			Title:    "Posventa revisada",
			Heading:  "Formulario de posventa revisado",
			CTALabel: "Ver formulario",
			CTAURL:   formURL,
		},
		BeneficiaryName: beneficiaryName,
		Verdict:         verdictLabel(verdict),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectPosventaReviewed, content)
}

func (s *SMTPSender) SendVisitDigest(ctx context.Context, toEmail, technicianName, date string, visits []VisitItem) error {
	content, err := renderEmailTemplate("visit_digest.html", visitDigestEmailData{
		baseEmailData: baseEmailData{
			Title:   "Visitas sugeridas",
			Heading: "Visitas sugeridas",
		},
		TechnicianName: technicianName,
		Date:           date,
		Visits:         visits,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectVisitDigestFmt, date), content)
}

var _ Sender = (*SMTPSender)(nil)
