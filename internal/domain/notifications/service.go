package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"kpi/internal/domain/auth"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store        StoreAPI
	directory    Directory
	mailer       Mailer
	from         string
	emailEnabled bool
}

func NewService(store StoreAPI, directory Directory, mailer Mailer, from string, emailEnabled bool) *Service {
	return &Service{store: store, directory: directory, mailer: mailer, from: from, emailEnabled: emailEnabled}
}

// Dispatch delivers one notification to every user behind its role and
// returns how many users received it. A role that resolves to nobody is
// not an error.
func (s *Service) Dispatch(ctx context.Context, n Notification) (int, error) {
	users, err := s.recipients(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("resolve %s recipients: %w", n.Role, err)
	}
	if len(users) == 0 {
		slog.Warn("notification has no recipients", "role", n.Role, "employee", n.EmployeeIdentifier)
		return 0, nil
	}

	tmpl, err := s.store.GetTemplate(ctx, n.TemplateKey)
	if err != nil {
		return 0, fmt.Errorf("load template %s: %w", n.TemplateKey, err)
	}
	subject, body, err := Render(tmpl, n.Variables)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, userID := range users {
		created, err := s.store.CreateNotification(ctx, userID, n.TemplateKey, subject, body, n.DedupeKey)
		if err != nil {
			return delivered, err
		}
		if !created {
			continue
		}
		delivered++
		s.sendEmail(ctx, userID, subject, body)
	}
	return delivered, nil
}

func (s *Service) sendEmail(ctx context.Context, userID, subject, body string) {
	if !s.emailEnabled || s.mailer == nil {
		return
	}
	to, err := s.directory.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("email lookup failed", "user", userID, "err", err)
		return
	}
	if err := s.mailer.Send(ctx, s.from, to, subject, body); err != nil {
		slog.Warn("email send failed", "user", userID, "err", err)
	}
}

func (s *Service) recipients(ctx context.Context, n Notification) ([]string, error) {
	switch n.Role {
	case RecipientEmployee:
		if n.UserID == "" {
			return nil, nil
		}
		return []string{n.UserID}, nil
	case RecipientManager:
		if n.UserID == "" {
			return nil, nil
		}
		manager, err := s.directory.ManagerOf(ctx, n.UserID)
		if err != nil || manager == "" {
			return nil, err
		}
		return []string{manager}, nil
	}
	roleName, ok := auth.RecipientRoles[n.Role]
	if !ok {
		return nil, fmt.Errorf("unknown recipient role %q", n.Role)
	}
	return s.directory.UsersWithRole(ctx, roleName)
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Item, int, error) {
	items, err := s.store.ListNotifications(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountNotifications(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) Templates(ctx context.Context) ([]Template, error) {
	return s.store.ListTemplates(ctx)
}

// UpdateTemplate rejects templates that do not parse.
func (s *Service) UpdateTemplate(ctx context.Context, tmpl Template) (Template, error) {
	tmpl.Key = strings.TrimSpace(tmpl.Key)
	if tmpl.Key == "" || strings.TrimSpace(tmpl.Subject) == "" || strings.TrimSpace(tmpl.Body) == "" {
		return Template{}, fmt.Errorf("%w: key, subject and body are required", ErrTemplateInvalid)
	}
	if _, _, err := Render(tmpl, nil); err != nil {
		return Template{}, err
	}
	if err := s.store.UpsertTemplate(ctx, tmpl); err != nil {
		return Template{}, err
	}
	return s.store.GetTemplate(ctx, tmpl.Key)
}

// SeedTemplates inserts the defaults that are not present yet.
func (s *Service) SeedTemplates(ctx context.Context) error {
	for _, tmpl := range DefaultTemplates {
		_, err := s.store.GetTemplate(ctx, tmpl.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return err
		}
		if err := s.store.UpsertTemplate(ctx, tmpl); err != nil {
			return err
		}
	}
	return nil
}

// Render fills subject and body. Missing variables render empty.
func Render(tmpl Template, vars map[string]any) (string, string, error) {
	subject, err := execute(tmpl.Key+".subject", tmpl.Subject, vars)
	if err != nil {
		return "", "", err
	}
	body, err := execute(tmpl.Key+".body", tmpl.Body, vars)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func execute(name, text string, vars map[string]any) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateInvalid, err)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateInvalid, err)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
