package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, userID, ntype, title, body, dedupeKey string) (bool, error)
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Item, error)
	CountNotifications(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, key string) (Template, error)
	UpsertTemplate(ctx context.Context, tmpl Template) error
}

// Directory resolves recipient roles to user ids.
type Directory interface {
	UserEmail(ctx context.Context, userID string) (string, error)
	ManagerOf(ctx context.Context, userID string) (string, error)
	UsersWithRole(ctx context.Context, roleName string) ([]string, error)
}
