package kpi

import (
	"context"
	"strings"
)

// DirectoryEntry is one known employee in an in-memory roster.
type DirectoryEntry struct {
	UserID     string `json:"userId" yaml:"userId"`
	EmployeeID string `json:"employeeId" yaml:"employeeId"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email" yaml:"email"`
}

// RosterResolver matches identities against a fixed roster. It backs the
// offline CLI and tests; the server resolves against the user directory.
type RosterResolver struct {
	byEmployeeID map[string]string
	byEmail      map[string]string
	byName       map[string]string
}

func NewRosterResolver(entries []DirectoryEntry) *RosterResolver {
	r := &RosterResolver{
		byEmployeeID: map[string]string{},
		byEmail:      map[string]string{},
		byName:       map[string]string{},
	}
	for _, entry := range entries {
		userID := entry.UserID
		if userID == "" {
			userID = entry.EmployeeID
		}
		if key := foldKey(entry.EmployeeID); key != "" {
			r.byEmployeeID[key] = userID
		}
		if key := foldKey(entry.Email); key != "" {
			r.byEmail[key] = userID
		}
		if key := foldKey(entry.Name); key != "" {
			r.byName[key] = userID
		}
	}
	return r
}

func (r *RosterResolver) Resolve(_ context.Context, identity Identity) (Resolution, error) {
	if id, ok := r.byEmployeeID[foldKey(identity.EmployeeID)]; ok {
		return Resolution{UserID: id, Matched: true, MatchedBy: "employee_id"}, nil
	}
	if id, ok := r.byEmail[foldKey(identity.Email)]; ok {
		return Resolution{UserID: id, Matched: true, MatchedBy: "email"}, nil
	}
	if id, ok := r.byName[foldKey(identity.Name)]; ok {
		return Resolution{UserID: id, Matched: true, MatchedBy: "name"}, nil
	}
	return Resolution{}, nil
}

func foldKey(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
