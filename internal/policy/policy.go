// Package policy decides which log operations an authenticated actor may
// perform. Role grants live in a casbin RBAC model; ownership and
// confidentiality are checked against the target log.
package policy

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/atinyakov/commlog/internal/config"
	"github.com/atinyakov/commlog/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects and actions of the casbin policy.
const (
	objLog   = "log"
	objAudit = "audit"

	actList        = "list"
	actView        = "view"
	actViewSecret  = "view_secret"
	actFilterLevel = "filter_level"
	actCreate      = "create"
	actEditOwn     = "edit_own"
	actEditAny     = "edit_any"
	actDeleteOwn   = "delete_own"
	actDeleteAny   = "delete_any"
)

// nonSecretLevels are visible to every authenticated user.
var nonSecretLevels = []models.Confidentiality{models.Public, models.Confidential}

// Policy is the access control policy. It is safe for concurrent use.
type Policy struct {
	enforcer   *casbin.SyncedEnforcer
	deleteRule string
}

// New builds the policy. deleteRule is config.DeleteAdminOnly or
// config.DeleteOwnerOrAdmin; the latter also grants owners delete_own.
func New(deleteRule string) (*Policy, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := loadPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}

	switch deleteRule {
	case config.DeleteAdminOnly:
	case config.DeleteOwnerOrAdmin:
		if _, err := enforcer.AddPolicy(string(models.RoleUser), objLog, actDeleteOwn); err != nil {
			return nil, fmt.Errorf("add delete_own policy: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown delete rule %q", deleteRule)
	}

	return &Policy{enforcer: enforcer, deleteRule: deleteRule}, nil
}

func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// DeleteRule returns the configured delete rule.
func (p *Policy) DeleteRule() string {
	return p.deleteRule
}

// allowed reports whether role holds the grant. Enforcement errors deny.
func (p *Policy) allowed(role models.Role, obj, act string) bool {
	if !role.Valid() {
		return false
	}
	ok, err := p.enforcer.Enforce(string(role), obj, act)
	return err == nil && ok
}

// ListLevels returns the confidentiality levels actor may list, narrowed to
// requested when it is set. A nil result means every level. Only admins may
// ask for secret logs.
func (p *Policy) ListLevels(actor models.Identity, requested models.Confidentiality) ([]models.Confidentiality, error) {
	if !p.allowed(actor.Role, objLog, actList) {
		return nil, models.ErrForbidden
	}

	if p.allowed(actor.Role, objLog, actViewSecret) {
		if requested == "" {
			return nil, nil
		}
		if !p.allowed(actor.Role, objLog, actFilterLevel) {
			return nil, models.ErrForbidden
		}
		return []models.Confidentiality{requested}, nil
	}

	switch requested {
	case "":
		return append([]models.Confidentiality(nil), nonSecretLevels...), nil
	case models.Public, models.Confidential:
		return []models.Confidentiality{requested}, nil
	default:
		return nil, models.ErrForbidden
	}
}

// CanView checks a single-record read. Secret logs are reported as
// models.ErrNotFound to actors who may not see them.
func (p *Policy) CanView(actor models.Identity, l *models.Log) error {
	if !p.allowed(actor.Role, objLog, actView) {
		return models.ErrForbidden
	}
	if l.Confidentiality == models.Secret && !p.allowed(actor.Role, objLog, actViewSecret) {
		return models.ErrNotFound
	}
	return nil
}

// CanCreate checks log creation. The owner of a new log is always the actor.
func (p *Policy) CanCreate(actor models.Identity) error {
	if !p.allowed(actor.Role, objLog, actCreate) {
		return models.ErrForbidden
	}
	return nil
}

// CanEdit allows admins and the owner of l.
func (p *Policy) CanEdit(actor models.Identity, l *models.Log) error {
	if p.allowed(actor.Role, objLog, actEditAny) {
		return nil
	}
	if l.UserID == actor.UserID && p.allowed(actor.Role, objLog, actEditOwn) {
		return nil
	}
	return models.ErrForbidden
}

// CanDelete allows admins, and owners when the delete rule is owner-or-admin.
func (p *Policy) CanDelete(actor models.Identity, l *models.Log) error {
	if p.allowed(actor.Role, objLog, actDeleteAny) {
		return nil
	}
	if l.UserID == actor.UserID && p.allowed(actor.Role, objLog, actDeleteOwn) {
		return nil
	}
	return models.ErrForbidden
}

// CanViewAudit allows reading the access history of a log.
func (p *Policy) CanViewAudit(actor models.Identity) error {
	if !p.allowed(actor.Role, objAudit, actView) {
		return models.ErrForbidden
	}
	return nil
}
