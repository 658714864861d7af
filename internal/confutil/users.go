package confutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/simonvc/confutil/internal/orm"
)

const userLevelPrefix = "sel_groups_"

// Sales levels as named by the sale module, mapped to the names the crm
// module uses for the same groups.
var crmSaleLevels = map[string]string{
	"":              "",
	"See all Leads": "User: All Leads",
	"See Own Leads": "User: Own Leads Only",
	"Manager":       "Manager",
}

// AccessRight ticks or unticks one group on a user.
type AccessRight struct {
	Category string `yaml:"category" json:"category"`
	Group    string `yaml:"group" json:"group"`
	Granted  bool   `yaml:"granted" json:"granted"`
}

// SelectUserLevels sets the user's level in each application. levels maps
// an application category name to a group name in it, e.g.
// "Accounting & Finance": "Financial Manager". An empty group name removes
// the user from the application.
func (c *Configurator) SelectUserLevels(ctx context.Context, userID orm.ID, levels map[string]string) error {
	users, err := c.Model("res.users")
	if err != nil {
		return err
	}
	fields, err := users.FieldsGet(ctx, c.Env())
	if err != nil {
		return err
	}
	byCategory := make(map[string]string)
	for name, f := range fields {
		if strings.HasPrefix(name, userLevelPrefix) {
			byCategory[f.String] = name
		}
	}

	categories := make([]string, 0, len(levels))
	for category := range levels {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	changes := orm.Values{}
	for _, category := range categories {
		field, ok := byCategory[category]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		group, err := c.appGroupID(ctx, category, levels[category])
		if err != nil {
			return err
		}
		if group == 0 {
			changes[field] = false
		} else {
			changes[field] = group
		}
	}
	return users.Write(ctx, c.Env(), []orm.ID{userID}, changes)
}

// SelectSaleUserLevel sets the user's Sales level. level uses the sale
// module's group names ("See all Leads", "See Own Leads", "Manager" or
// empty); when those groups are missing the crm module's names are tried.
func (c *Configurator) SelectSaleUserLevel(ctx context.Context, userID orm.ID, level string) error {
	c.log.Debug().Str("level", level).Msg("sale user level")
	err := c.SelectUserLevels(ctx, userID, map[string]string{"Sales": level})
	if !errors.Is(err, ErrNoRecords) {
		return err
	}
	crmLevel, ok := crmSaleLevels[level]
	if !ok {
		return err
	}
	c.log.Debug().Err(err).Str("level", crmLevel).Msg("sale user level: retrying with crm group name")
	return c.SelectUserLevels(ctx, userID, map[string]string{"Sales": crmLevel})
}

// SetUserAccessRights ticks or unticks groups on the user.
func (c *Configurator) SetUserAccessRights(ctx context.Context, userID orm.ID, rights []AccessRight) error {
	users, err := c.Model("res.users")
	if err != nil {
		return err
	}
	changes := orm.Values{}
	for _, r := range rights {
		if r.Group == "" {
			return fmt.Errorf("access right in %q: %w: group name is empty", r.Category, orm.ErrInvalidValue)
		}
		group, err := c.appGroupID(ctx, r.Category, r.Group)
		if err != nil {
			return err
		}
		changes[fmt.Sprintf("in_group_%d", group)] = r.Granted
	}
	return users.Write(ctx, c.Env(), []orm.ID{userID}, changes)
}

// appGroupID returns the group named group in category, or 0 for an empty
// group name.
func (c *Configurator) appGroupID(ctx context.Context, category, group string) (orm.ID, error) {
	if group == "" {
		return 0, nil
	}
	id, err := c.ExactlyOneID(ctx, "res.groups", orm.Domain{
		orm.Eq("category_id.name", category),
		orm.Eq("name", group),
	})
	if err != nil {
		return 0, fmt.Errorf("group %s / %s: %w", category, group, err)
	}
	return id, nil
}
