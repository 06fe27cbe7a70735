package database

import (
	"clubhub/internal/common"

	"github.com/google/uuid"
)

// Session settings read by the row level security policies. These are the
// only names the executor ever sets.
const (
	SettingUserID = "app.current_user_id"
	SettingClubID = "app.current_club_id"
	SettingRole   = "app.current_role"
)

// setSessionSQL binds all three settings transaction-locally. Names are
// literals; values always travel as bind parameters.
const setSessionSQL = "SELECT set_config('" + SettingUserID + "', $1, true), " +
	"set_config('" + SettingClubID + "', $2, true), " +
	"set_config('" + SettingRole + "', $3, true)"

// SessionValues holds the validated values for one transaction. Empty
// strings reset a setting so nothing from a previous borrower survives.
type SessionValues struct {
	UserID string
	ClubID string
	Role   string
}

// Args returns the values in setSessionSQL placeholder order.
func (v SessionValues) Args() []any {
	return []any{v.UserID, v.ClubID, v.Role}
}

// SessionValuesFor validates tc and renders the setting values. A nil
// context, a nil club, a zero id or an unknown role all render as ''.
func SessionValuesFor(tc *common.TenantContext) SessionValues {
	var v SessionValues
	if tc == nil {
		return v
	}
	v.UserID = uuidValue(tc.UserID)
	if tc.ClubID != nil {
		v.ClubID = uuidValue(*tc.ClubID)
	}
	if tc.Role.IsValid() {
		v.Role = string(tc.Role)
	}
	return v
}

func uuidValue(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
