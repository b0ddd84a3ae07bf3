package activities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity is an org-owned bookable offering. Kind selects the module that
// governs its constraints and lifecycle hooks; RawConfig is the constraint
// document parsed via ParseConfig.
type Activity struct {
	ID        uuid.UUID       `json:"id"`
	OrgID     uuid.UUID       `json:"org_id"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	RawConfig json.RawMessage `json:"config"`
	Stages    []string        `json:"stages,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Config parses the activity's constraint document.
func (a *Activity) Config() (Config, error) {
	return ParseConfig(a.RawConfig)
}
