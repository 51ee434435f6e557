package schools

import "time"

// School is the tenant isolation boundary. Every scoped record carries
// its ID.
type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileFields lists the school profile columns that may be rewritten
// through the sensitive-change flow. Anything else in a proposed-changes
// payload is rejected up front.
var ProfileFields = map[string]struct{}{
	"name":      {},
	"subdomain": {},
	"email":     {},
	"phone":     {},
	"address":   {},
}
