package reconcile

import (
	"fmt"
	"time"
)

// UsersPerPage is the page size of the users-without-pins listing.
const UsersPerPage = 25

// Failure is one member the run could not process.
type Failure struct {
	UserID  string `json:"userId"`
	UserTag string `json:"userTag"`
	Reason  string `json:"reason"`
}

// Result is the outcome of one Run.
type Result struct {
	RunID            string    `json:"runId"`
	Target           Target    `json:"-"`
	Processed        int       `json:"processed"`
	NewRecords       int       `json:"newRecords"`
	UpdatedRecords   int       `json:"updatedRecords"`
	NoUpdateNeeded   int       `json:"noUpdateNeeded"`
	UsersWithoutPins []Member  `json:"usersWithoutPins"`
	Failures         []Failure `json:"failures"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
}

// Summary is the one-paragraph description shown after a run.
func (r Result) Summary() string {
	s := fmt.Sprintf("Processed %d members in the %s role.\n%d new records created, %d records updated, %d did not need updates.",
		r.Processed, r.Target.RoleName, r.NewRecords, r.UpdatedRecords, r.NoUpdateNeeded)
	if n := len(r.Failures); n > 0 {
		s += fmt.Sprintf("\n%d members failed and will be retried on the next run.", n)
	}
	return s
}

// UserPage is one display page of members.
type UserPage struct {
	Users      []Member
	Page       int
	TotalPages int
	Total      int
}

// Paginate slices users into pages of UsersPerPage. The page is clamped into
// range; an empty list is a single empty page.
func Paginate(users []Member, page int) UserPage {
	total := len(users)
	pages := max((total+UsersPerPage-1)/UsersPerPage, 1)
	page = min(max(page, 1), pages)

	start := min((page-1)*UsersPerPage, total)
	end := min(start+UsersPerPage, total)
	return UserPage{Users: users[start:end], Page: page, TotalPages: pages, Total: total}
}
