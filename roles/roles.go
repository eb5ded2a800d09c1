package roles

import "strings"

// Role is a single grantable flag occupying one bit of a [Mask].
type Role uint64

const (
	Admin Role = 1 << iota
	Author
	Collaborator
	Consultant
	Consumer
	Contributor
	Coordinator
	Creator
	Developer
	Director
	Editor
	Employee
	Maintainer
	Manager
	Moderator
	Publisher
	Reviewer
	Subscriber
	SuperAdmin
	SuperEditor
	SuperModerator
	Translator

	roleCount = iota
)

// table fixes the canonical order and names. Append only.
var table = [roleCount]struct {
	role Role
	name string
}{
	{Admin, "admin"},
	{Author, "author"},
	{Collaborator, "collaborator"},
	{Consultant, "consultant"},
	{Consumer, "consumer"},
	{Contributor, "contributor"},
	{Coordinator, "coordinator"},
	{Creator, "creator"},
	{Developer, "developer"},
	{Director, "director"},
	{Editor, "editor"},
	{Employee, "employee"},
	{Maintainer, "maintainer"},
	{Manager, "manager"},
	{Moderator, "moderator"},
	{Publisher, "publisher"},
	{Reviewer, "reviewer"},
	{Subscriber, "subscriber"},
	{SuperAdmin, "super_admin"},
	{SuperEditor, "super_editor"},
	{SuperModerator, "super_moderator"},
	{Translator, "translator"},
}

// validBits is the union of every defined role.
const validBits = Role(1<<roleCount) - 1

// Valid reports whether r is exactly one defined role.
func (r Role) Valid() bool {
	return r != 0 && r&(r-1) == 0 && r&validBits == r
}

func (r Role) String() string {
	for _, entry := range table {
		if entry.role == r {
			return entry.name
		}
	}
	return "invalid"
}

// All returns the defined roles in canonical order.
func All() []Role {
	out := make([]Role, roleCount)
	for i, entry := range table {
		out[i] = entry.role
	}
	return out
}

// Lookup resolves a role by its canonical name, case-insensitively.
func Lookup(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, entry := range table {
		if entry.name == name {
			return entry.role, true
		}
	}
	return 0, false
}
