// Package orgs manages organizations, departments, employees, and
// invitations.
//
// An organization has exactly one owning user. Employees are membership
// records tying a user to one organization with an organizational role and an
// optional department; the uniqueness rules the permission layer depends on
// (one employee per email per organization, one organization per user) are
// enforced by unique indexes with application-level pre-checks as the fast
// path. Invitations carry a preassigned role and department; accepting one
// creates the employee row and links the user, atomically.
//
// Role fields here are plain strings. The closed role taxonomy and all
// permission semantics live in pkg/rbac, which consumes this package's
// records through lookup interfaces.
package orgs
