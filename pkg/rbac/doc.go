// Package rbac implements role-based access control for organizations.
//
// A principal resolves to a role in four ordered steps: owning an
// organization makes the caller Admin regardless of anything else; otherwise
// the employee row in the target organization supplies an assignable role
// (HOD, Team Lead, Team Member, Unassigned). The effective permission bundle
// for that role comes from a fixed table for Admin, the organization's
// stored override when one exists, or the role defaults.
//
// The Gate middleware runs this pipeline per request and converts every
// failure into a structured {"message": ...} denial with the matching HTTP
// status: missing or bad credentials are 401, an insufficient bundle is 403,
// missing organizational context is 404, and collaborator failures fail
// closed as 500.
package rbac
