package tenant

import (
	"github.com/google/uuid"

	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
)

// ReadFilter merges the caller's scope restriction into a set of search
// params. Master admins read unrestricted; every other role is pinned to its
// hospital and, below admin, its branch. The caller-supplied params can only
// narrow the result set further, never widen it: scope keys are overwritten.
func (c Context) ReadFilter(extra map[string]string) map[string]string {
	params := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		params[k] = v
	}
	if c.Role.ScopedToHospital() {
		params["hospital_id"] = c.HospitalID.String()
	}
	if c.Role.ScopedToBranch() {
		params["branch_id"] = c.BranchID.String()
	}
	return params
}

// AuthorizeAccess checks that the caller may address a record in the given
// hospital/branch, and (for own-user roles) belonging to the given user.
// Nil arguments mean the record field is not being addressed. A violation
// names the offending field; the check never silently narrows a request.
func (c Context) AuthorizeAccess(resource string, hospitalID, branchID, userID *uuid.UUID) error {
	if c.Role == RoleMasterAdmin {
		return nil
	}
	if c.Role.ScopedToHospital() && hospitalID != nil && *hospitalID != *c.HospitalID {
		return apperr.PermissionDenied("hospital_id outside caller scope for %s", resource)
	}
	if c.Role.ScopedToBranch() && branchID != nil && *branchID != *c.BranchID {
		return apperr.PermissionDenied("branch_id outside caller scope for %s", resource)
	}
	if c.Role.OwnUserOnly() && userID != nil && *userID != c.UserID {
		return apperr.PermissionDenied("user_id outside caller scope for %s", resource)
	}
	return nil
}

// ScopedRecord is the tenant-addressable part of a creation payload.
type ScopedRecord struct {
	HospitalID *uuid.UUID
	BranchID   *uuid.UUID
}

// AuthorizeCreation validates a creation payload against the caller's scope
// and normalizes it: a payload addressing a foreign hospital or branch is
// rejected, and absent scope fields are injected from the caller's context.
// Master admins must address scope explicitly since they carry none.
func (c Context) AuthorizeCreation(rec *ScopedRecord) error {
	if c.Role == RoleMasterAdmin {
		if rec.HospitalID == nil {
			return apperr.Validation("hospital_id is required")
		}
		if rec.BranchID == nil {
			return apperr.Validation("branch_id is required")
		}
		return nil
	}

	if c.Role.ScopedToHospital() {
		if rec.HospitalID != nil && *rec.HospitalID != *c.HospitalID {
			return apperr.PermissionDenied("hospital_id outside caller scope")
		}
		rec.HospitalID = c.HospitalID
	}
	if c.Role.ScopedToBranch() {
		if rec.BranchID != nil && *rec.BranchID != *c.BranchID {
			return apperr.PermissionDenied("branch_id outside caller scope")
		}
		rec.BranchID = c.BranchID
	} else if rec.BranchID == nil {
		// Admin creating without a branch: the record must still land in a
		// branch the admin's hospital owns; require it explicitly.
		return apperr.Validation("branch_id is required")
	}
	return nil
}
