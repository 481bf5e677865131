package authz

// PermissionTuple is one row of the denormalized permission projection:
// the grant a single group gives a single user on a single resource.
type PermissionTuple struct {
	UserID   int64  `json:"user_id"`
	GroupID  int64  `json:"group_id"`
	Resource string `json:"resource"`
	Write    bool   `json:"write"`
	Update   bool   `json:"update"`
	Delete   bool   `json:"delete"`
}

// ResourcePermission is the consolidated permission a user holds on a
// resource after merging the grants of every group they belong to.
// Read access is implicit: holding any grant row at all allows GET.
type ResourcePermission struct {
	Resource string `json:"resource"`
	Write    bool   `json:"write"`
	Update   bool   `json:"update"`
	Delete   bool   `json:"delete"`
}

// Merge folds another set of flags into p. A flag granted by any
// contributing group survives the merge: true dominates false.
func (p *ResourcePermission) Merge(other ResourcePermission) {
	p.Write = p.Write || other.Write
	p.Update = p.Update || other.Update
	p.Delete = p.Delete || other.Delete
}

// permissionFlags is the cached value payload. The key carries the
// user, group and resource; only the three flags are serialized.
type permissionFlags struct {
	Write  bool `json:"write"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}
