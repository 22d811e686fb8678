package registry

// DefaultAdminRole is the role token that grants management rights over every tool.
const DefaultAdminRole = "admin"

// Relationship describes how a principal relates to the tool a mutation targets.
type Relationship string

const (
	// RelAuthenticated is any authenticated principal with no particular tie to the target.
	RelAuthenticated Relationship = "authenticated"
	// RelOwner is the principal recorded as the tool's owner.
	RelOwner Relationship = "owner"
	// RelAdmin is a principal carrying the admin role.
	RelAdmin Relationship = "admin"
)

// Decision is the outcome of a single authorization check. It is never persisted.
type Decision struct {
	Allowed bool
	Reason  string
}

// policyTable is the complete authorization rule of the registry.
// Any (operation, relationship) pair not listed here is denied.
var policyTable = map[Operation]map[Relationship]bool{
	OpCreate: {
		RelAuthenticated: true,
		RelOwner:         true,
		RelAdmin:         true,
	},
	OpUpdate: {
		RelOwner: true,
		RelAdmin: true,
	},
	OpRemove: {
		RelOwner: true,
		RelAdmin: true,
	},
}

// Evaluator decides whether a principal may perform a mutation.
// It performs no I/O and holds no state besides its configuration.
type Evaluator struct {
	adminRole string
}

func NewEvaluator(adminRole string) *Evaluator {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	return &Evaluator{adminRole: adminRole}
}

// AdminRole returns the role token treated as admin.
func (e *Evaluator) AdminRole() string {
	return e.adminRole
}

// Relationships returns every relationship the principal holds to a tool owned by ownerID.
// For create, ownerID is empty since the tool does not exist yet.
func (e *Evaluator) Relationships(p *Principal, ownerID string) []Relationship {
	rels := []Relationship{RelAuthenticated}
	if ownerID != "" && p.ID == ownerID {
		rels = append(rels, RelOwner)
	}
	if p.HasRole(e.adminRole) {
		rels = append(rels, RelAdmin)
	}
	return rels
}

// Evaluate looks up the policy table for every relationship the principal holds.
// The deny reason distinguishes a missing principal from a principal that is not entitled,
// without revealing who the owner is.
func (e *Evaluator) Evaluate(p *Principal, op Operation, ownerID string) Decision {
	if p == nil || p.ID == "" {
		return Decision{Allowed: false, Reason: "request is not authenticated"}
	}
	rules, ok := policyTable[op]
	if !ok {
		return Decision{Allowed: false, Reason: "unknown operation " + string(op)}
	}
	rels := e.Relationships(p, ownerID)
	for _, rel := range rels {
		if rules[rel] {
			return Decision{Allowed: true, Reason: "granted to " + string(rel)}
		}
	}
	return Decision{
		Allowed: false,
		Reason:  "not the owner of this tool and lacks the " + e.adminRole + " role",
	}
}

// decisionError converts a deny decision into the matching registry error.
func decisionError(d Decision) error {
	if d.Allowed {
		return nil
	}
	return &Error{Kind: KindPermissionDenied, Message: d.Reason}
}
