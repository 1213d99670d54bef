// Package policy decides what a member may do on an investigation by evaluating a Cedar
// policy against the rank of their role.
package policy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cedar-policy/cedar-go"
)

//go:embed policies/roles.cedar
var rolesPolicy []byte

type Permission string

const (
	ViewInvestigation   Permission = "view_investigation"
	ManageInvestigation Permission = "manage_investigation"
	AdminInvestigation  Permission = "admin_investigation"
	MasterInvestigation Permission = "master_investigation"
)

// Permissions lists every permission from least to most privileged.
var Permissions = []Permission{ViewInvestigation, ManageInvestigation, AdminInvestigation, MasterInvestigation}

const (
	userType          = "Newsroom::User"
	actionType        = "Newsroom::Action"
	investigationType = "Newsroom::Investigation"
)

// Principal is the caller as seen by the policy. Rank is 0 for non-members.
type Principal struct {
	UserID    int64
	Superuser bool
	Rank      int
}

type Authorizer struct {
	policySet *cedar.PolicySet
}

func NewAuthorizer() (*Authorizer, error) {
	ps, err := cedar.NewPolicySetFromBytes("roles.cedar", rolesPolicy)
	if err != nil {
		return nil, fmt.Errorf("policy: parse roles.cedar: %w", err)
	}
	return &Authorizer{policySet: ps}, nil
}

// IsAuthorized reports whether p holds perm on the investigation.
func (a *Authorizer) IsAuthorized(p Principal, perm Permission, investigationID int64) (bool, error) {
	userID := strconv.FormatInt(p.UserID, 10)

	entitiesJSON := []map[string]any{
		{
			"uid": map[string]string{"type": userType, "id": userID},
			"attrs": map[string]any{
				"rank":      p.Rank,
				"superuser": p.Superuser,
			},
			"parents": []any{},
		},
	}
	raw, err := json.Marshal(entitiesJSON)
	if err != nil {
		return false, fmt.Errorf("policy: marshal entities: %w", err)
	}
	var entities cedar.EntityMap
	if err = json.Unmarshal(raw, &entities); err != nil {
		return false, fmt.Errorf("policy: unmarshal entities: %w", err)
	}

	req := cedar.Request{
		Principal: cedar.NewEntityUID(cedar.EntityType(userType), cedar.String(userID)),
		Action:    cedar.NewEntityUID(cedar.EntityType(actionType), cedar.String(perm)),
		Resource:  cedar.NewEntityUID(cedar.EntityType(investigationType), cedar.String(strconv.FormatInt(investigationID, 10))),
		Context:   cedar.NewRecord(cedar.RecordMap{}),
	}

	decision, _ := a.policySet.IsAuthorized(entities, req)
	return decision == cedar.Allow, nil
}
