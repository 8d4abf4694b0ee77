package rebellion

import (
	"fmt"
	"math/rand"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Group is the capability group a role belongs to.
type Group uint8

const (
	GroupCommunications Group = iota + 1
	GroupFinance
	GroupForce
	GroupSpecialInterests
)

var groupNames = map[Group]string{
	GroupCommunications:   "communications",
	GroupFinance:          "finance",
	GroupForce:            "force",
	GroupSpecialInterests: "special_interests",
}

func (g Group) String() string { return groupNames[g] }

// RoleID identifies one role of the catalogue.
type RoleID uint8

const (
	RoleNone RoleID = iota
	RoleDirector
	RoleReporter
	RoleBanker
	RoleFarmer
	RoleCapitalist
	RoleGuerrilla
	RolePeacekeeper
	RoleMercenary
	RolePolitician
	RoleLawyer
)

var roleNames = map[RoleID]string{
	RoleDirector:    "director",
	RoleReporter:    "reporter",
	RoleBanker:      "banker",
	RoleFarmer:      "farmer",
	RoleCapitalist:  "capitalist",
	RoleGuerrilla:   "guerrilla",
	RolePeacekeeper: "peacekeeper",
	RoleMercenary:   "mercenary",
	RolePolitician:  "politician",
	RoleLawyer:      "lawyer",
}

func (r RoleID) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "none"
}

func (r RoleID) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RoleID) UnmarshalText(b []byte) error {
	id, err := LookupRole(string(b))
	if err != nil {
		return err
	}
	*r = id
	return nil
}

var titleCaser = cases.Title(language.English)

// DisplayName is the human-readable role name, e.g. "Peacekeeper".
func (r RoleID) DisplayName() string {
	return titleCaser.String(strings.ReplaceAll(r.String(), "_", " "))
}

// ActionID identifies an action a player may declare on their turn.
type ActionID uint8

const (
	ActionNone ActionID = iota
	ActionIncome
	ActionForeignAid
	ActionCoup
	ActionExchange
	ActionReport
	ActionTax
	ActionHarvest
	ActionInvest
	ActionAssassinate
	ActionRaid
	ActionSteal
	ActionLitigate
)

// Action describes the rules of one action.
type Action struct {
	ID          ActionID
	Name        string
	Role        RoleID // RoleNone for general actions anyone may take
	Cost        int
	Targeted    bool
	Description string
}

// Claims reports whether declaring the action claims a role and is therefore
// open to challenge.
func (a *Action) Claims() bool { return a.Role != RoleNone }

// Role is one entry of the role catalogue.
type Role struct {
	ID       RoleID
	Group    Group
	Advanced bool
	Action   ActionID
	Blocks   []ActionID
}

// CanBlock reports whether the role lists the action among its blocks.
func (r *Role) CanBlock(a ActionID) bool {
	for _, b := range r.Blocks {
		if b == a {
			return true
		}
	}
	return false
}

const (
	CoupCost      = 7
	MustCoupCoins = 10
	StartingCoins = 2
	StartingCards = 2
	CopiesPerRole = 3
	RequiredRoles = 5
	MinPlayers    = 2
	MaxPlayers    = 6
)

var actions = []*Action{
	{ID: ActionIncome, Name: "income", Description: "Take 1 coin"},
	{ID: ActionForeignAid, Name: "foreign_aid", Description: "Take 2 coins"},
	{ID: ActionCoup, Name: "coup", Cost: CoupCost, Targeted: true, Description: "Pay 7 coins, target loses influence"},
	{ID: ActionExchange, Name: "exchange", Role: RoleDirector, Description: "Draw 2 cards, return 2"},
	{ID: ActionReport, Name: "report", Role: RoleReporter, Description: "Take 1 coin, draw 1 card, return 1"},
	{ID: ActionTax, Name: "tax", Role: RoleBanker, Description: "Take 3 coins"},
	{ID: ActionHarvest, Name: "harvest", Role: RoleFarmer, Targeted: true, Description: "Take 3 coins, give 1 to target"},
	{ID: ActionInvest, Name: "invest", Role: RoleCapitalist, Description: "Take 4 coins"},
	{ID: ActionAssassinate, Name: "assassinate", Role: RoleGuerrilla, Cost: 4, Targeted: true, Description: "Pay 4 coins, target loses influence"},
	{ID: ActionRaid, Name: "raid", Role: RoleMercenary, Cost: 5, Targeted: true, Description: "Pay 5 coins, target loses influence"},
	{ID: ActionSteal, Name: "steal", Role: RolePolitician, Targeted: true, Description: "Take 2 coins from target"},
	{ID: ActionLitigate, Name: "litigate", Role: RoleLawyer, Description: "Take 1 coin from each player with more coins than you"},
}

var actionsByID = func() map[ActionID]*Action {
	m := make(map[ActionID]*Action, len(actions))
	for _, a := range actions {
		m[a.ID] = a
	}
	return m
}()

// LookupAction returns the action definition for id.
func LookupAction(id ActionID) *Action { return actionsByID[id] }

func (a ActionID) String() string {
	if def, ok := actionsByID[a]; ok {
		return def.Name
	}
	return "none"
}

var roles = []*Role{
	{ID: RoleDirector, Group: GroupCommunications, Action: ActionExchange, Blocks: []ActionID{ActionSteal}},
	{ID: RoleReporter, Group: GroupCommunications, Advanced: true, Action: ActionReport},
	{ID: RoleBanker, Group: GroupFinance, Action: ActionTax, Blocks: []ActionID{ActionForeignAid}},
	{ID: RoleFarmer, Group: GroupFinance, Action: ActionHarvest},
	{ID: RoleCapitalist, Group: GroupFinance, Advanced: true, Action: ActionInvest},
	{ID: RoleGuerrilla, Group: GroupForce, Action: ActionAssassinate},
	{ID: RolePeacekeeper, Group: GroupForce, Blocks: []ActionID{ActionAssassinate, ActionRaid}},
	{ID: RoleMercenary, Group: GroupForce, Advanced: true, Action: ActionRaid},
	{ID: RolePolitician, Group: GroupSpecialInterests, Action: ActionSteal, Blocks: []ActionID{ActionSteal}},
	{ID: RoleLawyer, Group: GroupSpecialInterests, Advanced: true, Action: ActionLitigate},
}

var rolesByID = func() map[RoleID]*Role {
	m := make(map[RoleID]*Role, len(roles))
	for _, r := range roles {
		m[r.ID] = r
	}
	return m
}()

// DefaultRoles is the role set used when none is configured.
var DefaultRoles = []RoleID{RoleBanker, RoleDirector, RoleGuerrilla, RolePeacekeeper, RolePolitician}

// Roles returns every role in catalogue order.
func Roles() []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, *r)
	}
	return out
}

// RoleInfo returns the catalogue entry for id.
func RoleInfo(id RoleID) (Role, bool) {
	r, ok := rolesByID[id]
	if !ok {
		return Role{}, false
	}
	return *r, true
}

// LookupRole resolves a role by name, case-insensitively.
func LookupRole(name string) (RoleID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for id, rn := range roleNames {
		if rn == n {
			return id, nil
		}
	}
	return RoleNone, newError(CodeUnknownRole, "unknown role %q", name)
}

// ParseRoles resolves role names, rejecting unknown and duplicate entries.
func ParseRoles(names []string) ([]RoleID, error) {
	out := make([]RoleID, 0, len(names))
	seen := make(map[RoleID]bool, len(names))
	for _, n := range names {
		id, err := LookupRole(n)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, configError("duplicate role %s", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func validateRoles(ids []RoleID) error {
	if len(ids) != RequiredRoles {
		return configError("need exactly %d roles, got %d", RequiredRoles, len(ids))
	}
	seen := make(map[RoleID]bool, len(ids))
	for _, id := range ids {
		if _, ok := rolesByID[id]; !ok {
			return configError("unknown role %d", id)
		}
		if seen[id] {
			return configError("duplicate role %s", id)
		}
		seen[id] = true
	}
	return nil
}

// ChooseRoles picks roles at random from a compact pattern: C, $, F and S pick
// from the communications, finance, force and special interests groups, A
// from any group. A preceding + restricts the next pick to advanced roles and
// - to basic ones. Picks with no remaining candidate are skipped.
func ChooseRoles(pattern string, rng *rand.Rand) []RoleID {
	var (
		chosen       []RoleID
		advancedOnly bool
		basicOnly    bool
	)
	pick := func(group Group) {
		var candidates []RoleID
		for _, r := range roles {
			if containsRole(chosen, r.ID) {
				continue
			}
			if group != 0 && r.Group != group {
				continue
			}
			if advancedOnly && !r.Advanced || basicOnly && r.Advanced {
				continue
			}
			candidates = append(candidates, r.ID)
		}
		if len(candidates) > 0 {
			chosen = append(chosen, candidates[rng.Intn(len(candidates))])
		}
		advancedOnly, basicOnly = false, false
	}
	for _, c := range strings.ToLower(pattern) {
		switch c {
		case '+':
			advancedOnly, basicOnly = true, false
		case '-':
			advancedOnly, basicOnly = false, true
		case 'c':
			pick(GroupCommunications)
		case '$':
			pick(GroupFinance)
		case 'f':
			pick(GroupForce)
		case 's':
			pick(GroupSpecialInterests)
		case 'a':
			pick(0)
		}
	}
	return chosen
}

// EditRoles applies "+name" and "-name" tokens to current. Unknown names in
// additions are returned separately; removing an absent role is a no-op.
func EditRoles(current []RoleID, edits string) (out []RoleID, unknown []string) {
	out = append(out, current...)
	for _, tok := range strings.Fields(edits) {
		if len(tok) < 2 {
			unknown = append(unknown, tok)
			continue
		}
		name := tok[1:]
		switch tok[0] {
		case '+':
			id, err := LookupRole(name)
			if err != nil {
				unknown = append(unknown, strings.ToLower(name))
				continue
			}
			if !containsRole(out, id) {
				out = append(out, id)
			}
		case '-':
			id, err := LookupRole(name)
			if err != nil {
				continue
			}
			out = removeRole(out, id)
		default:
			unknown = append(unknown, tok)
		}
	}
	return out, unknown
}

// RoleNames renders ids as their names.
func RoleNames(ids []RoleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func containsRole(ids []RoleID, id RoleID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeRole(ids []RoleID, id RoleID) []RoleID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func (r Role) String() string {
	tier := "basic"
	if r.Advanced {
		tier = "advanced"
	}
	return fmt.Sprintf("%s (%s, %s)", r.ID.DisplayName(), r.Group, tier)
}
