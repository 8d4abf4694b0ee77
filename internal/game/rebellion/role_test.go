package rebellion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebellion/internal/game"
)

func TestLookupRole(t *testing.T) {
	id, err := LookupRole("  PeaceKeeper ")
	require.NoError(t, err)
	assert.Equal(t, RolePeacekeeper, id)
	assert.Equal(t, "Peacekeeper", id.DisplayName())

	_, err = LookupRole("jester")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRoleCatalogue(t *testing.T) {
	all := Roles()
	assert.Len(t, all, 10)
	groups := map[Group]int{}
	for _, r := range all {
		groups[r.Group]++
	}
	assert.Equal(t, map[Group]int{
		GroupCommunications:   2,
		GroupFinance:          3,
		GroupForce:            3,
		GroupSpecialInterests: 2,
	}, groups)

	pk, ok := RoleInfo(RolePeacekeeper)
	require.True(t, ok)
	assert.True(t, pk.CanBlock(ActionAssassinate))
	assert.True(t, pk.CanBlock(ActionRaid))
	assert.False(t, pk.CanBlock(ActionSteal))
	assert.Equal(t, "Peacekeeper (force, basic)", pk.String())

	_, ok = RoleInfo(RoleNone)
	assert.False(t, ok)

	assert.Equal(t, "assassinate", ActionAssassinate.String())
	assert.Equal(t, 4, LookupAction(ActionAssassinate).Cost)
	assert.False(t, LookupAction(ActionIncome).Claims())
}

func TestRoleIDText(t *testing.T) {
	b, err := RoleBanker.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "banker", string(b))

	var id RoleID
	require.NoError(t, id.UnmarshalText([]byte("Lawyer")))
	assert.Equal(t, RoleLawyer, id)
	assert.ErrorIs(t, id.UnmarshalText([]byte("jester")), ErrUnknownRole)
}

func TestParseRoles(t *testing.T) {
	ids, err := ParseRoles([]string{"banker", "Director", "guerrilla"})
	require.NoError(t, err)
	assert.Equal(t, []RoleID{RoleBanker, RoleDirector, RoleGuerrilla}, ids)

	_, err = ParseRoles([]string{"banker", "banker"})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = ParseRoles([]string{"banker", "jester"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestChooseRoles(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 20; i++ {
		ids := ChooseRoles("C$FSA", rng)
		require.Len(t, ids, 5)
		assert.NoError(t, validateRoles(ids))
		want := []Group{GroupCommunications, GroupFinance, GroupForce, GroupSpecialInterests}
		for j, g := range want {
			info, _ := RoleInfo(ids[j])
			assert.Equal(t, g, info.Group)
		}
	}

	for i := 0; i < 20; i++ {
		for _, id := range ChooseRoles("+C+$+F+S", rng) {
			info, _ := RoleInfo(id)
			assert.True(t, info.Advanced, id.String())
		}
		for _, id := range ChooseRoles("-c-$-f-s", rng) {
			info, _ := RoleInfo(id)
			assert.False(t, info.Advanced, id.String())
		}
	}

	// Only two communications roles exist.
	assert.Len(t, ChooseRoles("CCC", rng), 2)
	assert.Len(t, ChooseRoles("AAAAAAAAAAAA", rng), 10)
}

func TestEditRoles(t *testing.T) {
	out, unknown := EditRoles(DefaultRoles, "-banker +Capitalist +jester -lawyer +director")
	assert.Equal(t, []string{"jester"}, unknown)
	assert.Equal(t, []RoleID{RoleDirector, RoleGuerrilla, RolePeacekeeper, RolePolitician, RoleCapitalist}, out)
	assert.Equal(t, []RoleID{RoleBanker, RoleDirector, RoleGuerrilla, RolePeacekeeper, RolePolitician}, DefaultRoles)

	_, unknown = EditRoles(nil, "banker +")
	assert.Equal(t, []string{"banker", "+"}, unknown)
}

func TestDeck(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	d, err := newDeck(rng, DefaultRoles, nil)
	require.NoError(t, err)
	assert.Equal(t, RequiredRoles*CopiesPerRole, d.Count())

	counts := map[RoleID]int{}
	d.roleCounts(counts)
	for _, r := range DefaultRoles {
		assert.Equal(t, CopiesPerRole, counts[r])
	}

	_, err = d.Draw(d.Count() + 1)
	assert.ErrorIs(t, err, ErrDeckExhausted)
	assert.True(t, game.IsFatal(err))
	assert.Equal(t, 15, d.Count())

	hand, err := d.Draw(15)
	require.NoError(t, err)
	assert.Zero(t, d.Count())
	seen := map[int]bool{}
	for _, c := range hand {
		assert.False(t, seen[c.ID], "duplicate card id %d", c.ID)
		seen[c.ID] = true
	}

	d.ReturnAndShuffle(hand[:3]...)
	assert.Equal(t, 3, d.Count())
}

func TestDeckOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	order := stackedDeck(t, DefaultRoles)
	d, err := newDeck(rng, DefaultRoles, order)
	require.NoError(t, err)
	top, err := d.Draw(4)
	require.NoError(t, err)
	assert.Equal(t, []Card{{1, RoleBanker}, {2, RoleBanker}, {3, RoleBanker}, {4, RoleDirector}}, top)

	_, err = newDeck(rng, DefaultRoles, order[:14])
	assert.ErrorIs(t, err, ErrConfig)
}

func TestWalkOnce(t *testing.T) {
	a := &PlayerNode{Player: &Player{ID: "a"}}
	b := &PlayerNode{Player: &Player{ID: "b"}}
	c := &PlayerNode{Player: &Player{ID: "c"}}
	a.Next, b.Next, c.Next = b, c, a

	var visited []string
	got := b.WalkOnce(func(n *PlayerNode) bool {
		visited = append(visited, n.Player.ID)
		return false
	})
	assert.Nil(t, got)
	assert.Equal(t, []string{"b", "c", "a"}, visited)

	got = b.WalkOnce(func(n *PlayerNode) bool { return n.Player.ID == "a" })
	assert.Same(t, a, got)
}
