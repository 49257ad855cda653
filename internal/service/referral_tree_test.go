package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/icorewards/internal/domain"
)

func TestBuildReferralTree(t *testing.T) {
	users := []domain.User{
		{ID: "B2", ReferredBy: "A", ReferralPath: []string{"A", "ROOTPARENT"}, CreatedAt: fixedNow.Add(3 * time.Minute)},
		{ID: "A", ReferredBy: "ROOTPARENT", ReferralPath: []string{"ROOTPARENT"}, CreatedAt: fixedNow},
		{ID: "B1", ReferredBy: "A", ReferralPath: []string{"A", "ROOTPARENT"}, CreatedAt: fixedNow.Add(time.Minute)},
		{ID: "C", ReferredBy: "B1", ReferralPath: []string{"B1", "A", "ROOTPARENT"}, CreatedAt: fixedNow.Add(2 * time.Minute)},
	}
	sortUsersByJoin(users)

	root := BuildReferralTree(users, "A")
	require.NotNil(t, root)
	assert.Equal(t, 0, root.Depth)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "B1", root.Children[0].UserID)
	assert.Equal(t, "B2", root.Children[1].UserID)
	assert.Equal(t, 0, root.Children[0].Depth)
	assert.Equal(t, 1, root.Children[0].Children[0].Depth)

	edges := FlattenReferralTree(root)
	assert.Equal(t, []domain.ReferralEdge{
		{UserID: "B1", ReferredBy: "A"},
		{UserID: "C", ReferredBy: "B1"},
		{UserID: "B2", ReferredBy: "A"},
	}, edges)

	pruned := PruneReferralTree(root, 0)
	assert.Empty(t, pruned.Children[0].Children)
	assert.Len(t, root.Children[0].Children, 1, "pruning copies")

	assert.Nil(t, BuildReferralTree(users, "missing"))
	assert.Nil(t, FlattenReferralTree(nil))
}
