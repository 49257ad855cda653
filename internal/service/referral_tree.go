package service

import (
	"sort"

	"github.com/vanshika/icorewards/internal/domain"
)

// BuildReferralTree links users under rootID by their ReferredBy parent.
// Users are the root itself plus every user whose path contains the root.
// Each node's depth is the root's index in that node's path, 0 when absent.
// Children keep the order of the input slice. It returns nil when the root is
// not in users.
func BuildReferralTree(users []domain.User, rootID string) *domain.ReferralNode {
	nodes := make(map[string]*domain.ReferralNode, len(users))
	order := make([]string, 0, len(users))
	for _, u := range users {
		if _, seen := nodes[u.ID]; seen {
			continue
		}
		depth := u.DepthOf(rootID)
		if depth < 0 {
			depth = 0
		}
		nodes[u.ID] = &domain.ReferralNode{
			UserID:        u.ID,
			Name:          u.Name,
			ReferralCode:  u.ReferralCode,
			ReferredBy:    u.ReferredBy,
			ReferralLevel: u.ReferralLevel,
			Depth:         depth,
			JoinedAt:      u.CreatedAt,
		}
		order = append(order, u.ID)
	}

	root, ok := nodes[rootID]
	if !ok {
		return nil
	}
	root.Depth = 0

	for _, id := range order {
		if id == rootID {
			continue
		}
		node := nodes[id]
		parent, ok := nodes[node.ReferredBy]
		if !ok {
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return root
}

// PruneReferralTree drops every child whose depth exceeds maxDepth. It
// returns a new tree and leaves the input untouched.
func PruneReferralTree(node *domain.ReferralNode, maxDepth int) *domain.ReferralNode {
	if node == nil {
		return nil
	}
	pruned := *node
	pruned.Children = nil
	for _, child := range node.Children {
		if child.Depth > maxDepth {
			continue
		}
		pruned.Children = append(pruned.Children, PruneReferralTree(child, maxDepth))
	}
	return &pruned
}

// FlattenReferralTree returns one edge per non-root node, linking it to its
// parent in the tree, in depth-first order.
func FlattenReferralTree(root *domain.ReferralNode) []domain.ReferralEdge {
	if root == nil {
		return nil
	}
	var edges []domain.ReferralEdge
	var walk func(n *domain.ReferralNode)
	walk = func(n *domain.ReferralNode) {
		for _, child := range n.Children {
			edges = append(edges, domain.ReferralEdge{UserID: child.UserID, ReferredBy: n.UserID})
			walk(child)
		}
	}
	walk(root)
	return edges
}

// sortUsersByJoin orders users by creation time then id, giving trees a
// reproducible child order.
func sortUsersByJoin(users []domain.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
}
