package domain

// DownlineListResult captures a page of downline members with the total count.
type DownlineListResult struct {
	Items []DownlineMember
	Total int64
}

// EarningListResult captures commission records returned for a user.
type EarningListResult struct {
	Items []ReferralEarning
	Total int64
}
